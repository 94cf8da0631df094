package account

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var adminActor = auth.NewActor(uuid.New(), []string{"admin"})

func newTestService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	return NewService(repo), repo
}

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role                     Role
		patient, tech, neurology bool
	}{
		{RolePatient, true, false, false},
		{RoleTechnician, false, true, false},
		{RoleNeurologist, false, false, true},
	}
	for _, tt := range tests {
		u := &User{Role: tt.role}
		if u.IsPatient() != tt.patient || u.IsTechnician() != tt.tech || u.IsNeurologist() != tt.neurology {
			t.Errorf("predicates mismatch for %s", tt.role)
		}
	}
}

func TestCapabilities_IncludesAdmin(t *testing.T) {
	u := &User{Role: RoleNeurologist, IsAdmin: true}
	a := auth.NewActor(uuid.New(), nil)
	a.Capabilities = u.Capabilities()
	if !a.Has(auth.CapNeurologist) || !a.IsAdmin() {
		t.Errorf("unexpected capabilities %v", a.Capabilities)
	}
}

func TestFullName(t *testing.T) {
	if got := (&User{Username: "jdoe", FirstName: "Jane", LastName: "Doe"}).FullName(); got != "Jane Doe" {
		t.Errorf("expected Jane Doe, got %q", got)
	}
	if got := (&User{Username: "jdoe"}).FullName(); got != "jdoe" {
		t.Errorf("expected username fallback, got %q", got)
	}
}

func TestService_CreateUser(t *testing.T) {
	svc, _ := newTestService()
	u := &User{Username: "tech1", Role: RoleTechnician}
	if err := svc.CreateUser(context.Background(), adminActor, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
}

func TestService_CreateUser_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		user User
	}{
		{"missing username", User{Role: RoleTechnician}},
		{"bad role", User{Username: "x", Role: "NURSE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			err := svc.CreateUser(context.Background(), adminActor, &u)
			if apperr.TypeOf(err) != apperr.TypeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateUser_RequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	tech := auth.NewActor(uuid.New(), []string{"technician"})
	err := svc.CreateUser(context.Background(), tech, &User{Username: "x", Role: RolePatient})
	if apperr.TypeOf(err) != apperr.TypePermissionDenied {
		t.Errorf("expected permission denied, got %v", err)
	}
}

func TestService_EnsurePatientAccount_GetOrCreate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, created, err := svc.EnsurePatientAccount(ctx, " Jane@Example.com ", "Jane", "Doe")
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	if first.Username != "jane@example.com" || first.Role != RolePatient {
		t.Errorf("unexpected user %+v", first)
	}

	second, created, err := svc.EnsurePatientAccount(ctx, "jane@example.com", "Jane", "Doe")
	if err != nil || created {
		t.Fatalf("expected existing account, got created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Error("expected the same account to be returned")
	}
}

func TestService_Me(t *testing.T) {
	svc, repo := newTestService()
	u := &User{Username: "neuro", Role: RoleNeurologist}
	_ = repo.Create(context.Background(), u)

	got, err := svc.Me(context.Background(), auth.NewActor(u.ID, []string{"neurologist"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Username != "neuro" {
		t.Errorf("expected neuro, got %s", got.Username)
	}

	if _, err := svc.Me(context.Background(), auth.Actor{}); apperr.TypeOf(err) != apperr.TypePermissionDenied {
		t.Errorf("expected permission denied for anonymous, got %v", err)
	}
}

func TestService_IDsByRole(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_ = repo.Create(ctx, &User{Username: "n1", Role: RoleNeurologist})
	_ = repo.Create(ctx, &User{Username: "n2", Role: RoleNeurologist})
	_ = repo.Create(ctx, &User{Username: "t1", Role: RoleTechnician})

	ids, err := svc.IDsByRole(ctx, RoleNeurologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 neurologists, got %d", len(ids))
	}
}
