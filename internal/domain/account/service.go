package account

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var (
	manageUsers = auth.AnyOf(auth.CapAdmin)
	listUsers   = auth.AnyOf(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin)
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

func validateUser(u *User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return apperr.Validation("username", "username is required")
	}
	if !u.Role.Valid() {
		return apperr.Validation("role", "role must be PATIENT, TECHNICIAN or NEUROLOGIST")
	}
	return nil
}

// CreateUser provisions a user record. Called by admins and by the CLI,
// which passes an admin actor.
func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, u *User) error {
	if err := manageUsers.Check(actor); err != nil {
		return err
	}
	if err := validateUser(u); err != nil {
		return err
	}
	return s.users.Create(ctx, u)
}

// EnsurePatientAccount returns the patient-role user whose username is the
// email, creating it when absent.
func (s *Service) EnsurePatientAccount(ctx context.Context, email, firstName, lastName string) (*User, bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, false, apperr.Validation("email", "email is required")
	}
	return s.users.GetOrCreate(ctx, &User{
		Username:  email,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      RolePatient,
	})
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// Me returns the caller's own user record.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*User, error) {
	if !actor.Authenticated() {
		return nil, apperr.PermissionDenied("authentication required")
	}
	return s.users.GetByID(ctx, actor.UserID)
}

func (s *Service) ListUsers(ctx context.Context, actor auth.Actor, role Role, limit, offset int) ([]*User, int, error) {
	if err := listUsers.Check(actor); err != nil {
		return nil, 0, err
	}
	if role != "" && !role.Valid() {
		return nil, 0, apperr.Validation("role", "unknown role %q", role)
	}
	return s.users.List(ctx, role, limit, offset)
}

// IDsByRole lists every user id holding role. The notification fan-out uses it.
func (s *Service) IDsByRole(ctx context.Context, role Role) ([]uuid.UUID, error) {
	return s.users.IDsByRole(ctx, role)
}
