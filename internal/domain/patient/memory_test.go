package patient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type mockPatientRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Patient
	clock time.Time
	// collisions makes the next N writes of an access code fail.
	collisions int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		store: make(map[uuid.UUID]*Patient),
		clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockPatientRepo) codeTaken(code string, except uuid.UUID) bool {
	if m.collisions > 0 {
		m.collisions--
		return true
	}
	for id, p := range m.store {
		if id != except && p.AccessCode != nil && *p.AccessCode == code {
			return true
		}
	}
	return false
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.AccessCode != nil && m.codeTaken(*p.AccessCode, uuid.Nil) {
		return ErrAccessCodeTaken
	}
	p.ID = uuid.New()
	m.clock = m.clock.Add(time.Minute)
	p.RegistrationDate = m.clock
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) get(id uuid.UUID) (*Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *mockPatientRepo) GetByAccessCode(_ context.Context, code string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.store {
		if p.AccessCode != nil && *p.AccessCode == code {
			return m.get(id)
		}
	}
	return nil, apperr.NotFound("patient", "access code")
}

func (m *mockPatientRepo) GetByUserAccount(_ context.Context, userID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.store {
		if p.UserAccount != nil && *p.UserAccount == userID {
			return m.get(id)
		}
	}
	return nil, apperr.NotFound("patient", "user "+userID.String())
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.ID]; !ok {
		return apperr.NotFound("patient", p.ID.String())
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) SetAccessCode(_ context.Context, id uuid.UUID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return apperr.NotFound("patient", id.String())
	}
	if m.codeTaken(code, id) {
		return ErrAccessCodeTaken
	}
	p.AccessCode = &code
	p.AccessCodeExpiry = nil
	return nil
}

func (m *mockPatientRepo) LinkAccount(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return apperr.NotFound("patient", id.String())
	}
	p.UserAccount = &userID
	return nil
}

func (m *mockPatientRepo) sorted(keep func(*Patient) bool) []*Patient {
	var out []*Patient
	for _, p := range m.store {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationDate.After(out[j].RegistrationDate) })
	return out
}

func (m *mockPatientRepo) Search(_ context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = strings.ToLower(q)
	all := m.sorted(func(p *Patient) bool {
		if q == "" {
			return true
		}
		for _, f := range []string{p.FirstName, p.LastName, p.PhoneNumber, p.MedicalHistory} {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	})
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockPatientRepo) ListByRegistrar(_ context.Context, userID uuid.UUID, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(p *Patient) bool { return p.RegisteredBy != nil && *p.RegisteredBy == userID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockPatientRepo) ListMissingAccessCode(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range m.store {
		if p.AccessCode == nil || *p.AccessCode == "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type intakeCall struct {
	kind     string
	detail   string
	imageURL string
}

type fakeIntake struct {
	calls []intakeCall
	fail  map[string]error
}

func newFakeIntake() *fakeIntake { return &fakeIntake{fail: map[string]error{}} }

func (f *fakeIntake) RecordInitialVitals(_ context.Context, _ auth.Actor, _ *Patient, v InitialVitals) error {
	if err := f.fail["vitals"]; err != nil {
		return err
	}
	f.calls = append(f.calls, intakeCall{kind: "vitals"})
	return nil
}

func (f *fakeIntake) RecordInitialImaging(_ context.Context, _ auth.Actor, _ *Patient, studyType, findings, imageURL string) error {
	if err := f.fail[studyType]; err != nil {
		return err
	}
	f.calls = append(f.calls, intakeCall{kind: studyType, detail: findings, imageURL: imageURL})
	return nil
}

func (f *fakeIntake) RecordInitialLab(_ context.Context, _ auth.Actor, _ *Patient, testName, value, _ string) error {
	if err := f.fail["lab"]; err != nil {
		return err
	}
	f.calls = append(f.calls, intakeCall{kind: "lab", detail: testName + "|" + value})
	return nil
}

type fakeAccounts struct {
	byEmail map[string]*account.User
	err     error
}

func (f *fakeAccounts) EnsurePatientAccount(_ context.Context, email, first, last string) (*account.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if u, ok := f.byEmail[email]; ok {
		return u, false, nil
	}
	u := &account.User{ID: uuid.New(), Username: email, Email: email, FirstName: first, LastName: last, Role: account.RolePatient}
	f.byEmail[email] = u
	return u, true, nil
}

var errSideEffect = errors.New("storage unavailable")
