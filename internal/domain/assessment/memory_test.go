package assessment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type mockAssessmentRepo struct {
	mu      sync.Mutex
	clock   time.Time
	vitals  []*VitalSigns
	nihss   []*NIHSSAssessment
	imaging []*ImagingStudy
	labs    []*LabResult
	failOn  map[string]error
}

func newMockAssessmentRepo() *mockAssessmentRepo {
	return &mockAssessmentRepo{
		clock:  time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (m *mockAssessmentRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func newestFirst[T any](items []*T, at func(*T) time.Time, keep func(*T) bool, limit int) []*T {
	var out []*T
	for _, it := range items {
		if keep(it) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockAssessmentRepo) CreateVitals(_ context.Context, v *VitalSigns) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["vitals"]; err != nil {
		return err
	}
	v.ID = uuid.New()
	v.RecordedAt = m.tick()
	cp := *v
	m.vitals = append(m.vitals, &cp)
	return nil
}

func (m *mockAssessmentRepo) ListVitals(_ context.Context, patientID uuid.UUID, limit int) ([]*VitalSigns, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.vitals, func(v *VitalSigns) time.Time { return v.RecordedAt },
		func(v *VitalSigns) bool { return v.PatientID == patientID }, limit), nil
}

func (m *mockAssessmentRepo) CreateNIHSS(_ context.Context, a *NIHSSAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.AssessedAt = m.tick()
	cp := *a
	m.nihss = append(m.nihss, &cp)
	return nil
}

func (m *mockAssessmentRepo) GetNIHSS(_ context.Context, id uuid.UUID) (*NIHSSAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.nihss {
		if a.ID == id {
			cp := *a
			return cp.derive(), nil
		}
	}
	return nil, apperr.NotFound("nihss assessment", id.String())
}

func (m *mockAssessmentRepo) ListNIHSS(_ context.Context, patientID uuid.UUID, limit int) ([]*NIHSSAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := newestFirst(m.nihss, func(a *NIHSSAssessment) time.Time { return a.AssessedAt },
		func(a *NIHSSAssessment) bool { return a.PatientID == patientID }, limit)
	for _, a := range out {
		a.derive()
	}
	return out, nil
}

func (m *mockAssessmentRepo) ListAllNIHSS(_ context.Context, limit, offset int) ([]*NIHSSAssessment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := newestFirst(m.nihss, func(a *NIHSSAssessment) time.Time { return a.AssessedAt },
		func(*NIHSSAssessment) bool { return true }, 0)
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockAssessmentRepo) CreateImaging(_ context.Context, s *ImagingStudy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.PerformedAt = m.tick()
	cp := *s
	m.imaging = append(m.imaging, &cp)
	return nil
}

func (m *mockAssessmentRepo) ListImaging(_ context.Context, patientID uuid.UUID, limit int) ([]*ImagingStudy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.imaging, func(s *ImagingStudy) time.Time { return s.PerformedAt },
		func(s *ImagingStudy) bool { return s.PatientID == patientID }, limit), nil
}

func (m *mockAssessmentRepo) CreateLab(_ context.Context, l *LabResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.RecordedAt = m.tick()
	cp := *l
	m.labs = append(m.labs, &cp)
	return nil
}

func (m *mockAssessmentRepo) ListLabs(_ context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.labs, func(l *LabResult) time.Time { return l.RecordedAt },
		func(l *LabResult) bool { return l.PatientID == patientID }, limit), nil
}

// stubPatients serves GetByID from a map; the other methods are unused here.
type stubPatients struct {
	patient.Repository
	store map[uuid.UUID]*patient.Patient
}

func (s *stubPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := s.store[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

// staffNotifier records role fan-outs for a fixed roster.
type staffNotifier struct {
	mu     sync.Mutex
	roster map[account.Role][]uuid.UUID
	sent   map[uuid.UUID][]notification.Message
}

func newStaffNotifier(techs, neuros int) *staffNotifier {
	n := &staffNotifier{roster: map[account.Role][]uuid.UUID{}, sent: map[uuid.UUID][]notification.Message{}}
	for i := 0; i < techs; i++ {
		n.roster[account.RoleTechnician] = append(n.roster[account.RoleTechnician], uuid.New())
	}
	for i := 0; i < neuros; i++ {
		n.roster[account.RoleNeurologist] = append(n.roster[account.RoleNeurologist], uuid.New())
	}
	return n
}

func (n *staffNotifier) NotifyRole(_ context.Context, role account.Role, m notification.Message) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range n.roster[role] {
		n.sent[id] = append(n.sent[id], m)
	}
	return len(n.roster[role]), nil
}

func (n *staffNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, msgs := range n.sent {
		c += len(msgs)
	}
	return c
}
