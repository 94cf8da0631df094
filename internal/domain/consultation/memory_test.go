package consultation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type mockConsultationRepo struct {
	mu    sync.Mutex
	clock time.Time
	rows  map[uuid.UUID]*Consultation
	names map[uuid.UUID]string
}

func newMockConsultationRepo() *mockConsultationRepo {
	return &mockConsultationRepo{
		clock: time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC),
		rows:  make(map[uuid.UUID]*Consultation),
		names: make(map[uuid.UUID]string),
	}
}

func (m *mockConsultationRepo) Create(_ context.Context, c *Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	c.ID = uuid.New()
	c.Status = StatusRequested
	c.RequestedAt = m.clock
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *mockConsultationRepo) copyOf(c *Consultation) *Consultation {
	cp := *c
	cp.PatientName = m.names[c.PatientID]
	return &cp
}

func (m *mockConsultationRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("consultation", id.String())
	}
	return m.copyOf(c), nil
}

func (m *mockConsultationRepo) Transition(_ context.Context, id uuid.UUID, from Status, u Update) (*Consultation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.Status != from {
		return nil, false, nil
	}
	if u.To != nil {
		c.Status = *u.To
	}
	if u.Neurologist != nil {
		n := *u.Neurologist
		c.NeurologistID = &n
	}
	if c.StartedAt == nil && u.StartedAt != nil {
		t := *u.StartedAt
		c.StartedAt = &t
	}
	if c.CompletedAt == nil && u.CompletedAt != nil {
		t := *u.CompletedAt
		c.CompletedAt = &t
	}
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
	if u.Diagnosis != nil {
		c.Diagnosis = *u.Diagnosis
	}
	if u.Recommendations != nil {
		c.Recommendations = *u.Recommendations
	}
	return m.copyOf(c), true, nil
}

func sameID(p *uuid.UUID, id uuid.UUID) bool { return p != nil && *p == id }

func (m *mockConsultationRepo) List(_ context.Context, f Filter) ([]*Consultation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Consultation
	for _, c := range m.rows {
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				match = match || c.Status == s
			}
			if !match {
				continue
			}
		}
		if f.PatientID != nil && c.PatientID != *f.PatientID {
			continue
		}
		if f.RequestedBy != nil && !sameID(c.RequestedBy, *f.RequestedBy) {
			continue
		}
		if f.Neurologist != nil && !sameID(c.NeurologistID, *f.Neurologist) {
			continue
		}
		if f.Unassigned && c.NeurologistID != nil {
			continue
		}
		if f.VisibleTo != nil && c.NeurologistID != nil && *c.NeurologistID != *f.VisibleTo {
			continue
		}
		out = append(out, m.copyOf(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	total := len(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			out = nil
		} else {
			out = out[f.Offset:]
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

type mockTPARepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*TPARequest
	cons  map[uuid.UUID]uuid.UUID
	owner *mockConsultationRepo
}

func newMockTPARepo(owner *mockConsultationRepo) *mockTPARepo {
	return &mockTPARepo{
		rows:  make(map[uuid.UUID]*TPARequest),
		cons:  make(map[uuid.UUID]uuid.UUID),
		owner: owner,
	}
}

func (m *mockTPARepo) CreateIfAbsent(_ context.Context, t *TPARequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cons[t.ConsultationID]; exists {
		return false, nil
	}
	t.ID = uuid.New()
	t.Status = TPARequested
	t.RequestedAt = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(len(m.rows)) * time.Minute)
	cp := *t
	m.rows[t.ID] = &cp
	m.cons[t.ConsultationID] = t.ID
	return true, nil
}

func (m *mockTPARepo) GetByID(_ context.Context, id uuid.UUID) (*TPARequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("tpa request", id.String())
	}
	cp := *t
	return &cp, nil
}

func (m *mockTPARepo) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*TPARequest, error) {
	m.mu.Lock()
	id, ok := m.cons[consultationID]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("tpa request", "consultation "+consultationID.String())
	}
	return m.GetByID(ctx, id)
}

func (m *mockTPARepo) Review(_ context.Context, id, reviewer uuid.UUID, decision TPAStatus, notes string, at time.Time) (*TPARequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || t.Status != TPARequested {
		return nil, false, nil
	}
	t.Status = decision
	t.ReviewedBy = &reviewer
	t.ReviewedAt = &at
	t.ReviewNotes = notes
	cp := *t
	return &cp, true, nil
}

func (m *mockTPARepo) Administer(_ context.Context, id uuid.UUID, by *uuid.UUID, administered bool, notes string, at time.Time) (*TPARequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || t.Status != TPAApproved || t.Administered {
		return nil, false, nil
	}
	t.Administered = administered
	t.AdministrationNotes = notes
	if administered {
		t.AdministeredBy = by
		t.AdministeredAt = &at
	}
	cp := *t
	return &cp, true, nil
}

func (m *mockTPARepo) ListPending(ctx context.Context, f PendingFilter) ([]*TPARequest, error) {
	m.mu.Lock()
	var pending []*TPARequest
	for _, t := range m.rows {
		if t.Status == TPARequested {
			cp := *t
			pending = append(pending, &cp)
		}
	}
	m.mu.Unlock()

	var out []*TPARequest
	for _, t := range pending {
		if f.RequestedBy != nil && !sameID(t.RequestedBy, *f.RequestedBy) {
			continue
		}
		if f.Reviewer != nil {
			c, err := m.owner.GetByID(ctx, t.ConsultationID)
			if err != nil {
				return nil, err
			}
			if c.NeurologistID != nil && *c.NeurologistID != *f.Reviewer {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type sent struct {
	UserID  uuid.UUID
	Message notification.Message
}

// recordingOutbox stands in for the notification service on both the write
// and the inbox side.
type recordingOutbox struct {
	mu       sync.Mutex
	roles    map[account.Role][]uuid.UUID
	sent     []sent
	markRead []uuid.UUID
	unread   int
	fail     error
}

func newRecordingOutbox() *recordingOutbox {
	return &recordingOutbox{roles: make(map[account.Role][]uuid.UUID)}
}

func (o *recordingOutbox) Notify(_ context.Context, userID uuid.UUID, m notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, sent{UserID: userID, Message: m})
	return nil
}

func (o *recordingOutbox) NotifyRole(ctx context.Context, role account.Role, m notification.Message) (int, error) {
	ids := o.roles[role]
	for _, id := range ids {
		if err := o.Notify(ctx, id, m); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (o *recordingOutbox) MarkConsultationRead(_ context.Context, _ auth.Actor, consultationID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.markRead = append(o.markRead, consultationID)
	return nil
}

func (o *recordingOutbox) UnreadCount(context.Context, auth.Actor) (int, error) {
	return o.unread, nil
}

func (o *recordingOutbox) to(userID uuid.UUID) []notification.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []notification.Message
	for _, s := range o.sent {
		if s.UserID == userID {
			out = append(out, s.Message)
		}
	}
	return out
}

func (o *recordingOutbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = nil
}

type stubPatients struct {
	byID map[uuid.UUID]*patient.Patient
}

func (s *stubPatients) Lookup(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

func (s *stubPatients) RegisteredBy(_ context.Context, actor auth.Actor, limit int) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range s.byID {
		if sameID(p.RegisteredBy, actor.UserID) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubDirectory map[uuid.UUID]*account.User

func (d stubDirectory) GetUser(_ context.Context, id uuid.UUID) (*account.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, apperr.NotFound("user", id.String())
	}
	return u, nil
}
