package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var (
	requestConsultations = auth.AnyOf(auth.CapTechnician, auth.CapAdmin)
	acceptConsultations  = auth.AnyOf(auth.CapNeurologist, auth.CapAdmin)
	viewConsultations    = auth.AnyOf(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin)
	requestTPA           = auth.AnyOf(auth.CapTechnician)
	reviewTPA            = auth.AnyOf(auth.CapNeurologist)
	administerTPA        = auth.AnyOf(auth.CapTechnician)
	technicianDashboard  = auth.AnyOf(auth.CapTechnician)
	neurologistDashboard = auth.AnyOf(auth.CapNeurologist)
)

// Dashboard section sizes.
const (
	techActiveLimit     = 7
	techPatientLimit    = 5
	neuroQueueLimit     = 10
	neuroCompletedLimit = 5
	pendingTPAListLimit = 10
)

// Notifier writes outbox notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, m notification.Message) error
	NotifyRole(ctx context.Context, role account.Role, m notification.Message) (int, error)
}

// Inbox reads and clears the actor's own notifications.
type Inbox interface {
	MarkConsultationRead(ctx context.Context, actor auth.Actor, consultationID uuid.UUID) error
	UnreadCount(ctx context.Context, actor auth.Actor) (int, error)
}

// Patients resolves the patient a consultation is about.
type Patients interface {
	Lookup(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	RegisteredBy(ctx context.Context, actor auth.Actor, limit int) ([]*patient.Patient, error)
}

// Directory resolves staff names for notification text.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*account.User, error)
}

type Service struct {
	repo     Repository
	tpa      TPARepository
	patients Patients
	notifier Notifier
	inbox    Inbox
	users    Directory
	tx       db.TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tpa TPARepository, patients Patients, notifier Notifier, inbox Inbox, users Directory, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tpa:      tpa,
		patients: patients,
		notifier: notifier,
		inbox:    inbox,
		users:    users,
		tx:       tx,
		logger:   logger.With().Str("component", "consultation").Logger(),
		now:      time.Now,
	}
}

func actorRef(actor auth.Actor) *uuid.UUID {
	if !actor.Authenticated() {
		return nil
	}
	id := actor.UserID
	return &id
}

func consultationURL(id uuid.UUID) string {
	return "/api/v1/consultations/" + id.String()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// staffName returns the display name of a user, or fallback when the user
// cannot be resolved.
func (s *Service) staffName(ctx context.Context, id uuid.UUID, fallback string) string {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("resolve staff name")
		return fallback
	}
	return u.FullName()
}

// canManage reports whether actor may edit c: the assigned neurologist or
// an admin.
func canManage(actor auth.Actor, c *Consultation) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Has(auth.CapNeurologist) && actor.Authenticated() && c.AssignedTo(actor.UserID)
}

// conflict explains why a compare-and-set on consultation id matched no row.
func (s *Service) conflict(ctx context.Context, id uuid.UUID, op string) error {
	metrics.TransitionConflicts.WithLabelValues("consultation", op).Inc()
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidTransition("cannot %s consultation in status %s", op, current.Status)
}

// transition writes u while c is still in its loaded status.
func (s *Service) transition(ctx context.Context, actor auth.Actor, c *Consultation, op string, u Update) (*Consultation, error) {
	updated, ok, err := s.repo.Transition(ctx, c.ID, c.Status, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, c.ID, op)
	}
	if from, to := c.Status, updated.Status; from != to {
		db.AfterCommit(ctx, func() {
			metrics.ConsultationTransitions.WithLabelValues(string(from), string(to)).Inc()
			s.logger.Info().
				Str("consultation_id", c.ID.String()).
				Str("actor_id", actor.UserID.String()).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("consultation transition")
		})
	}
	return updated, nil
}

func (s *Service) notifyRequester(ctx context.Context, c *Consultation, title, message string) error {
	if c.RequestedBy == nil {
		return nil
	}
	return s.notifier.Notify(ctx, *c.RequestedBy, notification.Message{
		Type:                notification.TypeConsultation,
		Title:               title,
		Message:             message,
		RelatedConsultation: &c.ID,
		RelatedURL:          consultationURL(c.ID),
	})
}

// Request opens a consultation for a patient and alerts every neurologist.
func (s *Service) Request(ctx context.Context, actor auth.Actor, patientID uuid.UUID, chiefComplaint, notes string) (*Consultation, error) {
	if err := requestConsultations.Check(actor); err != nil {
		return nil, err
	}
	chiefComplaint = strings.TrimSpace(chiefComplaint)
	if chiefComplaint == "" {
		return nil, apperr.Validation("chief_complaint", "chief complaint is required")
	}
	p, err := s.patients.Lookup(ctx, patientID)
	if err != nil {
		return nil, err
	}

	c := &Consultation{
		PatientID:      p.ID,
		RequestedBy:    actorRef(actor),
		ChiefComplaint: chiefComplaint,
		Notes:          strings.TrimSpace(notes),
		PatientName:    p.FullName(),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("create consultation: %w", err)
		}
		_, err := s.notifier.NotifyRole(ctx, account.RoleNeurologist, notification.Message{
			Type:                notification.TypeConsultation,
			Title:               "New Consultation Request",
			Message:             fmt.Sprintf("New consultation requested for %s", c.PatientName),
			RelatedConsultation: &c.ID,
			RelatedURL:          consultationURL(c.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("patient_id", p.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("consultation requested")
	return c, nil
}

// Accept assigns a REQUESTED consultation to the acting neurologist. Of two
// concurrent accepts exactly one succeeds.
func (s *Service) Accept(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Consultation, error) {
	if err := acceptConsultations.Check(actor); err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return nil, apperr.PermissionDenied("accepting a consultation requires a user identity")
	}
	now := s.now()
	neurologist := actor.UserID
	to := StatusInProgress

	var accepted *Consultation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, ok, err := s.repo.Transition(ctx, id, StatusRequested, Update{
			To:          &to,
			Neurologist: &neurologist,
			StartedAt:   &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return s.conflict(ctx, id, "accept")
		}
		accepted = c
		name := s.staffName(ctx, neurologist, "a neurologist")
		return s.notifyRequester(ctx, c, "Consultation Accepted",
			fmt.Sprintf("Your consultation request for %s has been accepted by %s", c.PatientName, name))
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsultationTransitions.WithLabelValues(string(StatusRequested), string(StatusInProgress)).Inc()
	s.logger.Info().
		Str("consultation_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Str("from", string(StatusRequested)).
		Str("to", string(StatusInProgress)).
		Msg("consultation accepted")
	return accepted, nil
}

// UpdateInput is a partial edit of an active consultation.
type UpdateInput struct {
	Status          *Status `json:"status"`
	Notes           *string `json:"notes"`
	Diagnosis       *string `json:"diagnosis"`
	Recommendations *string `json:"recommendations"`
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, in UpdateInput) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, c) {
		return nil, apperr.PermissionDenied("only the assigned neurologist or an admin may update this consultation")
	}
	if !c.Status.Active() {
		return nil, apperr.InvalidTransition("consultation is %s", c.Status)
	}

	u := Update{Notes: in.Notes, Diagnosis: in.Diagnosis, Recommendations: in.Recommendations}
	if in.Status != nil && *in.Status != c.Status {
		to := *in.Status
		if !to.Valid() {
			return nil, apperr.Validation("status", "unknown status %q", to)
		}
		if !CanTransition(c.Status, to) {
			return nil, apperr.InvalidTransition("cannot move consultation from %s to %s", c.Status, to)
		}
		if to == StatusInProgress && c.NeurologistID == nil {
			return nil, apperr.InvalidTransition("consultation has no assigned neurologist")
		}
		now := s.now()
		u.To = &to
		switch to {
		case StatusInProgress:
			u.StartedAt = &now
		case StatusCompleted:
			u.StartedAt = &now
			u.CompletedAt = &now
		}
	}

	var updated *Consultation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err = s.transition(ctx, actor, c, "update", u)
		if err != nil {
			return err
		}
		return s.notifyRequester(ctx, updated, "Consultation Update",
			fmt.Sprintf("Consultation for %s status updated to %s.", updated.PatientName, updated.Status.Display()))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteInput carries the neurologist's conclusions.
type CompleteInput struct {
	Diagnosis       string `json:"diagnosis"`
	Recommendations string `json:"recommendations"`
	Notes           string `json:"notes"`
}

func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, in CompleteInput) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, c) {
		return nil, apperr.PermissionDenied("only the assigned neurologist or an admin may complete this consultation")
	}
	if c.Status != StatusInProgress {
		return nil, apperr.InvalidTransition("cannot complete consultation in status %s", c.Status)
	}

	now := s.now()
	to := StatusCompleted
	u := Update{
		To:              &to,
		StartedAt:       &now,
		CompletedAt:     &now,
		Notes:           optional(in.Notes),
		Diagnosis:       optional(in.Diagnosis),
		Recommendations: optional(in.Recommendations),
	}
	var completed *Consultation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		completed, err = s.transition(ctx, actor, c, "complete", u)
		if err != nil {
			return err
		}
		return s.notifyRequester(ctx, completed, "Consultation Completed",
			fmt.Sprintf("Consultation for %s has been completed.", completed.PatientName))
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Cancel stops an active consultation and tells the other party.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	requester := actor.Authenticated() && c.RequestedByUser(actor.UserID)
	if !requester && !canManage(actor, c) {
		return nil, apperr.PermissionDenied("only the requester, the assigned neurologist or an admin may cancel this consultation")
	}
	if !c.Status.Active() {
		return nil, apperr.InvalidTransition("cannot cancel consultation in status %s", c.Status)
	}

	to := StatusCancelled
	u := Update{To: &to}
	if reason = strings.TrimSpace(reason); reason != "" {
		notes := "Cancellation reason: " + reason
		if c.Notes != "" {
			notes = c.Notes + "\n\n" + notes
		}
		u.Notes = &notes
	}

	var cancelled *Consultation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cancelled, err = s.transition(ctx, actor, c, "cancel", u)
		if err != nil {
			return err
		}
		m := notification.Message{
			Type:                notification.TypeConsultation,
			Title:               "Consultation Cancelled",
			Message:             fmt.Sprintf("Consultation for %s has been cancelled.", cancelled.PatientName),
			RelatedConsultation: &cancelled.ID,
			RelatedURL:          consultationURL(cancelled.ID),
		}
		for _, party := range []*uuid.UUID{cancelled.RequestedBy, cancelled.NeurologistID} {
			if party == nil || *party == actor.UserID {
				continue
			}
			if err := s.notifier.Notify(ctx, *party, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Get returns a consultation with its tPA request and clears the actor's
// unread notifications about it.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Detail, error) {
	if err := viewConsultations.Check(actor); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Consultation: c}
	t, err := s.tpa.GetByConsultation(ctx, id)
	switch {
	case err == nil:
		d.TPARequest = t
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	if err := s.inbox.MarkConsultationRead(ctx, actor, id); err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", id.String()).Msg("mark consultation notifications read")
	}
	return d, nil
}

// List returns the consultations visible to actor, newest first.
func (s *Service) List(ctx context.Context, actor auth.Actor, statuses []Status, limit, offset int) ([]*Consultation, int, error) {
	f := Filter{Statuses: statuses, Limit: limit, Offset: offset}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, 0, apperr.Validation("status", "unknown status %q", st)
		}
	}
	self := actor.UserID
	switch {
	case actor.IsAdmin():
	case actor.Has(auth.CapNeurologist):
		f.VisibleTo = &self
	case actor.Has(auth.CapTechnician):
		f.RequestedBy = &self
	default:
		return nil, 0, viewConsultations.Check(actor)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Consultation{}
	}
	return items, total, nil
}

// ForPatient lists a patient's newest consultations for a caller that has
// already established access to that patient.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Consultation, error) {
	items, _, err := s.repo.List(ctx, Filter{PatientID: &patientID, Limit: limit})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Consultation{}
	}
	return items, nil
}

func (s *Service) unread(ctx context.Context, actor auth.Actor) (int, error) {
	if !actor.Authenticated() {
		return 0, nil
	}
	return s.inbox.UnreadCount(ctx, actor)
}

func (s *Service) TechnicianDashboard(ctx context.Context, actor auth.Actor) (*TechnicianDashboard, error) {
	if err := technicianDashboard.Check(actor); err != nil {
		return nil, err
	}
	self := actor.UserID
	active, _, err := s.repo.List(ctx, Filter{
		Statuses:    []Status{StatusRequested, StatusInProgress, StatusCompleted},
		RequestedBy: &self,
		Limit:       techActiveLimit,
	})
	if err != nil {
		return nil, err
	}
	recent, err := s.patients.RegisteredBy(ctx, actor, techPatientLimit)
	if err != nil {
		return nil, err
	}
	pending, err := s.tpa.ListPending(ctx, PendingFilter{RequestedBy: &self, Limit: pendingTPAListLimit})
	if err != nil {
		return nil, err
	}
	unread, err := s.unread(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &TechnicianDashboard{
		ActiveConsultations: nonNil(active),
		RecentPatients:      nonNil(recent),
		PendingTPARequests:  nonNil(pending),
		UnreadNotifications: unread,
	}, nil
}

func (s *Service) NeurologistDashboard(ctx context.Context, actor auth.Actor) (*NeurologistDashboard, error) {
	if err := neurologistDashboard.Check(actor); err != nil {
		return nil, err
	}
	self := actor.UserID
	pending, pendingCount, err := s.repo.List(ctx, Filter{
		Statuses:   []Status{StatusRequested},
		Unassigned: true,
		Limit:      neuroQueueLimit,
	})
	if err != nil {
		return nil, err
	}
	inProgress, inProgressCount, err := s.repo.List(ctx, Filter{
		Statuses:    []Status{StatusInProgress},
		Neurologist: &self,
		OrderBy:     "started_at",
		Limit:       neuroQueueLimit,
	})
	if err != nil {
		return nil, err
	}
	completed, _, err := s.repo.List(ctx, Filter{
		Statuses:    []Status{StatusCompleted},
		Neurologist: &self,
		OrderBy:     "completed_at",
		Limit:       neuroCompletedLimit,
	})
	if err != nil {
		return nil, err
	}
	tpa, err := s.tpa.ListPending(ctx, PendingFilter{Reviewer: &self})
	if err != nil {
		return nil, err
	}
	unread, err := s.unread(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &NeurologistDashboard{
		PendingConsultations:    nonNil(pending),
		InProgressConsultations: nonNil(inProgress),
		RecentCompleted:         nonNil(completed),
		PendingTPARequests:      nonNil(tpa),
		PendingCount:            pendingCount,
		InProgressCount:         inProgressCount,
		PendingTPACount:         len(tpa),
		UnreadNotifications:     unread,
	}, nil
}

func nonNil[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}
