// Package portal serves a patient's own records, either to an anonymous
// holder of the patient's access code or to a linked patient account.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/assessment"
	"github.com/strokeunit/strokeunit/internal/domain/consultation"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

// DefaultBudget is how long an access-code session stays usable.
const DefaultBudget = 30 * time.Minute

// recentLimit caps each dashboard section.
const recentLimit = 5

var viewOwnRecords = auth.AnyOf(auth.CapPatient)

var (
	errInvalidCode   = &apperr.Error{Type: apperr.TypeNotFound, Message: "invalid access code"}
	errReenterCode   = apperr.SessionExpired("please enter your access code again")
	errExpiredCode   = apperr.PermissionDenied("access code expired")
	errNoLinkedChart = &apperr.Error{Type: apperr.TypeNotFound, Message: "no patient record is linked to this account"}
)

type Patients interface {
	FindByAccessCode(ctx context.Context, code string) (*patient.Patient, error)
	Lookup(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	ForUser(ctx context.Context, userID uuid.UUID) (*patient.Patient, error)
}

type Consultations interface {
	ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*consultation.Consultation, error)
}

type Clinical interface {
	Recent(ctx context.Context, patientID uuid.UUID, limit int) (*assessment.Recent, error)
}

// Dashboard is everything a patient sees about their own stay.
type Dashboard struct {
	Patient          *patient.Patient              `json:"patient"`
	Consultations    []*consultation.Consultation  `json:"recent_consultations"`
	NIHSS            []*assessment.NIHSSAssessment `json:"recent_nihss_assessments"`
	Vitals           []*assessment.VitalSigns      `json:"recent_vital_signs"`
	SessionExpiresAt *time.Time                    `json:"session_expires_at,omitempty"`
}

// Grant is the result of a successful access-code check.
type Grant struct {
	Token     string           `json:"session_token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Patient   *patient.Patient `json:"patient"`
}

type Service struct {
	patients      Patients
	consultations Consultations
	clinical      Clinical
	store         SessionStore
	budget        time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(patients Patients, consultations Consultations, clinical Clinical, store SessionStore, budget time.Duration, logger zerolog.Logger) *Service {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Service{
		patients:      patients,
		consultations: consultations,
		clinical:      clinical,
		store:         store,
		budget:        budget,
		logger:        logger.With().Str("component", "portal").Logger(),
		now:           time.Now,
	}
}

// NormalizeCode trims and upper-cases a typed access code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Verify exchanges an access code for a session bound to one patient.
func (s *Service) Verify(ctx context.Context, code string) (*Grant, error) {
	code = NormalizeCode(code)
	if code == "" {
		metrics.PortalAccess.WithLabelValues("empty").Inc()
		return nil, apperr.Validation("access_code", "access code is required")
	}
	p, err := s.patients.FindByAccessCode(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		metrics.PortalAccess.WithLabelValues("invalid").Inc()
		return nil, errInvalidCode
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if p.AccessCodeExpired(now) {
		metrics.PortalAccess.WithLabelValues("expired_code").Inc()
		return nil, errExpiredCode
	}

	sess := &Session{Token: uuid.NewString(), PatientID: p.ID, AccessTime: now}
	if err := s.store.Save(ctx, sess, s.budget); err != nil {
		return nil, fmt.Errorf("save portal session: %w", err)
	}
	metrics.PortalAccess.WithLabelValues("granted").Inc()
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("portal session opened")
	return &Grant{Token: sess.Token, ExpiresAt: now.Add(s.budget), Patient: p}, nil
}

// session loads a live session, deleting it once its budget is spent.
func (s *Service) session(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errReenterCode
	}
	sess, err := s.store.Load(ctx, token)
	if errors.Is(err, ErrNoSession) {
		metrics.PortalAccess.WithLabelValues("unknown_session").Inc()
		return nil, errReenterCode
	}
	if err != nil {
		return nil, err
	}
	if s.now().Sub(sess.AccessTime) > s.budget {
		if err := s.store.Delete(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("delete expired portal session")
		}
		metrics.PortalAccess.WithLabelValues("expired_session").Inc()
		return nil, errReenterCode
	}
	return sess, nil
}

// Dashboard returns the records of the session's patient.
func (s *Service) Dashboard(ctx context.Context, token string) (*Dashboard, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.Lookup(ctx, sess.PatientID)
	if err != nil {
		return nil, err
	}
	d, err := s.build(ctx, p)
	if err != nil {
		return nil, err
	}
	expires := sess.AccessTime.Add(s.budget)
	d.SessionExpiresAt = &expires
	return d, nil
}

// Me serves the dashboard to a patient user whose account is linked to a
// patient record.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*Dashboard, error) {
	if err := viewOwnRecords.Check(actor); err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return nil, apperr.PermissionDenied("authentication required")
	}
	p, err := s.patients.ForUser(ctx, actor.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errNoLinkedChart
	}
	if err != nil {
		return nil, err
	}
	return s.build(ctx, p)
}

// End discards an anonymous session.
func (s *Service) End(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Delete(ctx, token)
}

func (s *Service) build(ctx context.Context, p *patient.Patient) (*Dashboard, error) {
	cons, err := s.consultations.ForPatient(ctx, p.ID, recentLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.clinical.Recent(ctx, p.ID, recentLimit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Patient:       p,
		Consultations: cons,
		NIHSS:         recent.NIHSS,
		Vitals:        recent.Vitals,
	}, nil
}
