package consultation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

func tpaMessage(t *TPARequest, title, message string) notification.Message {
	return notification.Message{
		Type:                notification.TypeTPA,
		Title:               title,
		Message:             message,
		RelatedConsultation: &t.ConsultationID,
		RelatedTPARequest:   &t.ID,
		RelatedURL:          consultationURL(t.ConsultationID),
	}
}

// tpaConflict explains why a compare-and-set on a tPA request matched no row.
func (s *Service) tpaConflict(ctx context.Context, id uuid.UUID, op string) error {
	metrics.TransitionConflicts.WithLabelValues("tpa_request", op).Inc()
	current, err := s.tpa.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case op == "administer" && current.Status != TPAApproved:
		return apperr.InvalidTransition("tPA request is %s, not approved", strings.ToLower(string(current.Status)))
	case op == "administer":
		return apperr.InvalidTransition("tPA request has already been administered")
	default:
		return apperr.InvalidTransition("tPA request has already been %s", strings.ToLower(string(current.Status)))
	}
}

// notifyPatient writes to the patient's portal account when one is linked.
func (s *Service) notifyPatient(ctx context.Context, patientID uuid.UUID, m notification.Message) error {
	p, err := s.patients.Lookup(ctx, patientID)
	if err != nil {
		return err
	}
	if p.UserAccount == nil {
		return nil
	}
	return s.notifier.Notify(ctx, *p.UserAccount, m)
}

// RequestTPA asks for thrombolysis approval on a consultation. A
// consultation carries at most one request.
func (s *Service) RequestTPA(ctx context.Context, actor auth.Actor, consultationID uuid.UUID, justification string) (*TPARequest, error) {
	if err := requestTPA.Check(actor); err != nil {
		return nil, err
	}
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return nil, apperr.Validation("justification", "justification is required")
	}
	c, err := s.repo.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusCancelled {
		return nil, apperr.InvalidTransition("consultation is cancelled")
	}

	t := &TPARequest{
		ConsultationID: c.ID,
		RequestedBy:    actorRef(actor),
		Justification:  justification,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.tpa.CreateIfAbsent(ctx, t)
		if err != nil {
			return err
		}
		if !created {
			metrics.TransitionConflicts.WithLabelValues("tpa_request", "request").Inc()
			return apperr.InvalidTransition("tPA request already exists")
		}
		m := tpaMessage(t, "New tPA Request", fmt.Sprintf("tPA approval requested for %s", c.PatientName))
		if c.NeurologistID != nil {
			return s.notifier.Notify(ctx, *c.NeurologistID, m)
		}
		_, err = s.notifier.NotifyRole(ctx, account.RoleNeurologist, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.TPADecisions.WithLabelValues("requested").Inc()
	s.logger.Info().
		Str("tpa_request_id", t.ID.String()).
		Str("consultation_id", c.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("tpa requested")
	return t, nil
}

// Review approves or denies a pending tPA request.
func (s *Service) Review(ctx context.Context, actor auth.Actor, tpaID uuid.UUID, decision TPAStatus, notes string) (*TPARequest, error) {
	if err := reviewTPA.Check(actor); err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return nil, apperr.PermissionDenied("reviewing a tPA request requires a user identity")
	}
	decision = TPAStatus(strings.ToUpper(strings.TrimSpace(string(decision))))
	if decision != TPAApproved && decision != TPADenied {
		return nil, apperr.Validation("decision", "decision must be APPROVED or DENIED")
	}
	verb := strings.ToLower(string(decision))

	var reviewed *TPARequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, ok, err := s.tpa.Review(ctx, tpaID, actor.UserID, decision, strings.TrimSpace(notes), s.now())
		if err != nil {
			return err
		}
		if !ok {
			return s.tpaConflict(ctx, tpaID, "review")
		}
		reviewed = t
		c, err := s.repo.GetByID(ctx, t.ConsultationID)
		if err != nil {
			return err
		}
		if t.RequestedBy != nil {
			m := tpaMessage(t, "tPA Request Reviewed", fmt.Sprintf("tPA request for %s has been %s.", c.PatientName, verb))
			if err := s.notifier.Notify(ctx, *t.RequestedBy, m); err != nil {
				return err
			}
		}
		name := s.staffName(ctx, actor.UserID, "your neurologist")
		return s.notifyPatient(ctx, c.PatientID, tpaMessage(t, "tPA Request Update",
			fmt.Sprintf("Your tPA request has been %s by Dr. %s.", verb, name)))
	})
	if err != nil {
		return nil, err
	}
	metrics.TPADecisions.WithLabelValues(verb).Inc()
	s.logger.Info().
		Str("tpa_request_id", tpaID.String()).
		Str("actor_id", actor.UserID.String()).
		Str("decision", string(decision)).
		Msg("tpa reviewed")
	return reviewed, nil
}

// Administer records whether an approved tPA request was given. It can be
// recorded once.
func (s *Service) Administer(ctx context.Context, actor auth.Actor, tpaID uuid.UUID, administered bool, notes string) (*TPARequest, error) {
	if err := administerTPA.Check(actor); err != nil {
		return nil, err
	}

	var result *TPARequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, ok, err := s.tpa.Administer(ctx, tpaID, actorRef(actor), administered, strings.TrimSpace(notes), s.now())
		if err != nil {
			return err
		}
		if !ok {
			return s.tpaConflict(ctx, tpaID, "administer")
		}
		result = t
		if !administered {
			return nil
		}
		c, err := s.repo.GetByID(ctx, t.ConsultationID)
		if err != nil {
			return err
		}
		return s.notifyPatient(ctx, c.PatientID, tpaMessage(t, "tPA Administered",
			"tPA has been administered for your stroke treatment."))
	})
	if err != nil {
		return nil, err
	}
	event := "administered"
	if !administered {
		event = "not_administered"
	}
	metrics.TPADecisions.WithLabelValues(event).Inc()
	s.logger.Info().
		Str("tpa_request_id", tpaID.String()).
		Str("actor_id", actor.UserID.String()).
		Bool("administered", administered).
		Msg("tpa administration recorded")
	return result, nil
}
