package threshold

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
)

// Notifier fans a message out to every user holding a role.
type Notifier interface {
	NotifyRole(ctx context.Context, role account.Role, m notification.Message) (int, error)
}

// Alert summarises what a Check emitted for one breach.
type Alert struct {
	Breach
	TechniciansNotified  int `json:"technicians_notified"`
	NeurologistsNotified int `json:"neurologists_notified"`
}

type Monitor struct {
	notifier Notifier
	logger   zerolog.Logger
}

func NewMonitor(notifier Notifier, logger zerolog.Logger) *Monitor {
	return &Monitor{notifier: notifier, logger: logger.With().Str("component", "threshold").Logger()}
}

// Check evaluates r and notifies staff about every breach. Technicians hear
// about all breaches; neurologists only about critical ones. Callers run it
// in the same transaction as the vital-sign insert.
func (m *Monitor) Check(ctx context.Context, s Subject, r Reading) ([]Alert, error) {
	breaches := Evaluate(r)
	if len(breaches) == 0 {
		return nil, nil
	}
	url := "/api/v1/patients/" + s.PatientID.String()
	name := s.Name()

	alerts := make([]Alert, 0, len(breaches))
	for _, b := range breaches {
		a := Alert{Breach: b}
		n, err := m.notifier.NotifyRole(ctx, account.RoleTechnician, notification.Message{
			Type:       notification.TypeSystem,
			Title:      notification.TitleFor("Abnormal Vital Sign - ", name),
			Message:    fmt.Sprintf("%s for patient %s. Immediate attention may be required.", b.Message, name),
			RelatedURL: url,
		})
		if err != nil {
			return nil, fmt.Errorf("notify technicians: %w", err)
		}
		a.TechniciansNotified = n

		severity := "warning"
		if b.Critical {
			severity = "critical"
			n, err := m.notifier.NotifyRole(ctx, account.RoleNeurologist, notification.Message{
				Type:       notification.TypeSystem,
				Title:      notification.TitleFor("CRITICAL Vital Sign - ", name),
				Message:    fmt.Sprintf("CRITICAL: %s for patient %s. Immediate assessment required.", b.Message, name),
				RelatedURL: url,
			})
			if err != nil {
				return nil, fmt.Errorf("notify neurologists: %w", err)
			}
			a.NeurologistsNotified = n
		}
		metric := string(b.Metric)
		db.AfterCommit(ctx, func() {
			metrics.VitalBreaches.WithLabelValues(metric, severity).Inc()
		})
		m.logger.Info().
			Str("patient_id", s.PatientID.String()).
			Str("metric", string(b.Metric)).
			Bool("critical", b.Critical).
			Msg("vital sign out of range")
		alerts = append(alerts, a)
	}
	return alerts, nil
}
