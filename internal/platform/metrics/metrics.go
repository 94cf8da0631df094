// Package metrics holds the Prometheus collectors for workflow events.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConsultationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_consultation_transitions_total",
			Help: "Consultation status transitions by source and target status",
		},
		[]string{"from", "to"},
	)

	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_transition_conflicts_total",
			Help: "Compare-and-set transitions rejected because the prior status changed",
		},
		[]string{"entity", "operation"},
	)

	TPADecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_tpa_decisions_total",
			Help: "tPA request lifecycle events",
		},
		[]string{"event"},
	)

	VitalBreaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_vital_breaches_total",
			Help: "Vital sign threshold breaches by metric and severity",
		},
		[]string{"metric", "severity"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_notifications_created_total",
			Help: "Notifications written to the outbox by type",
		},
		[]string{"type"},
	)

	PortalAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_portal_access_total",
			Help: "Patient portal access attempts by outcome",
		},
		[]string{"outcome"},
	)

	RegistrationWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stroke_registration_side_effect_failures_total",
			Help: "Best-effort registration side effects that failed",
		},
		[]string{"step"},
	)
)

// Handler exposes the default registry on an echo route.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
