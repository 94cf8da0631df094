package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
)

// Audit emits one "phi_access" log line for every request touching a
// patient record. Names and clinical values are never logged, only ids.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			patientID := auditPatientID(c)
			if patientID == "" {
				return err
			}

			rid, _ := c.Get("request_id").(string)
			actor := auth.ActorFromContext(c.Request().Context())
			caps := make([]string, len(actor.Capabilities))
			for i, cp := range actor.Capabilities {
				caps[i] = string(cp)
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", rid).
				Str("actor_id", actor.UserID.String()).
				Strs("roles", caps).
				Str("patient_id", patientID).
				Str("action", httpMethodToAction(c.Request().Method)).
				Str("route", c.Path()).
				Int("status", c.Response().Status).
				Msg("phi_access")
			return err
		}
	}
}

// auditPatientID resolves the patient a request refers to: the :id param on
// /patients routes, or the patient_id value set by the portal handlers.
func auditPatientID(c echo.Context) string {
	if pid, ok := c.Get("patient_id").(string); ok && pid != "" {
		return pid
	}
	if strings.HasPrefix(c.Path(), "/api/v1/patients/:id") {
		if id := c.Param("id"); isUUIDLike(id) {
			return id
		}
	}
	return ""
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func isUUIDLike(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
