package portal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

// SessionHeader carries the anonymous portal session token.
const SessionHeader = "X-Patient-Session"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the access-code endpoints, which carry no
// bearer token.
func (h *Handler) RegisterPublicRoutes(portal *echo.Group) {
	portal.POST("/access", h.Access)
	portal.GET("/dashboard", h.Dashboard)
	portal.DELETE("/session", h.EndSession)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/portal/me", h.Me, auth.RequireRole(auth.CapPatient))
}

type accessRequest struct {
	AccessCode string `json:"access_code"`
}

func (h *Handler) Access(c echo.Context) error {
	var req accessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	grant, err := h.svc.Verify(c.Request().Context(), req.AccessCode)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Set("patient_id", grant.Patient.ID.String())
	return c.JSON(http.StatusOK, grant)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), c.Request().Header.Get(SessionHeader))
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Set("patient_id", d.Patient.ID.String())
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) EndSession(c echo.Context) error {
	if err := h.svc.End(c.Request().Context(), c.Request().Header.Get(SessionHeader)); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.Me(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
