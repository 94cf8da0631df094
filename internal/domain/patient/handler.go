package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
	"github.com/strokeunit/strokeunit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the registry endpoints. GET /patients/:id is served
// by the assessment chart handler, which adds the clinical data.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin))
	staff.GET("/patients", h.List)

	tech := api.Group("", auth.RequireRole(auth.CapTechnician, auth.CapAdmin))
	tech.POST("/patients", h.Register)
	tech.PUT("/patients/:id", h.Update)
	tech.POST("/patients/:id/access-code/reset", h.ResetAccessCode)
}

func (h *Handler) Register(c echo.Context) error {
	var form RegistrationForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	reg, err := h.svc.Register(ctx, auth.ActorFromContext(ctx), form)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Set("patient_id", reg.Patient.ID.String())
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, auth.ActorFromContext(ctx), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Path()))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Demographics
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, auth.ActorFromContext(ctx), id, d)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) ResetAccessCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.ResetAccessCode(ctx, auth.ActorFromContext(ctx), id, req.Confirm)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id":  p.ID,
		"access_code": p.AccessCode,
	})
}
