package assessment

import (
	"net/http"
	"strconv"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin))
	staff.GET("/patients/:id", h.Chart)
	staff.POST("/patients/:id/vitals", h.RecordVitals)
	staff.GET("/patients/:id/vitals", h.ListVitals)
	staff.POST("/patients/:id/nihss", h.RecordNIHSS)
	staff.GET("/patients/:id/nihss", h.ListNIHSS)
	staff.POST("/patients/:id/imaging", h.RecordImaging)
	staff.POST("/patients/:id/labs", h.RecordLab)
	staff.GET("/nihss/:id", h.GetNIHSS)

	reviewers := api.Group("", auth.RequireRole(auth.CapNeurologist, auth.CapAdmin))
	reviewers.GET("/nihss", h.ListAllNIHSS)
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	c.Set("patient_id", id.String())
	return id, nil
}

func limitParam(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		return pagination.DefaultLimit
	}
	if limit > pagination.MaxLimit {
		return pagination.MaxLimit
	}
	return limit
}

func (h *Handler) Chart(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	chart, err := h.svc.Chart(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var in VitalsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.RecordVitals(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListVitals(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListVitals(ctx, auth.ActorFromContext(ctx), id, limitParam(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*VitalSigns{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RecordNIHSS(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var in NIHSSInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.RecordNIHSS(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListNIHSS(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListNIHSS(ctx, auth.ActorFromContext(ctx), id, limitParam(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*NIHSSAssessment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetNIHSS(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetNIHSS(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Set("patient_id", a.PatientID.String())
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAllNIHSS(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAllNIHSS(ctx, auth.ActorFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Path()))
}

func (h *Handler) RecordImaging(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var in ImagingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	st, err := h.svc.RecordImaging(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) RecordLab(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var in LabInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	l, err := h.svc.RecordLab(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, l)
}
