package consultation

import (
	"net/http"
	"strings"

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
	staff.POST("/patients/:id/consultations", h.Request)
	staff.GET("/consultations", h.List)
	staff.GET("/consultations/:id", h.Get)
	staff.POST("/consultations/:id/accept", h.Accept)
	staff.PUT("/consultations/:id", h.Update)
	staff.POST("/consultations/:id/complete", h.Complete)
	staff.POST("/consultations/:id/cancel", h.Cancel)
	staff.POST("/consultations/:id/tpa", h.RequestTPA)
	staff.POST("/tpa/:id/review", h.Review)
	staff.POST("/tpa/:id/administer", h.Administer)
	staff.GET("/dashboard/technician", h.TechnicianDashboard)
	staff.GET("/dashboard/neurologist", h.NeurologistDashboard)
}

func idParam(c echo.Context, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	c.Set(key, id.String())
	return id, nil
}

// statusQuery accepts ?status=A,B or repeated status parameters.
func statusQuery(c echo.Context) []Status {
	var out []Status
	for _, raw := range c.QueryParams()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, Status(part))
			}
		}
	}
	return out
}

type requestBody struct {
	ChiefComplaint string `json:"chief_complaint"`
	Notes          string `json:"notes"`
}

func (h *Handler) Request(c echo.Context) error {
	patientID, err := idParam(c, "patient_id")
	if err != nil {
		return err
	}
	var body requestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Request(ctx, auth.ActorFromContext(ctx), patientID, body.ChiefComplaint, body.Notes)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Set("consultation_id", cons.ID.String())
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, auth.ActorFromContext(ctx), statusQuery(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Path()))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Accept(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Status != nil {
		st := Status(strings.ToUpper(strings.TrimSpace(string(*in.Status))))
		in.Status = &st
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Update(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	var in CompleteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Complete(ctx, auth.ActorFromContext(ctx), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	var body cancelBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	cons, err := h.svc.Cancel(ctx, auth.ActorFromContext(ctx), id, body.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

type tpaRequestBody struct {
	Justification string `json:"justification"`
}

func (h *Handler) RequestTPA(c echo.Context) error {
	id, err := idParam(c, "consultation_id")
	if err != nil {
		return err
	}
	var body tpaRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	t, err := h.svc.RequestTPA(ctx, auth.ActorFromContext(ctx), id, body.Justification)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, t)
}

type reviewBody struct {
	Decision TPAStatus `json:"decision"`
	Notes    string    `json:"review_notes"`
}

func (h *Handler) Review(c echo.Context) error {
	id, err := idParam(c, "tpa_request_id")
	if err != nil {
		return err
	}
	var body reviewBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	t, err := h.svc.Review(ctx, auth.ActorFromContext(ctx), id, body.Decision, body.Notes)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

type administerBody struct {
	Administered bool   `json:"administered"`
	Notes        string `json:"administration_notes"`
}

func (h *Handler) Administer(c echo.Context) error {
	id, err := idParam(c, "tpa_request_id")
	if err != nil {
		return err
	}
	var body administerBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	t, err := h.svc.Administer(ctx, auth.ActorFromContext(ctx), id, body.Administered, body.Notes)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) TechnicianDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.TechnicianDashboard(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) NeurologistDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.NeurologistDashboard(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
