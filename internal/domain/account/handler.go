package account

import (
	"net/http"

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
	api.GET("/users/me", h.Me)

	staff := api.Group("", auth.RequireRole(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin))
	staff.GET("/users", h.ListUsers)

	admin := api.Group("", auth.RequireRole(auth.CapAdmin))
	admin.POST("/users", h.CreateUser)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.Me(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(ctx, auth.ActorFromContext(ctx), Role(c.QueryParam("role")), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateUser(ctx, auth.ActorFromContext(ctx), &u); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}
