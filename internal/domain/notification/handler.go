package notification

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireAuthenticated())
	g.GET("", h.List)
	g.POST("/read-all", h.MarkAllRead)
	g.GET("/:id", h.Get)
	g.POST("/:id/read", h.MarkRead)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	inbox, err := h.svc.List(ctx, auth.ActorFromContext(ctx), c.QueryParam("unread") == "true", pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp := pagination.NewResponse(inbox.Items, inbox.Total, pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unread_count":  inbox.UnreadCount,
	})
}

// Get marks the notification read. With ?redirect=true it answers with a
// redirect to the related resource when one is set.
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	n, err := h.svc.Get(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if c.QueryParam("redirect") == "true" && n.RelatedURL != nil {
		return c.Redirect(http.StatusSeeOther, *n.RelatedURL)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.MarkRead(ctx, auth.ActorFromContext(ctx), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.MarkAllRead(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": n})
}
