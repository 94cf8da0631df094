package reporting

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reports := api.Group("/reports", auth.RequireRole(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin))
	reports.GET("/stats", h.Stats)
	reports.GET("/consultations.xlsx", h.ExportConsultations)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.Stats(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ExportConsultations(c echo.Context) error {
	ctx := c.Request().Context()
	data, err := h.svc.ExportConsultations(ctx, auth.ActorFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	name := fmt.Sprintf("consultations-%s.xlsx", h.svc.now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
