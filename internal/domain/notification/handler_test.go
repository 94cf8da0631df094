package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
)

func withActor(req *http.Request, a auth.Actor) *http.Request {
	return req.WithContext(auth.WithActor(req.Context(), a))
}

func TestHandler_List(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	user := uuid.New()
	_ = svc.Notify(context.Background(), user, Message{Type: TypeSystem, Title: "Abnormal Vital Sign - Jane Doe"})

	req := withActor(httptest.NewRequest(http.MethodGet, "/notifications", nil), actorFor(user))
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		UnreadCount int `json:"unread_count"`
		Page        struct {
			Total int `json:"total"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UnreadCount != 1 || body.Page.Total != 1 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetRedirect(t *testing.T) {
	svc, repo, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	user := uuid.New()
	_ = svc.Notify(context.Background(), user, Message{Type: TypeSystem, Title: "x", RelatedURL: "/api/v1/patients/abc"})
	items, _, _ := repo.ListByUser(context.Background(), user, false, 1, 0)

	req := withActor(httptest.NewRequest(http.MethodGet, "/notifications/x?redirect=true", nil), actorFor(user))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(items[0].ID.String())

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/api/v1/patients/abc" {
		t.Errorf("expected redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandler_MarkRead_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), actorFor(uuid.New()))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.MarkRead(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
