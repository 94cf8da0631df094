package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIs_MatchesByType(t *testing.T) {
	err := fmt.Errorf("accept consultation: %w", InvalidTransition("consultation is %s", "COMPLETED"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected wrapped error to match ErrInvalidTransition")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect match against ErrNotFound")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{PermissionDenied("nope"), http.StatusForbidden},
		{InvalidTransition("bad"), http.StatusConflict},
		{NotFound("patient", "x"), http.StatusNotFound},
		{Validation("chief_complaint", "chief_complaint is required"), http.StatusUnprocessableEntity},
		{SessionExpired("again"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHTTP_ValidationField(t *testing.T) {
	he := HTTP(Validation("loc", "loc must be between 0 and 3"))
	if he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", he.Code)
	}
	body, ok := he.Message.(map[string]string)
	if !ok {
		t.Fatalf("expected map body, got %T", he.Message)
	}
	if body["field"] != "loc" {
		t.Errorf("expected field loc, got %q", body["field"])
	}
}

func TestHTTP_PassesThroughEchoErrors(t *testing.T) {
	orig := echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	if got := HTTP(orig); got != orig {
		t.Error("expected echo.HTTPError to pass through unchanged")
	}
}

func TestHTTP_InternalHidesCause(t *testing.T) {
	he := HTTP(errors.New("connection refused"))
	if he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("unexpected message %v", he.Message)
	}
	if he.Internal == nil {
		t.Error("expected cause kept as Internal")
	}
}
