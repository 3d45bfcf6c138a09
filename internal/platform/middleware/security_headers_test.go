package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

func serveWithHeaders(t *testing.T, cfg SecurityConfig, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/patients", nil), rec)
	return rec, SecurityHeaders(cfg)(handler)(c)
}

func TestSecurityHeaders_APIHeaders(t *testing.T) {
	rec, err := serveWithHeaders(t, SecurityConfig{}, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"name": "Maria"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for header, want := range apiHeaders {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("patient data must not be cached, got %q", got)
	}
}

func TestSecurityHeaders_HSTSOnlyWhenEnabled(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	rec, _ := serveWithHeaders(t, SecurityConfig{}, ok)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS by default, got %q", got)
	}

	rec, _ = serveWithHeaders(t, SecurityConfig{HSTS: true}, ok)
	if got := rec.Header().Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("expected HSTS %q, got %q", hstsValue, got)
	}
}

func TestSecurityHeaders_SetOnErrors(t *testing.T) {
	rec, err := serveWithHeaders(t, SecurityConfig{}, func(c echo.Context) error {
		return apperr.NotFound("patient")
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected the handler error to pass through, got %v", err)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on error responses")
	}
}
