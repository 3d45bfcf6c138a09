package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindTooLarge, http.StatusRequestEntityTooLarge},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Errorf("%s.Status() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("delete patient: %w", NotFound("patient"))
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not_found, got %s", KindOf(err))
	}
	if !Is(err, KindNotFound) {
		t.Error("expected Is(err, KindNotFound)")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("expected plain errors to be internal")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause)
	if !errors.Is(err, cause) {
		t.Error("expected Internal to wrap its cause")
	}
	if err.Message != "internal server error" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func serveError(t *testing.T, err error, expose bool) (*httptest.ResponseRecorder, Body) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.New(os.Stderr), expose)(err, c)

	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestHTTPErrorHandler_Conflict(t *testing.T) {
	err := Conflict("scheduling conflict").WithDetails(map[string]interface{}{"appointmentId": 7})
	rec, body := serveError(t, err, false)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if body.Error != "scheduling conflict" {
		t.Errorf("unexpected error message %q", body.Error)
	}
	if body.Details == nil {
		t.Error("expected details to be rendered")
	}
}

func TestHTTPErrorHandler_InternalHidden(t *testing.T) {
	rec, body := serveError(t, Internal(errors.New("pq: secret detail")), false)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Details != nil {
		t.Errorf("expected no details in production mode, got %v", body.Details)
	}
}

func TestHTTPErrorHandler_InternalExposed(t *testing.T) {
	_, body := serveError(t, Internal(errors.New("pq: secret detail")), true)
	if body.Details != "pq: secret detail" {
		t.Errorf("expected cause in details, got %v", body.Details)
	}
}

func TestHTTPErrorHandler_EchoHTTPError(t *testing.T) {
	rec, body := serveError(t, echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), false)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if body.Error != "rate limit exceeded" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHTTPErrorHandler_PlainError(t *testing.T) {
	rec, body := serveError(t, errors.New("unexpected"), false)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Error != "internal server error" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestBadBody(t *testing.T) {
	tooLarge := fmt.Errorf("decode: %w", TooLarge(512))
	if got := BadBody(tooLarge); got.Kind != KindTooLarge {
		t.Errorf("BadBody(too large) kind = %s, want too_large", got.Kind)
	}
	got := BadBody(errors.New("unexpected EOF"))
	if got.Kind != KindValidation || got.Message != "invalid request body" {
		t.Errorf("BadBody(eof) = %+v", got)
	}
}
