package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// HTTPErrorHandler renders errors returned by handlers and middleware. Internal
// causes are logged; they are only echoed to the client when exposeInternal is
// set (non-production configurations).
func HTTPErrorHandler(logger zerolog.Logger, exposeInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err, exposeInternal)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error, exposeInternal bool) (int, Body) {
	var ae *Error
	if errors.As(err, &ae) {
		body := Body{Error: ae.Message, Details: ae.Details}
		if ae.Kind == KindInternal && exposeInternal && ae.Err != nil && body.Details == nil {
			body.Details = ae.Err.Error()
		}
		return ae.Kind.Status(), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		body := Body{Error: msg}
		if he.Internal != nil && exposeInternal {
			body.Details = he.Internal.Error()
		}
		return he.Code, body
	}

	body := Body{Error: "internal server error"}
	if exposeInternal {
		body.Details = err.Error()
	}
	return http.StatusInternalServerError, body
}
