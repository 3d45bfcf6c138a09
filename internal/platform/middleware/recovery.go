package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

// Recovery turns a handler panic into a 500 with the standard error body.
// It logs through the request logger when Logger has already installed one,
// so the entry carries the request id.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				l := &logger
				if reqLogger := zerolog.Ctx(c.Request().Context()); reqLogger.GetLevel() != zerolog.Disabled {
					l = reqLogger
				}
				l.Error().
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = apperr.Internal(fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
