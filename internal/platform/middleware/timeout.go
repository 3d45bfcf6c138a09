package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

// RequestTimeout attaches a deadline to the request context. Handlers run
// on the calling goroutine and are expected to honour ctx (pgx does); a
// handler that fails after the deadline has passed, without writing a
// response, is reported as a 504. d <= 0 disables the deadline.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return apperr.Timeout()
			}
			return err
		}
	}
}
