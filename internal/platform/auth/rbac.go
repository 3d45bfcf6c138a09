package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

// RequireRole returns middleware that checks if the principal has one of the
// specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := MustPrincipal(c.Request().Context())
			if err != nil {
				return err
			}
			if HasRole(p, roles...) {
				return next(c)
			}
			return apperr.Forbidden(fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether p holds one of roles.
func HasRole(p Principal, roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
