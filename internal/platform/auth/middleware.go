package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

// Verifier turns a bearer token into the current principal. Implementations
// must re-read the account so that deleted or deactivated users are rejected.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// Authenticate returns middleware that requires a valid bearer token on every
// request not matched by skipper, and stores the resulting Principal in the
// request context.
func Authenticate(v Verifier, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			tokenStr, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return AsAppError(err)
			}

			p, err := v.VerifyToken(c.Request().Context(), tokenStr)
			if err != nil {
				return AsAppError(err)
			}

			c.Set("user_id", p.ID)
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// AsAppError maps credential and session failures onto 401 application
// errors. Other errors are returned unchanged.
func AsAppError(err error) error {
	switch {
	case errors.Is(err, ErrMissingToken):
		return apperr.Authentication("missing bearer token", err)
	case errors.Is(err, ErrExpiredToken):
		return apperr.Authentication("token expired", err)
	case errors.Is(err, ErrInvalidToken):
		return apperr.Authentication("invalid token", err)
	case errors.Is(err, ErrUserNotFound):
		return apperr.Authentication("user not found", err)
	case errors.Is(err, ErrAccountDisabled):
		return apperr.Authentication("account is disabled", err)
	case errors.Is(err, ErrInvalidCredentials):
		return apperr.Authentication("invalid credentials", err)
	}
	return err
}

// MustPrincipal returns the principal from ctx, or a 401 error when the
// request was not authenticated.
func MustPrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, apperr.Authentication("missing bearer token", ErrMissingToken)
	}
	return p, nil
}
