// Package apperr defines the error taxonomy shared by every API operation and
// the echo error handler that renders it as {"error": ..., "details": ...}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindTooLarge
	KindTimeout
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooLarge:
		return "too_large"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is safe to show to API
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Authentication(msg string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: cause}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// NotFound reports a missing resource. Out-of-scope rows use the same error
// so that other owners' rows cannot be probed.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// TooLarge reports a request body over the configured limit.
func TooLarge(limit int64) *Error {
	return &Error{Kind: KindTooLarge, Message: fmt.Sprintf("request body exceeds %d bytes", limit)}
}

func Timeout() *Error {
	return &Error{Kind: KindTimeout, Message: "request exceeded the time limit"}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests"}
}

// BadBody classifies a request bind failure. Body-size rejections pass
// through; anything else is a validation error.
func BadBody(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindTooLarge {
		return ae
	}
	return Validation("invalid request body")
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
