package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityConfig selects the transport-dependent headers.
type SecurityConfig struct {
	// HSTS pins browsers to HTTPS. Only enable it where TLS terminates in
	// front of the server, otherwise local clients get locked out.
	HSTS bool
}

// apiHeaders apply to every response of the JSON API. Bodies carry clinical
// notes, so nothing may be cached, framed or sniffed.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
	"Cache-Control":           "no-store",
	"Pragma":                  "no-cache",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the API's security headers before the handler runs,
// so error responses carry them too.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		}
	}
}
