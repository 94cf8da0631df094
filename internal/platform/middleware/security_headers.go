package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders marks every response as non-cacheable, non-framable JSON.
// HSTS is only sent when tls is true since development runs over plain HTTP.
func SecurityHeaders(tls bool) echo.MiddlewareFunc {
	static := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Referrer-Policy", "no-referrer"},
		{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
	}
	if tls {
		static = append(static, [2]string{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"})
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range static {
				h.Set(kv[0], kv[1])
			}
			return next(c)
		}
	}
}
