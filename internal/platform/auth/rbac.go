package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects requests whose actor does not hold one of caps. Route
// groups use it as a coarse gate; services still check their own guards.
func RequireRole(caps ...Capability) echo.MiddlewareFunc {
	guard := AnyOf(caps...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if err := guard.Check(actor); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			return next(c)
		}
	}
}

// RequireAuthenticated rejects requests carrying no user identity.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ActorFromContext(c.Request().Context()).Authenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
