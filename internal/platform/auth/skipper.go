package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns served without a bearer token: infrastructure
// endpoints and the anonymous patient portal, which has its own session channel.
var publicPaths = map[string]bool{
	"/health":                  true,
	"/health/db":               true,
	"/metrics":                 true,
	"/api/v1/portal/access":    true,
	"/api/v1/portal/dashboard": true,
	"/api/v1/portal/session":   true,
}

// AuthSkipper returns true for requests whose matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
