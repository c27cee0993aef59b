package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/access"
)

// PageGate applies the access table to every GET/HEAD navigation.  Denials
// are 302 redirects, never JSON errors.
func PageGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return next(c)
			}
			ac := AppContextFrom(c)
			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}
			d := access.Decide(access.Request{HasSession: ac.Authenticated(), Path: path, Role: ac.Role})
			if d.Action == access.Redirect {
				return c.Redirect(http.StatusFound, d.Location)
			}
			return next(c)
		}
	}
}
