package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/handler"
	"github.com/iliyamo/estate-portal/internal/middleware"
)

// RegisterAuth registers the identity endpoints.  Credential-bearing POSTs
// are rate limited; the callback is a browser redirect and is not.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter *middleware.RateLimiter) {
	var limited []echo.MiddlewareFunc
	if limiter != nil {
		limited = append(limited, limiter.Handler())
	}

	g := e.Group("/api/auth")
	g.POST("/signup", a.Signup, limited...)
	g.POST("/login", a.Login, limited...)
	g.POST("/refresh", a.Refresh, limited...)
	g.GET("/callback", a.Callback)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, only(everyRole...)...)

	e.POST("/api/invitations/accept", a.AcceptInvitation, limited...)
}
