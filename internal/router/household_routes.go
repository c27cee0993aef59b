package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
)

// RegisterHousehold registers the endpoints of primary residents and their
// household members.  Staff may change a member's access status.
func RegisterHousehold(e *echo.Echo, h Handlers) {
	owner := only(model.RoleResident)
	g := e.Group("/api/household/members")
	g.GET("", h.Household.List, owner...)
	g.POST("", h.Household.Add, owner...)
	g.PATCH("/:id/access", h.Household.SetAccess, only(model.RoleResident, model.RoleAdmin, model.RoleSuperAdmin)...)
	g.DELETE("/:id", h.Household.Remove, owner...)
	g.POST("/:id/resend", h.Household.Resend, owner...)

	occupants := only(householdRoles...)
	e.POST("/api/visitors", h.Visitors.Register, occupants...)
	e.GET("/api/visitors/mine", h.Visitors.Mine, occupants...)
}

// RegisterCommunity registers what every signed-in role can read.  The
// amenity listing goes through the response cache when one is configured.
func RegisterCommunity(e *echo.Echo, h Handlers, cache *middleware.ResponseCache) {
	signedIn := only(everyRole...)
	api := e.Group("/api")

	api.GET("/updates", h.Updates.List, signedIn...)
	api.GET("/updates/unread", h.Updates.Unread, signedIn...)
	api.GET("/updates/stream", h.Updates.Stream, signedIn...)
	api.POST("/updates/:id/read", h.Updates.MarkRead, signedIn...)

	list := signedIn
	if cache != nil {
		list = append(append([]echo.MiddlewareFunc{}, signedIn...), cache.Handler())
	}
	api.GET("/amenities", h.Amenities.List, list...)
}
