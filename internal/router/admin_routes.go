package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/model"
)

// RegisterAdmin registers staff endpoints.  Admins and super admins share
// them; staff management is for super admins only.
func RegisterAdmin(e *echo.Echo, h Handlers) {
	staff := only(staffRoles...)
	api := e.Group("/api")

	api.GET("/residents", h.Directory.Residents, staff...)
	api.GET("/residents/all", h.Directory.All, staff...)
	api.POST("/send", h.Send.Send, staff...)

	api.GET("/visitors", h.Visitors.Day, staff...)
	api.POST("/visitors/:id/check-in", h.Visitors.CheckIn, staff...)
	api.POST("/visitors/:id/check-out", h.Visitors.CheckOut, staff...)

	api.POST("/updates", h.Updates.Post, staff...)

	api.POST("/amenities", h.Amenities.Create, staff...)
	api.DELETE("/amenities/:id", h.Amenities.Delete, staff...)

	super := only(model.RoleSuperAdmin)
	api.GET("/staff", h.Staff.List, super...)
	api.POST("/staff", h.Staff.Create, super...)
}
