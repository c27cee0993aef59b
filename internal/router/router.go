// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/handler"
	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
)

// Handlers groups every HTTP handler the server exposes.
type Handlers struct {
	Auth      *handler.AuthHandler
	Pages     *handler.PagesHandler
	Directory *handler.DirectoryHandler
	Send      *handler.SendHandler
	Household *handler.HouseholdHandler
	Visitors  *handler.VisitorsHandler
	Updates   *handler.UpdatesHandler
	Amenities *handler.AmenitiesHandler
	Staff     *handler.StaffHandler
	Ready     echo.HandlerFunc
}

// Options carries the session secret and the optional Redis-backed guards.
// A nil Limiter or Cache disables that guard.
type Options struct {
	JWTSecret string
	Roles     middleware.RoleSource
	Limiter   *middleware.RateLimiter
	Cache     *middleware.ResponseCache
	Log       *zap.Logger
}

var (
	staffRoles     = []model.Role{model.RoleAdmin, model.RoleSuperAdmin}
	householdRoles = []model.Role{model.RoleResident, model.RoleHouseholdMember}
	everyRole      = []model.Role{model.RoleResident, model.RoleHouseholdMember, model.RoleAdmin, model.RoleSuperAdmin}
)

// only requires a session whose role is one of roles.
func only(roles ...model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.RequireSession(), middleware.RequireRole(roles...)}
}

// New builds the echo instance.  Every request passes through the request
// logger, panic recovery, session decoding and the page gate, in that order.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		middleware.RequestLogger(opt.Log),
		echomw.Recover(),
		middleware.Session(opt.JWTSecret, opt.Roles),
		middleware.PageGate(),
	)

	RegisterRoutes(e, h.Ready)
	RegisterPages(e, h.Pages)
	RegisterAuth(e, h.Auth, opt.Limiter)
	RegisterAdmin(e, h)
	RegisterHousehold(e, h)
	RegisterCommunity(e, h, opt.Cache)
	return e
}

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterPages registers the navigable pages.  Access is enforced by
// middleware.PageGate, so no per-route guard is attached here.
func RegisterPages(e *echo.Echo, p *handler.PagesHandler) {
	e.GET("/", p.Home)
	e.GET("/login", p.Login)
	e.GET("/signup", p.Signup)
	e.GET("/invite", p.Invite)
	e.GET("/dashboard", p.Dashboard)
	e.GET("/household", p.Household)
	e.GET("/admin", p.Admin)
	e.GET("/superadmin", p.SuperAdmin)
}
