package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
	"github.com/iliyamo/estate-portal/internal/session"
)

// ProfileSource loads the signed-in profile for dashboard pages.
type ProfileSource interface {
	Profile(ctx context.Context, ac session.AppContext) (service.Profile, error)
}

// PagesHandler renders the JSON view models of the navigable pages.  Access
// to them is decided by middleware.PageGate before any handler runs.
type PagesHandler struct {
	Profiles ProfileSource
	Log      *zap.Logger
}

func NewPagesHandler(p ProfileSource, log *zap.Logger) *PagesHandler {
	return &PagesHandler{Profiles: p, Log: log}
}

type link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

type pageView struct {
	Page    string              `json:"page"`
	User    *session.AppContext `json:"user,omitempty"`
	Profile *service.Profile    `json:"profile,omitempty"`
	Links   []link              `json:"links,omitempty"`
	Params  map[string]string   `json:"params,omitempty"`
}

func (h *PagesHandler) Home(c echo.Context) error {
	v := pageView{Page: "home", Links: []link{{"Sign in", "/login"}, {"Register", "/signup"}}}
	if ac := middleware.AppContextFrom(c); ac.Authenticated() && ac.Role.Known() {
		v.User = &ac
		v.Links = []link{{"Dashboard", model.DashboardPath(ac.Role)}}
	}
	return c.JSON(http.StatusOK, v)
}

func (h *PagesHandler) Login(c echo.Context) error {
	return c.JSON(http.StatusOK, pageView{Page: "login", Params: queryParams(c, "error", "next")})
}

func (h *PagesHandler) Signup(c echo.Context) error {
	return c.JSON(http.StatusOK, pageView{Page: "signup"})
}

// Invite shows the accept form for the token in the emailed link.
func (h *PagesHandler) Invite(c echo.Context) error {
	return c.JSON(http.StatusOK, pageView{Page: "invite", Params: queryParams(c, "token")})
}

func (h *PagesHandler) Dashboard(c echo.Context) error {
	return h.area(c, "dashboard", []link{
		{"Household members", "/api/household/members"},
		{"Visitors", "/api/visitors/mine"},
		{"Community updates", "/api/updates"},
		{"Amenities", "/api/amenities"},
	})
}

func (h *PagesHandler) Household(c echo.Context) error {
	return h.area(c, "household", []link{
		{"Visitors", "/api/visitors/mine"},
		{"Community updates", "/api/updates"},
		{"Amenities", "/api/amenities"},
	})
}

func (h *PagesHandler) Admin(c echo.Context) error {
	return h.area(c, "admin", []link{
		{"Residents", "/api/residents/all"},
		{"Visitors today", "/api/visitors"},
		{"Post update", "/api/updates"},
		{"Amenities", "/api/amenities"},
	})
}

func (h *PagesHandler) SuperAdmin(c echo.Context) error {
	return h.area(c, "superadmin", []link{
		{"Staff", "/api/staff"},
		{"Admin area", "/admin"},
		{"Residents", "/api/residents/all"},
	})
}

func (h *PagesHandler) area(c echo.Context, page string, links []link) error {
	ac := middleware.AppContextFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Profiles.Profile(ctx, ac)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pageView{Page: page, User: &ac, Profile: &p, Links: links})
}

func queryParams(c echo.Context, names ...string) map[string]string {
	var out map[string]string
	for _, n := range names {
		if v := c.QueryParam(n); v != "" {
			if out == nil {
				out = map[string]string{}
			}
			out[n] = v
		}
	}
	return out
}
