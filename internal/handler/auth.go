package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
	"github.com/iliyamo/estate-portal/internal/session"
)

// IdentityAPI is the part of service.IdentityService the auth endpoints use.
type IdentityAPI interface {
	SignUp(ctx context.Context, in service.SignUpInput) (model.Resident, error)
	ExchangeCode(ctx context.Context, code string) (service.Session, error)
	SignIn(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	SignOut(ctx context.Context, identityID string) error
	Profile(ctx context.Context, ac session.AppContext) (service.Profile, error)
}

// InvitationAPI accepts household invitations.
type InvitationAPI interface {
	AcceptInvitation(ctx context.Context, token, password string) (model.HouseholdMember, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Identity     IdentityAPI
	Invitations  InvitationAPI
	CookieSecure bool
	Log          *zap.Logger
}

func NewAuthHandler(identity IdentityAPI, invitations InvitationAPI, cookieSecure bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Identity: identity, Invitations: invitations, CookieSecure: cookieSecure, Log: log}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type acceptReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Signup registers a primary resident.  The session is only opened once the
// emailed code is exchanged through Callback.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignUpInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Identity.SignUp(ctx, req); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Registration successful. Please check your email to confirm your account.",
	})
}

// Callback exchanges a confirmation code for a session and lands the user on
// their dashboard.  Every failure becomes a redirect to the login page.
func (h *AuthHandler) Callback(c echo.Context) error {
	code := strings.TrimSpace(c.QueryParam("code"))
	if code == "" {
		return c.Redirect(http.StatusFound, loginError("missing code"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.ExchangeCode(ctx, code)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			logger(h.Log).Error("code exchange failed", zap.String("request_id", requestID(c)), zap.Error(err))
		}
		return c.Redirect(http.StatusFound, loginError(publicMessage(err, status)))
	}
	h.setSession(c, sess)
	return c.Redirect(http.StatusFound, model.DashboardPath(sess.User.Role))
}

func loginError(msg string) string {
	return "/login?error=" + url.QueryEscape(msg)
}

// Login verifies credentials and opens a session.  Tokens are returned in
// the body and set as cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSession(c, sess)
	return c.JSON(http.StatusOK, sess)
}

// Refresh rotates the refresh token.  It is read from the body or, for
// browser clients, from the refresh cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.Refresh(ctx, raw)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSession(c, sess)
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes refresh tokens and clears the cookies.  It succeeds for
// anonymous callers too.
func (h *AuthHandler) Logout(c echo.Context) error {
	ac := middleware.AppContextFrom(c)
	if ac.Authenticated() {
		ctx, cancel := reqCtx(c)
		defer cancel()
		if err := h.Identity.SignOut(ctx, ac.IdentityID); err != nil {
			return fail(c, h.Log, err)
		}
	}
	h.clearSession(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Identity.Profile(ctx, middleware.AppContextFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// AcceptInvitation activates a household member.  An empty password keeps
// the temporary credential from the invite email.
func (h *AuthHandler) AcceptInvitation(c echo.Context) error {
	var req acceptReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return badRequest(c, service.ErrInvalidInvitation.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Invitations.AcceptInvitation(ctx, strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Invitation accepted. You can now sign in.", "member": m})
}

func (h *AuthHandler) setSession(c echo.Context, s service.Session) {
	c.SetCookie(h.cookie(middleware.SessionCookie, s.AccessToken, "/", s.AccessExpires))
	c.SetCookie(h.cookie(middleware.RefreshCookie, s.RefreshToken, "/api/auth", s.RefreshExpires))
}

func (h *AuthHandler) clearSession(c echo.Context) {
	for _, ck := range []*http.Cookie{
		h.cookie(middleware.SessionCookie, "", "/", time.Unix(0, 0)),
		h.cookie(middleware.RefreshCookie, "", "/api/auth", time.Unix(0, 0)),
	} {
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
