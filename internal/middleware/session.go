package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/session"
	"github.com/iliyamo/estate-portal/internal/utils"
)

// Cookie names carrying the access and refresh tokens.
const (
	SessionCookie = "estate_session"
	RefreshCookie = "estate_refresh"
)

const appContextKey = "app_context"

// RoleSource resolves the role of an identity when the token does not carry
// a usable one.
type RoleSource interface {
	Resolve(ctx context.Context, identityID string) (model.Role, error)
}

// Session reads the access token from the session cookie or a Bearer header
// and stores the resulting session.AppContext on the echo context.  It never
// rejects a request: an absent or invalid token yields the zero AppContext,
// and the page gate or RequireSession decide what that means.
func Session(secret string, roles RoleSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c.Request())
			if raw == "" {
				if ck, err := c.Cookie(SessionCookie); err == nil {
					raw = ck.Value
				}
			}
			var ac session.AppContext
			if raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					ac = session.AppContext{IdentityID: claims.Subject, Email: claims.Email, Role: model.ParseRole(claims.Role)}
					if !ac.Role.Known() && roles != nil {
						// resolution errors leave the role unknown, which the gate sends to login
						ac.Role, _ = roles.Resolve(c.Request().Context(), ac.IdentityID)
					}
				}
			}
			c.Set(appContextKey, ac)
			return next(c)
		}
	}
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// AppContextFrom returns the request's AppContext, or the zero value when
// Session did not run.
func AppContextFrom(c echo.Context) session.AppContext {
	ac, _ := c.Get(appContextKey).(session.AppContext)
	return ac
}

// WithAppContext stores ac on c.  Handler tests use it to skip token
// parsing.
func WithAppContext(c echo.Context, ac session.AppContext) { c.Set(appContextKey, ac) }

// RequireSession rejects API requests without a valid session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac := AppContextFrom(c)
			if !ac.Authenticated() || !ac.Role.Known() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			return next(c)
		}
	}
}
