// Package session holds the typed per-request identity state.
package session

import "github.com/iliyamo/estate-portal/internal/model"

// AppContext is created when a session is established (sign-in or code
// exchange), rebuilt from the session token on every request, and torn down
// at sign-out.  The zero value means "no session".
type AppContext struct {
	IdentityID string     `json:"id"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
}

// Authenticated reports whether the request carried a valid session.
func (a AppContext) Authenticated() bool { return a.IdentityID != "" }
