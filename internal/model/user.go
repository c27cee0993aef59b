package model

import "time"

// Identity is an authenticated principal.  It carries credentials only; the
// profile and the role live in exactly one of the staff, residents or
// household_members tables.
type Identity struct {
	ID               string     // identities.id (UUID)
	Email            string     // identities.email, lower-cased and unique
	PasswordHash     string     // identities.password_hash (bcrypt)
	EmailConfirmedAt *time.Time // identities.email_confirmed_at
	CreatedAt        time.Time  // identities.created_at
}

// Confirmed reports whether the identity finished email confirmation.
func (i Identity) Confirmed() bool { return i.EmailConfirmedAt != nil }

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID         uint64     // refresh_tokens.id
	IdentityID string     // refresh_tokens.identity_id
	TokenHash  string     // refresh_tokens.token_hash
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt  time.Time  // refresh_tokens.created_at
}

// StaffRole is the value stored in staff.role.
type StaffRole string

const (
	StaffAdmin      StaffRole = "admin"
	StaffSuperAdmin StaffRole = "superadmin"
)

// Role maps the stored staff role onto the authorization enum.
func (s StaffRole) Role() Role {
	switch s {
	case StaffAdmin:
		return RoleAdmin
	case StaffSuperAdmin:
		return RoleSuperAdmin
	}
	return RoleUnknown
}

// Staff is an estate admin or super admin.  Staff identities never own a
// residence record.
type Staff struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Role      StaffRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
