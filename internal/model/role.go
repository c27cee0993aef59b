package model

import "fmt"

// Role is the single authorization role of an identity.  The set is closed:
// every switch over Role must handle all five values.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleResident
	RoleHouseholdMember
	RoleAdmin
	RoleSuperAdmin
)

// String returns the wire name used in JWT claims and JSON.
func (r Role) String() string {
	switch r {
	case RoleResident:
		return "resident"
	case RoleHouseholdMember:
		return "household_member"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	case RoleUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole maps a wire name back to a Role.  Anything unrecognised is
// RoleUnknown.
func ParseRole(s string) Role {
	switch s {
	case "resident":
		return RoleResident
	case "household_member":
		return RoleHouseholdMember
	case "admin":
		return RoleAdmin
	case "super_admin", "superadmin":
		return RoleSuperAdmin
	}
	return RoleUnknown
}

// Known reports whether r is one of the four assignable roles.
func (r Role) Known() bool { return r != RoleUnknown && r <= RoleSuperAdmin }

// IsStaff reports whether r belongs to the staff identity space.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// DashboardPath is the landing page for each role.  Unknown roles are sent to
// the login page.
func DashboardPath(r Role) string {
	switch r {
	case RoleResident:
		return "/dashboard"
	case RoleHouseholdMember:
		return "/household"
	case RoleAdmin:
		return "/admin"
	case RoleSuperAdmin:
		return "/superadmin"
	case RoleUnknown:
		return "/login"
	}
	return "/login"
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
