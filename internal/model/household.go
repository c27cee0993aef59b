package model

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationSent     InvitationStatus = "sent"
	InvitationAccepted InvitationStatus = "accepted"
)

type AccessStatus string

const (
	AccessActive     AccessStatus = "active"
	AccessRestricted AccessStatus = "restricted"
	AccessSuspended  AccessStatus = "suspended"
)

// Valid reports whether s is one of the stored access states.
func (s AccessStatus) Valid() bool {
	return s == AccessActive || s == AccessRestricted || s == AccessSuspended
}

// HouseholdMember is a secondary occupant linked to a primary resident.  It
// has no block/flat of its own; readers take them from the primary resident.
// IdentityID stays nil until the invitation is accepted.
type HouseholdMember struct {
	ID                string           `json:"id"`
	IdentityID        *string          `json:"identity_id,omitempty"`
	PrimaryResidentID string           `json:"primary_resident_id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Phone             string           `json:"phone"`
	Relationship      string           `json:"relationship"`
	InvitationStatus  InvitationStatus `json:"invitation_status"`
	AccessStatus      AccessStatus     `json:"access_status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// MemberInvitation activates one household member.  Only the SHA-256 of the
// token is stored.
type MemberInvitation struct {
	ID                 string
	MemberID           string
	TokenHash          string
	TempCredentialHash string
	ExpiresAt          time.Time
	ConsumedAt         *time.Time
	CreatedAt          time.Time
}

// Usable reports whether the invitation can still be accepted at now.
func (i MemberInvitation) Usable(now time.Time) bool {
	return i.ConsumedAt == nil && now.Before(i.ExpiresAt)
}

// DirectoryEntry is the normalized row of the resident directory.  Primary
// residents and household members share this shape.
type DirectoryEntry struct {
	ID                string `json:"id"`
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Block             string `json:"block"`
	FlatNumber        string `json:"flat_number"`
	Status            string `json:"status"`
	Relationship      string `json:"relationship,omitempty"`
	PrimaryResidentID string `json:"primary_resident_id,omitempty"`
	IsPrimaryResident bool   `json:"is_primary_resident"`
}
