package model

import "time"

type ResidentStatus string

const (
	ResidentActive  ResidentStatus = "active"
	ResidentPending ResidentStatus = "pending"
)

// Resident is the primary occupant of a block/flat pair.  Its ID equals the
// owning identity's ID.
type Resident struct {
	ID         string         `json:"id"`
	FullName   string         `json:"full_name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone"`
	Block      string         `json:"block"`
	FlatNumber string         `json:"flat_number"`
	AvatarRef  string         `json:"avatar_ref,omitempty"`
	Status     ResidentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
