package model

import "time"

// Visitor is a guest pre-registered for a household.  Block and FlatNumber
// are joined from the resident when listing and are never stored on the row.
type Visitor struct {
	ID           string     `json:"id"`
	ResidentID   string     `json:"resident_id"`
	RegisteredBy string     `json:"registered_by"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Purpose      string     `json:"purpose"`
	ExpectedAt   time.Time  `json:"expected_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Block        string     `json:"block,omitempty"`
	FlatNumber   string     `json:"flat_number,omitempty"`
}

// Amenity is a shared estate facility.
type Amenity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	OpensAt     string    `json:"opens_at"`
	ClosesAt    string    `json:"closes_at"`
	Bookable    bool      `json:"bookable"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommunityUpdate is an announcement posted by staff.  Read is computed per
// viewer.
type CommunityUpdate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}
