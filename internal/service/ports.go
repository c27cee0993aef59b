// Package service implements the estate portal's business operations on top
// of small storage interfaces.  The MySQL and Redis repositories satisfy them
// in production; tests use in-memory fakes.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/estate-portal/internal/model"
)

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type IdentityStore interface {
	Create(ctx context.Context, id model.Identity) error
	GetByEmail(ctx context.Context, email string) (model.Identity, error)
	GetByID(ctx context.Context, id string) (model.Identity, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkConfirmed(ctx context.Context, id string, at time.Time) error
}

type ResidentStore interface {
	Create(ctx context.Context, r model.Resident) error
	GetByID(ctx context.Context, id string) (model.Resident, error)
	FlatTaken(ctx context.Context, block, flat string) (bool, error)
	List(ctx context.Context) ([]model.Resident, error)
	SetStatus(ctx context.Context, id string, status model.ResidentStatus) error
}

type MemberStore interface {
	Create(ctx context.Context, m model.HouseholdMember) error
	GetByID(ctx context.Context, id string) (model.HouseholdMember, error)
	GetByIdentityID(ctx context.Context, identityID string) (model.HouseholdMember, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListByResident(ctx context.Context, residentID string) ([]model.HouseholdMember, error)
	List(ctx context.Context) ([]model.HouseholdMember, error)
	SetInvitationStatus(ctx context.Context, id string, status model.InvitationStatus) error
	Accept(ctx context.Context, id, identityID string) error
	SetAccessStatus(ctx context.Context, id string, status model.AccessStatus) error
	Delete(ctx context.Context, id string) error
}

type InvitationStore interface {
	Create(ctx context.Context, inv model.MemberInvitation) error
	GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (model.MemberInvitation, error)
	Consume(ctx context.Context, id string, at time.Time) error
	InvalidateForMember(ctx context.Context, memberID string, at time.Time) error
}

type StaffStore interface {
	Create(ctx context.Context, s model.Staff) error
	GetByID(ctx context.Context, id string) (model.Staff, error)
	List(ctx context.Context) ([]model.Staff, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, identityID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForIdentity(ctx context.Context, identityID string) error
}

// CodeStore keeps one-time confirmation codes.
type CodeStore interface {
	Save(ctx context.Context, code, identityID string, ttl time.Duration) error
	Take(ctx context.Context, code string) (string, error)
}

// RoleCache fronts role lookups.  A miss or a cache failure returns ok=false.
type RoleCache interface {
	Get(ctx context.Context, identityID string) (model.Role, bool)
	Set(ctx context.Context, identityID string, role model.Role) error
	Forget(ctx context.Context, identityID string) error
}

type VisitorStore interface {
	Create(ctx context.Context, v model.Visitor) error
	GetByID(ctx context.Context, id string) (model.Visitor, error)
	ListByResident(ctx context.Context, residentID string) ([]model.Visitor, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Visitor, error)
	CheckIn(ctx context.Context, id string, at time.Time) error
	CheckOut(ctx context.Context, id string, at time.Time) error
}

type UpdateStore interface {
	Create(ctx context.Context, u model.CommunityUpdate) error
	ListFor(ctx context.Context, identityID string, limit int) ([]model.CommunityUpdate, error)
	MarkRead(ctx context.Context, updateID, identityID string) error
	UnreadCount(ctx context.Context, identityID string) (int, error)
}

type AmenityStore interface {
	Create(ctx context.Context, a model.Amenity) error
	List(ctx context.Context) ([]model.Amenity, error)
	Delete(ctx context.Context, id string) error
}

// clock is embedded by services that stamp times.  Tests set Now.
type clock struct {
	Now func() time.Time
}

func (c clock) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}
