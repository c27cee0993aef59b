package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/repository"
	"github.com/iliyamo/estate-portal/internal/session"
)

type VisitorInput struct {
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Purpose    string    `json:"purpose"`
	ExpectedAt time.Time `json:"expected_at"`
}

// VisitorService keeps the gate log.
type VisitorService struct {
	clock
	Visitors VisitorStore
	Members  MemberStore
}

// household returns the primary resident id the actor registers visitors
// for.
func (s *VisitorService) household(ctx context.Context, actor session.AppContext) (string, error) {
	switch actor.Role {
	case model.RoleResident:
		return actor.IdentityID, nil
	case model.RoleHouseholdMember:
		m, err := s.Members.GetByIdentityID(ctx, actor.IdentityID)
		if err != nil {
			return "", notFoundAs(err, ErrForbidden)
		}
		if m.AccessStatus != model.AccessActive {
			return "", ErrForbidden
		}
		return m.PrimaryResidentID, nil
	case model.RoleAdmin, model.RoleSuperAdmin, model.RoleUnknown:
	}
	return "", ErrForbidden
}

// Register pre-registers a visitor for the actor's household.  A zero
// ExpectedAt means now.
func (s *VisitorService) Register(ctx context.Context, actor session.AppContext, in VisitorInput) (model.Visitor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("name", in.Name); err != nil {
		return model.Visitor{}, err
	}
	hh, err := s.household(ctx, actor)
	if err != nil {
		return model.Visitor{}, err
	}
	now := s.now()
	if in.ExpectedAt.IsZero() {
		in.ExpectedAt = now
	}
	v := model.Visitor{
		ID:           uuid.NewString(),
		ResidentID:   hh,
		RegisteredBy: actor.IdentityID,
		Name:         in.Name,
		Phone:        strings.TrimSpace(in.Phone),
		Purpose:      strings.TrimSpace(in.Purpose),
		ExpectedAt:   in.ExpectedAt.UTC(),
		CreatedAt:    now,
	}
	if err := s.Visitors.Create(ctx, v); err != nil {
		return model.Visitor{}, fmt.Errorf("create visitor: %w", err)
	}
	return v, nil
}

// ListMine returns the visitors of the actor's household.
func (s *VisitorService) ListMine(ctx context.Context, actor session.AppContext) ([]model.Visitor, error) {
	hh, err := s.household(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.Visitors.ListByResident(ctx, hh)
}

// ListDay returns every visitor expected on day's UTC calendar date.
func (s *VisitorService) ListDay(ctx context.Context, day time.Time) ([]model.Visitor, error) {
	if day.IsZero() {
		day = s.now()
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.Visitors.ListBetween(ctx, from, from.Add(24*time.Hour))
}

func (s *VisitorService) CheckIn(ctx context.Context, id string) (model.Visitor, error) {
	return s.transition(ctx, id, s.Visitors.CheckIn)
}

// CheckOut is only allowed after check-in.
func (s *VisitorService) CheckOut(ctx context.Context, id string) (model.Visitor, error) {
	return s.transition(ctx, id, s.Visitors.CheckOut)
}

func (s *VisitorService) transition(ctx context.Context, id string, step func(context.Context, string, time.Time) error) (model.Visitor, error) {
	if err := step(ctx, id, s.now()); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Visitor{}, err
		}
		// no row changed: either the visitor is missing or the state is wrong
		if _, gerr := s.Visitors.GetByID(ctx, id); gerr != nil {
			return model.Visitor{}, notFoundAs(gerr, ErrNotFound)
		}
		return model.Visitor{}, ErrVisitorState
	}
	v, err := s.Visitors.GetByID(ctx, id)
	return v, notFoundAs(err, ErrNotFound)
}
