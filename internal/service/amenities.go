package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/repository"
)

// ErrAmenityExists is returned when an amenity name is reused.
var ErrAmenityExists = errors.New("an amenity with this name already exists")

type AmenityInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	OpensAt     string `json:"opens_at"`
	ClosesAt    string `json:"closes_at"`
	Bookable    bool   `json:"bookable"`
}

type AmenityService struct {
	clock
	Amenities AmenityStore
}

func (s *AmenityService) List(ctx context.Context) ([]model.Amenity, error) {
	return s.Amenities.List(ctx)
}

func (s *AmenityService) Create(ctx context.Context, in AmenityInput) (model.Amenity, error) {
	a := model.Amenity{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		OpensAt:     strings.TrimSpace(in.OpensAt),
		ClosesAt:    strings.TrimSpace(in.ClosesAt),
		Bookable:    in.Bookable,
		CreatedAt:   s.now(),
	}
	if err := required("name", a.Name); err != nil {
		return model.Amenity{}, err
	}
	if err := s.Amenities.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Amenity{}, ErrAmenityExists
		}
		return model.Amenity{}, fmt.Errorf("create amenity: %w", err)
	}
	return a, nil
}

func (s *AmenityService) Delete(ctx context.Context, id string) error {
	return notFoundAs(s.Amenities.Delete(ctx, id), ErrNotFound)
}
