package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/estate-portal/internal/model"
)

// DirectoryService lists everyone living on the estate.
type DirectoryService struct {
	Residents ResidentStore
	Members   MemberStore
}

func (d *DirectoryService) ListResidents(ctx context.Context) ([]model.Resident, error) {
	return d.Residents.List(ctx)
}

// ListAll fetches residents and members concurrently and merges them.
func (d *DirectoryService) ListAll(ctx context.Context) ([]model.DirectoryEntry, error) {
	var (
		residents []model.Resident
		members   []model.HouseholdMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if residents, err = d.Residents.List(gctx); err != nil {
			return fmt.Errorf("list residents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if members, err = d.Members.List(gctx); err != nil {
			return fmt.Errorf("list household members: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(residents, members), nil
}

// Merge normalizes residents and members into one listing, residents first.
// Members take block and flat from their primary resident; a member whose
// resident is missing keeps them empty.
func Merge(residents []model.Resident, members []model.HouseholdMember) []model.DirectoryEntry {
	byID := make(map[string]model.Resident, len(residents))
	out := make([]model.DirectoryEntry, 0, len(residents)+len(members))
	for _, r := range residents {
		byID[r.ID] = r
		out = append(out, model.DirectoryEntry{
			ID:                r.ID,
			FullName:          r.FullName,
			Email:             r.Email,
			Phone:             r.Phone,
			Block:             r.Block,
			FlatNumber:        r.FlatNumber,
			Status:            string(r.Status),
			IsPrimaryResident: true,
		})
	}
	for _, m := range members {
		owner := byID[m.PrimaryResidentID]
		out = append(out, model.DirectoryEntry{
			ID:                m.ID,
			FullName:          m.Name,
			Email:             m.Email,
			Phone:             m.Phone,
			Block:             owner.Block,
			FlatNumber:        owner.FlatNumber,
			Status:            string(m.AccessStatus),
			Relationship:      m.Relationship,
			PrimaryResidentID: m.PrimaryResidentID,
		})
	}
	return out
}

// Filter keeps entries whose name, email, block or flat contains query,
// ignoring case.  An empty query keeps everything.
func Filter(entries []model.DirectoryEntry, query string) []model.DirectoryEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	out := make([]model.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.FullName), q) ||
			strings.Contains(strings.ToLower(e.Email), q) ||
			strings.Contains(strings.ToLower(e.Block), q) ||
			strings.Contains(strings.ToLower(e.FlatNumber), q) {
			out = append(out, e)
		}
	}
	return out
}
