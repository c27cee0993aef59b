package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/repository"
)

// RoleResolver maps an identity to its single role.  Tables are consulted in
// priority order staff, residents, household members; the first match wins.
type RoleResolver struct {
	Staff     StaffStore
	Residents ResidentStore
	Members   MemberStore
	Cache     RoleCache
	Log       *zap.Logger
}

// Resolve returns RoleUnknown with a nil error when the identity has no
// profile row, and RoleUnknown with the error when a lookup fails.  Callers
// treat both as unauthenticated.
func (r *RoleResolver) Resolve(ctx context.Context, identityID string) (model.Role, error) {
	if identityID == "" {
		return model.RoleUnknown, nil
	}
	if r.Cache != nil {
		if role, ok := r.Cache.Get(ctx, identityID); ok {
			return role, nil
		}
	}
	role, err := r.lookup(ctx, identityID)
	if err != nil {
		return model.RoleUnknown, err
	}
	if role.Known() && r.Cache != nil {
		if err := r.Cache.Set(ctx, identityID, role); err != nil {
			r.logger().Warn("role cache write failed", zap.String("identity_id", identityID), zap.Error(err))
		}
	}
	return role, nil
}

func (r *RoleResolver) lookup(ctx context.Context, identityID string) (model.Role, error) {
	st, err := r.Staff.GetByID(ctx, identityID)
	switch {
	case err == nil:
		return st.Role.Role(), nil
	case !errors.Is(err, repository.ErrNotFound):
		return model.RoleUnknown, fmt.Errorf("lookup staff: %w", err)
	}

	if _, err := r.Residents.GetByID(ctx, identityID); err == nil {
		return model.RoleResident, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.RoleUnknown, fmt.Errorf("lookup resident: %w", err)
	}

	if _, err := r.Members.GetByIdentityID(ctx, identityID); err == nil {
		return model.RoleHouseholdMember, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.RoleUnknown, fmt.Errorf("lookup household member: %w", err)
	}
	return model.RoleUnknown, nil
}

// Forget evicts the cached role of identityID.
func (r *RoleResolver) Forget(ctx context.Context, identityID string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Forget(ctx, identityID); err != nil {
		r.logger().Warn("role cache evict failed", zap.String("identity_id", identityID), zap.Error(err))
	}
}

func (r *RoleResolver) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
