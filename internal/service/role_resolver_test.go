package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/estate-portal/internal/model"
)

type mapCache struct {
	mu    sync.Mutex
	roles map[string]model.Role
}

func (c *mapCache) Get(_ context.Context, id string) (model.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.roles[id]
	return r, ok
}

func (c *mapCache) Set(_ context.Context, id string, r model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[id] = r
	return nil
}

func (c *mapCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, id)
	return nil
}

func TestResolveStaffTakesPriority(t *testing.T) {
	h := newHarness(t)
	h.db.staff["id-1"] = model.Staff{ID: "id-1", Role: model.StaffSuperAdmin}
	h.db.residents["id-1"] = model.Resident{ID: "id-1"}

	role, err := h.roles.Resolve(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, model.RoleSuperAdmin, role)

	h.db.staff["id-2"] = model.Staff{ID: "id-2", Role: model.StaffAdmin}
	role, err = h.roles.Resolve(context.Background(), "id-2")
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, role)
}

func TestResolveResidentBeforeMember(t *testing.T) {
	h := newHarness(t)
	id := "id-1"
	h.db.residents[id] = model.Resident{ID: id}
	h.db.members["m1"] = model.HouseholdMember{ID: "m1", IdentityID: &id}

	role, err := h.roles.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, model.RoleResident, role)
}

func TestResolveUnknownAndError(t *testing.T) {
	h := newHarness(t)
	role, err := h.roles.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	require.Equal(t, model.RoleUnknown, role)

	h.db.staffErr = errBoom
	role, err = h.roles.Resolve(context.Background(), "ghost")
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, model.RoleUnknown, role)
}

func TestResolveUsesCache(t *testing.T) {
	h := newHarness(t)
	cache := &mapCache{roles: map[string]model.Role{}}
	h.roles.Cache = cache
	h.db.residents["id-1"] = model.Resident{ID: "id-1"}

	role, err := h.roles.Resolve(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, model.RoleResident, role)
	require.Equal(t, model.RoleResident, cache.roles["id-1"])

	// a failing store is not consulted on a hit
	h.db.staffErr = errBoom
	role, err = h.roles.Resolve(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, model.RoleResident, role)

	h.roles.Forget(context.Background(), "id-1")
	_, err = h.roles.Resolve(context.Background(), "id-1")
	require.ErrorIs(t, err, errBoom)
}
