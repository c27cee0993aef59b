package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/estate-portal/internal/model"
)

// RoleCache memoizes resolved roles in Redis.  A nil client turns every
// method into a miss so callers fall through to the database.
type RoleCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRoleCache(client redis.UniversalClient, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

func roleKey(identityID string) string { return "estate:role:" + identityID }

// Get returns the cached role.  ok is false on a miss or a Redis error.
func (c *RoleCache) Get(ctx context.Context, identityID string) (model.Role, bool) {
	if c == nil || c.client == nil {
		return model.RoleUnknown, false
	}
	v, err := c.client.Get(ctx, roleKey(identityID)).Result()
	if err != nil {
		return model.RoleUnknown, false
	}
	r := model.ParseRole(v)
	return r, r.Known()
}

// Set caches a known role.  Unknown roles are never cached.
func (c *RoleCache) Set(ctx context.Context, identityID string, role model.Role) error {
	if c == nil || c.client == nil || !role.Known() {
		return nil
	}
	return c.client.Set(ctx, roleKey(identityID), role.String(), c.ttl).Err()
}

// Forget evicts a cached role.
func (c *RoleCache) Forget(ctx context.Context, identityID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, roleKey(identityID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
