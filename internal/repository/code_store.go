package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps one-time sign-up confirmation codes in Redis.  A code maps
// to the identity it confirms and disappears on first use.
type CodeStore struct {
	client redis.UniversalClient
	prefix string
}

func NewCodeStore(client redis.UniversalClient) *CodeStore {
	return &CodeStore{client: client, prefix: "estate:authcode:"}
}

// Save stores code with ttl.
func (s *CodeStore) Save(ctx context.Context, code, identityID string, ttl time.Duration) error {
	if s.client == nil {
		return errors.New("code store: redis unavailable")
	}
	if err := s.client.Set(ctx, s.prefix+code, identityID, ttl).Err(); err != nil {
		return fmt.Errorf("persist code: %w", err)
	}
	return nil
}

// Take atomically reads and deletes code.  An unknown or expired code
// returns ErrNotFound.
func (s *CodeStore) Take(ctx context.Context, code string) (string, error) {
	if s.client == nil {
		return "", errors.New("code store: redis unavailable")
	}
	id, err := s.client.GetDel(ctx, s.prefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load code: %w", err)
	}
	return id, nil
}
