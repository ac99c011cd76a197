package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records which webhook deliveries have already been applied.
// Seen is a pure read; a delivery is marked only after its outcome has
// committed, so a failed apply leaves the key unclaimed and the
// provider's retry is processed normally.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) MarkSeen(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
