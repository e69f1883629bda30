package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares cutoffs between API instances through Redis.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore whose keys live for ttl.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(userID uint) string {
	return "revoked:user:" + strconv.FormatUint(uint64(userID), 10)
}

// Revoke records at as the cutoff for userID, replacing any earlier one.
func (s *RedisStore) Revoke(ctx context.Context, userID uint, at time.Time) error {
	if err := s.rdb.Set(ctx, key(userID), at.Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation for user %d: %w", userID, err)
	}
	return nil
}

// RevokedAt returns the cutoff for userID and whether one is set.
func (s *RedisStore) RevokedAt(ctx context.Context, userID uint) (time.Time, bool, error) {
	unix, err := s.rdb.Get(ctx, key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read revocation for user %d: %w", userID, err)
	}
	return time.Unix(unix, 0), true, nil
}
