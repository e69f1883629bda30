package revocation

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store. Cutoffs expire after ttl, once every
// token they could reject has expired on its own.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates a MemoryStore whose entries live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, ttl/10+time.Minute),
		ttl:   ttl,
	}
}

// Revoke records at as the cutoff for userID, replacing any earlier one.
func (s *MemoryStore) Revoke(_ context.Context, userID uint, at time.Time) error {
	s.cache.Set(strconv.FormatUint(uint64(userID), 10), at, s.ttl)
	return nil
}

// RevokedAt returns the cutoff for userID and whether one is set.
func (s *MemoryStore) RevokedAt(_ context.Context, userID uint) (time.Time, bool, error) {
	v, ok := s.cache.Get(strconv.FormatUint(uint64(userID), 10))
	if !ok {
		return time.Time{}, false, nil
	}
	return v.(time.Time), true, nil
}
