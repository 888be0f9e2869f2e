package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/duolog/duolog-server/internal/cache"
)

// MemoryStore is the in-process window counter used when no shared store
// is configured. Counters live in a TTL cache so abandoned identities age
// out on their own.
type MemoryStore struct {
	counters *cache.TTLCache[string, int64]
}

// NewMemoryStore creates an in-memory window store.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		counters: cache.NewTTLCache[string, int64](maxEntries, ttl),
	}
}

// Incr bumps the counter for identity in the current window.
func (s *MemoryStore) Incr(_ context.Context, identity string) (int64, error) {
	window, _ := currentWindow(time.Now())
	key := fmt.Sprintf("%s:%d", identity, window)
	count, ok := s.counters.Modify(key, func(current int64, _ bool) int64 { return current + 1 })
	if !ok {
		return 0, nil
	}
	return count, nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)
