package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis/pkg/requestcontext"
)

// InMemoryStore implements the sliding-window log in process memory with
// the same semantics as RedisStore. Suitable for tests and single-instance
// deployments only: counts are not shared across instances.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewInMemory creates an empty in-memory window store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string][]time.Time)}
}

// Record purges stale entries, records the current request, and returns the
// resulting count plus the oldest surviving entry. Mirrors RedisStore.Record,
// including the unconditional insert for requests that end up denied.
func (s *InMemoryStore) Record(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if key == "" {
		return 0, time.Time{}, fmt.Errorf("window key is required")
	}
	if window <= 0 {
		return 0, time.Time{}, fmt.Errorf("window duration must be positive")
	}

	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := purge(s.windows[key], now.Add(-window))
	entries = append(entries, now)
	s.windows[key] = entries
	return int64(len(entries)), entries[0], nil
}

// Count returns the live entry count without recording a request.
func (s *InMemoryStore) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(purge(s.windows[key], now.Add(-window)))), nil
}

// Reset clears the window for a key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// purge drops entries strictly older than the cutoff. Entries are appended
// in arrival order, so the retained suffix starts at the first live entry.
func purge(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(entries); i++ {
		if !entries[i].Before(cutoff) {
			break
		}
	}
	return entries[i:]
}
