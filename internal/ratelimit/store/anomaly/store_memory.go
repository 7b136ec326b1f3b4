package anomaly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis/internal/ratelimit/models"
	"aegis/pkg/requestcontext"
)

// InMemoryStore keeps anomaly records in process memory with the same TTL
// semantics as RedisStore. Test and single-instance use only.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	record    models.AnomalyRecord
	expiresAt time.Time
}

// NewInMemory creates an empty in-memory anomaly store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]memoryRecord)}
}

// Get returns a copy of the live record, or (nil, nil) when absent or expired.
func (s *InMemoryStore) Get(ctx context.Context, key string) (*models.AnomalyRecord, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if now.After(entry.expiresAt) {
		delete(s.records, key)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// Put stores a copy of the record and refreshes its expiry.
func (s *InMemoryStore) Put(ctx context.Context, key string, record *models.AnomalyRecord, ttl time.Duration) error {
	if record == nil {
		return fmt.Errorf("anomaly record is required")
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = memoryRecord{record: *record, expiresAt: now.Add(ttl)}
	return nil
}

// Delete removes the record outright.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
