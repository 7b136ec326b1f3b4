// Package anomaly persists per-identity behavioral profiles in the shared
// store. Records are JSON values under the anomaly key namespace with a TTL
// refreshed on every write; expiry is the only implicit reset.
package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aegis/internal/ratelimit/models"
)

// RedisStore persists anomaly records in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed anomaly record store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get loads the record for a key. A missing record returns (nil, nil):
// "never seen" is a valid state, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (*models.AnomalyRecord, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get anomaly record: %w", err)
	}

	var record models.AnomalyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode anomaly record: %w", err)
	}
	return &record, nil
}

// Put stores the record with the given TTL, refreshing it on every write.
func (s *RedisStore) Put(ctx context.Context, key string, record *models.AnomalyRecord, ttl time.Duration) error {
	if record == nil {
		return fmt.Errorf("anomaly record is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode anomaly record: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("put anomaly record: %w", err)
	}
	return nil
}

// Delete removes the record outright. Used by the operator reset path.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete anomaly record: %w", err)
	}
	return nil
}
