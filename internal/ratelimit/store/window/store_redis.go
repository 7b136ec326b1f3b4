// Package window persists sliding-window request logs in the shared
// counter store. One sorted set per (tier, identity): members are request
// tokens, scores are epoch milliseconds.
package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"aegis/pkg/requestcontext"
)

// RedisStore implements the sliding-window log against Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed window store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Record runs the purge, insert, count, and expiry refresh for one request
// as a single MULTI/EXEC transaction, so two concurrent requests for the
// same identity cannot both observe a stale count. It returns the live
// count and the timestamp of the oldest surviving entry, which is when
// the next slot frees up.
//
// The request is inserted unconditionally: a request that will be denied
// still consumed attention and must count toward future windows. The key's
// TTL is refreshed to the window duration so abandoned keys self-clean even
// if purges are skipped.
func (s *RedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if key == "" {
		return 0, time.Time{}, fmt.Errorf("window key is required")
	}
	if window <= 0 {
		return 0, time.Time{}, fmt.Errorf("window duration must be positive")
	}

	now := requestcontext.Now(ctx)
	cutoff := now.Add(-window).UnixMilli()
	member := newMember(now)

	var (
		card  *redis.IntCmd
		first *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Drop entries scored strictly below now-window.
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, key)
		first = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("record window entry: %w", err)
	}

	oldest := now
	if entries := first.Val(); len(entries) > 0 {
		oldest = time.UnixMilli(int64(entries[0].Score))
	}
	return card.Val(), oldest, nil
}

// Count returns the live entry count without recording a request.
// Used by operators to inspect a window.
func (s *RedisStore) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	cutoff := requestcontext.Now(ctx).Add(-window).UnixMilli()
	count, err := s.client.ZCount(ctx, key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count window entries: %w", err)
	}
	return count, nil
}

// Reset clears the window for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	return nil
}

// newMember builds a collision-resistant member token: two requests landing
// on the same millisecond must still insert distinct sorted-set members.
func newMember(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
