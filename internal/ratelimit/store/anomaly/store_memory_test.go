package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/ratelimit/models"
	"aegis/pkg/requestcontext"
)

func TestInMemoryStore(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ctx := requestcontext.WithClock(context.Background(), func() time.Time { return now })

	t.Run("missing record is nil not error", func(t *testing.T) {
		store := NewInMemory()
		record, err := store.Get(ctx, "anomaly:nobody")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("round trip preserves fields", func(t *testing.T) {
		store := NewInMemory()
		in := &models.AnomalyRecord{RequestCount: 7, LastRequestAt: base, BurstCount: 3, Flagged: true}
		require.NoError(t, store.Put(ctx, "anomaly:u1", in, time.Hour))

		out, err := store.Get(ctx, "anomaly:u1")
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, *in, *out)
	})

	t.Run("stored record is a copy", func(t *testing.T) {
		store := NewInMemory()
		in := &models.AnomalyRecord{LastRequestAt: base}
		require.NoError(t, store.Put(ctx, "anomaly:u2", in, time.Hour))
		in.Flagged = true

		out, err := store.Get(ctx, "anomaly:u2")
		require.NoError(t, err)
		assert.False(t, out.Flagged)
	})

	t.Run("record expires after ttl", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.Put(ctx, "anomaly:u3", &models.AnomalyRecord{LastRequestAt: base}, time.Hour))

		now = base.Add(time.Hour + time.Second)
		defer func() { now = base }()

		record, err := store.Get(ctx, "anomaly:u3")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("delete removes record", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.Put(ctx, "anomaly:u4", &models.AnomalyRecord{LastRequestAt: base}, time.Hour))
		require.NoError(t, store.Delete(ctx, "anomaly:u4"))

		record, err := store.Get(ctx, "anomaly:u4")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}
