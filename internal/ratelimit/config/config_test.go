package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/ratelimit/models"
	dErrors "aegis/pkg/domain-errors"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("built-in tiers resolve", func(t *testing.T) {
		standard, err := registry.Resolve(TierStandard)
		require.NoError(t, err)
		assert.Equal(t, 100, standard.MaxRequests)
		assert.Equal(t, time.Minute, standard.Window)

		sensitive, err := registry.Resolve(TierSensitive)
		require.NoError(t, err)
		assert.Equal(t, 10, sensitive.MaxRequests)

		analytics, err := registry.Resolve(TierAnalytics)
		require.NoError(t, err)
		assert.Equal(t, 30, analytics.MaxRequests)
	})

	t.Run("unknown tier fails loudly", func(t *testing.T) {
		_, err := registry.Resolve("premium")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownTier))
	})

	t.Run("names are stable", func(t *testing.T) {
		assert.Equal(t, []string{TierAnalytics, TierSensitive, TierStandard}, registry.Names())
	})
}

func TestNewRegistry(t *testing.T) {
	valid := models.Tier{Name: "partner", Window: 30 * time.Second, MaxRequests: 500, KeyNamespace: "ratelimit:partner:"}

	t.Run("rejects empty tier set", func(t *testing.T) {
		_, err := NewRegistry(nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := NewRegistry([]models.Tier{valid, valid})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate tier name")
	})

	t.Run("rejects namespace collisions", func(t *testing.T) {
		other := valid
		other.Name = "partner2"
		_, err := NewRegistry([]models.Tier{valid, other})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reuses key namespace")
	})

	t.Run("rejects anomaly namespace overlap", func(t *testing.T) {
		bad := valid
		bad.KeyNamespace = models.AnomalyKeyNamespace
		_, err := NewRegistry([]models.Tier{bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anomaly namespace")
	})

	t.Run("rejects non-positive window and ceiling", func(t *testing.T) {
		bad := valid
		bad.Window = 0
		_, err := NewRegistry([]models.Tier{bad})
		assert.Error(t, err)

		bad = valid
		bad.MaxRequests = -1
		_, err = NewRegistry([]models.Tier{bad})
		assert.Error(t, err)
	})
}

func TestBuildRegistry(t *testing.T) {
	t.Run("empty path yields defaults only", func(t *testing.T) {
		registry, err := BuildRegistry("")
		require.NoError(t, err)
		assert.Len(t, registry.Names(), 3)
	})

	t.Run("loads extra tiers from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		content := `
tiers:
  - name: partner
    window: 30s
    max_requests: 500
  - name: bulk
    window: 5m
    max_requests: 2000
    key_namespace: "ratelimit:bulk-export:"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		registry, err := BuildRegistry(path)
		require.NoError(t, err)

		partner, err := registry.Resolve("partner")
		require.NoError(t, err)
		assert.Equal(t, "ratelimit:partner:", partner.KeyNamespace)
		assert.Equal(t, 30*time.Second, partner.Window)

		bulk, err := registry.Resolve("bulk")
		require.NoError(t, err)
		assert.Equal(t, "ratelimit:bulk-export:", bulk.KeyNamespace)
	})

	t.Run("file tier colliding with built-in is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		content := `
tiers:
  - name: standard
    window: 1s
    max_requests: 1
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		_, err := BuildRegistry(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate tier name")
	})

	t.Run("missing file surfaces error", func(t *testing.T) {
		_, err := BuildRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
