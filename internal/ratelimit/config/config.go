// Package config holds the tier registry and detector thresholds.
//
// The registry is a closed enumeration resolved once at process start.
// Looking up an unknown tier fails loudly: a silent default would weaken
// protection on an endpoint that was supposed to be sensitive.
package config

import (
	"fmt"
	"sort"
	"time"

	"aegis/internal/ratelimit/models"
	dErrors "aegis/pkg/domain-errors"
)

// Built-in tier names.
const (
	TierStandard  = "standard"
	TierSensitive = "sensitive"
	TierAnalytics = "analytics"
)

// DefaultTiers returns the built-in policy set.
func DefaultTiers() []models.Tier {
	return []models.Tier{
		{Name: TierStandard, Window: time.Minute, MaxRequests: 100, KeyNamespace: "ratelimit:standard:"},
		{Name: TierSensitive, Window: time.Minute, MaxRequests: 10, KeyNamespace: "ratelimit:sensitive:"},
		{Name: TierAnalytics, Window: time.Minute, MaxRequests: 30, KeyNamespace: "ratelimit:analytics:"},
	}
}

// Registry maps tier names to their policies. Read-only after construction.
type Registry struct {
	tiers map[string]models.Tier
}

// NewRegistry validates and indexes the given tiers. Duplicate names,
// invalid parameters, namespace collisions, and namespaces overlapping the
// anomaly key space are all rejected here rather than at request time.
func NewRegistry(tiers []models.Tier) (*Registry, error) {
	if len(tiers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "at least one tier is required")
	}

	indexed := make(map[string]models.Tier, len(tiers))
	namespaces := make(map[string]string, len(tiers))
	for _, tier := range tiers {
		if err := tier.Validate(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, fmt.Sprintf("invalid tier %q", tier.Name))
		}
		if _, exists := indexed[tier.Name]; exists {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("duplicate tier name %q", tier.Name))
		}
		if other, exists := namespaces[tier.KeyNamespace]; exists {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("tier %q reuses key namespace of tier %q", tier.Name, other))
		}
		if tier.KeyNamespace == models.AnomalyKeyNamespace {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("tier %q key namespace collides with the anomaly namespace", tier.Name))
		}
		indexed[tier.Name] = tier
		namespaces[tier.KeyNamespace] = tier.Name
	}

	return &Registry{tiers: indexed}, nil
}

// DefaultRegistry builds a registry with only the built-in tiers.
// The defaults are known-valid, so construction cannot fail.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTiers())
	if err != nil {
		panic(fmt.Sprintf("built-in tiers invalid: %v", err))
	}
	return r
}

// Resolve returns the tier for a name or a coded error for unknown names.
func (r *Registry) Resolve(name string) (models.Tier, error) {
	tier, ok := r.tiers[name]
	if !ok {
		return models.Tier{}, dErrors.New(dErrors.CodeUnknownTier, fmt.Sprintf("tier %q is not registered", name))
	}
	return tier, nil
}

// Names returns the registered tier names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tiers))
	for name := range r.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnomalyConfig parameterizes the behavioral detector. The three triggers
// are independent on purpose: burst spacing catches scripted hammering,
// ceiling proximity catches callers tuned just under the limit, and the
// sustained pair catches low-and-slow traffic that never idles.
type AnomalyConfig struct {
	BurstSpacing     time.Duration // inter-request gap counted as a burst
	CooldownSpacing  time.Duration // gap above which suspicion decays
	BurstThreshold   int           // burst score that raises the flag
	CeilingFraction  float64       // share of the tier budget that raises the flag
	SustainedCount   int64         // lifetime requests for the sustained trigger
	SustainedSpacing time.Duration // gap bound for the sustained trigger
	RecordTTL        time.Duration // profile lifetime, refreshed on every write
}

// DefaultAnomalyConfig returns the production thresholds.
func DefaultAnomalyConfig() *AnomalyConfig {
	return &AnomalyConfig{
		BurstSpacing:     100 * time.Millisecond,
		CooldownSpacing:  5 * time.Second,
		BurstThreshold:   20,
		CeilingFraction:  0.9,
		SustainedCount:   500,
		SustainedSpacing: 50 * time.Millisecond,
		RecordTTL:        time.Hour,
	}
}
