package models

import (
	"time"

	dErrors "aegis/pkg/domain-errors"
)

// Tier is a named rate-limiting policy: how many requests an identity may
// make within a trailing window. Tiers are resolved once at startup and are
// immutable for the process lifetime.
type Tier struct {
	Name         string
	Window       time.Duration
	MaxRequests  int
	KeyNamespace string
}

// Validate enforces tier invariants at registration time.
func (t Tier) Validate() error {
	if t.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier name cannot be empty")
	}
	if t.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier window must be positive")
	}
	if t.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier max requests must be positive")
	}
	if t.KeyNamespace == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier key namespace cannot be empty")
	}
	return nil
}

// RateLimitResult is the merged outcome of one gate evaluation. It is a pure
// value recomputed on every call, never stored.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	Flagged    bool      `json:"flagged"`
}

// AnomalyRecord is the per-identity behavioral profile, independent of tier.
// The record lives in the shared store under a one-hour TTL refreshed on every
// write; Flagged is sticky for the record's lifetime.
type AnomalyRecord struct {
	RequestCount  int64     `json:"request_count"`
	LastRequestAt time.Time `json:"last_request_at"`
	BurstCount    int       `json:"burst_count"`
	Flagged       bool      `json:"flagged"`
}

// NewAnomalyRecord initializes a fresh profile for an identity's first
// observed request. LastRequestAt starts at now, so the first observation
// sees a zero delta and counts toward the burst score.
func NewAnomalyRecord(now time.Time) *AnomalyRecord {
	return &AnomalyRecord{
		RequestCount:  0,
		LastRequestAt: now,
		BurstCount:    0,
		Flagged:       false,
	}
}
