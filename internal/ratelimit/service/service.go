// Package service composes the sliding window limiter and the anomaly
// detector into the gate's single entry point. Callers use Evaluate and the
// operator paths only; the subsystems are not exposed directly, so a request
// can never be counted without also being assessed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"aegis/internal/ratelimit/config"
	"aegis/internal/ratelimit/limiter"
	"aegis/internal/ratelimit/metrics"
	"aegis/internal/ratelimit/models"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

// DefaultStoreTimeout bounds each subsystem's store round-trip. An
// unavailable store must degrade the decision, not stall the request.
const DefaultStoreTimeout = 150 * time.Millisecond

// Limiter is the sliding window limiter contract consumed by the façade.
type Limiter interface {
	Check(ctx context.Context, identity string, tier models.Tier) (*limiter.Decision, error)
}

// Detector is the anomaly detector contract consumed by the façade.
type Detector interface {
	RecordAndAssess(ctx context.Context, identity string, windowCount int64, tierCeiling int) (bool, error)
	Reset(ctx context.Context, identity string) error
	Inspect(ctx context.Context, identity string) (*models.AnomalyRecord, error)
}

// Service is the decision façade.
// Thread-safe for concurrent use: it holds no mutable state of its own;
// all counters live in the shared store so that instances sharing one store
// agree on the same counts.
type Service struct {
	tiers        *config.Registry
	limiter      Limiter
	detector     Detector
	logger       *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTimeout overrides the per-subsystem store timeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// New creates the decision façade. All three collaborators are required.
func New(tiers *config.Registry, lim Limiter, det Detector, opts ...Option) (*Service, error) {
	if tiers == nil {
		return nil, fmt.Errorf("tier registry is required")
	}
	if lim == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if det == nil {
		return nil, fmt.Errorf("detector is required")
	}

	svc := &Service{
		tiers:        tiers,
		limiter:      lim,
		detector:     det,
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Evaluate renders the gate decision for one request: resolve the tier,
// run the limiter, fold the request into the behavioral profile, and merge
// both outcomes.
//
// Error contract: an empty identity or unknown tier name returns an error
// (both are caller or deployment bugs, never silently defaulted). Store
// outages do not error: the limiter degrades per its fail policy and the
// detector's verdict defaults to unflagged.
func (s *Service) Evaluate(ctx context.Context, identity, tierName string) (*models.RateLimitResult, error) {
	if strings.TrimSpace(identity) == "" {
		// Guessing a constant key here would pool all anonymous traffic
		// into one counter and make the limiter useless for it.
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}

	tier, err := s.tiers.Resolve(tierName)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	started := time.Now()

	decision, err := s.check(ctx, identity, tier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	flagged := s.assess(ctx, identity, tier, decision)

	result := &models.RateLimitResult{
		Allowed:   decision.Allowed,
		Limit:     tier.MaxRequests,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
		Flagged:   flagged,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(now, decision.ResetAt)
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(tier.Name, result.Allowed)
		s.metrics.ObserveEvaluateDuration(time.Since(started).Seconds())
	}
	return result, nil
}

func (s *Service) check(ctx context.Context, identity string, tier models.Tier) (*limiter.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.limiter.Check(ctx, identity, tier)
}

// assess runs the detector with the limiter's window count. A degraded
// limiter decision skips assessment: there is no trustworthy count to fold
// in, and the store is down anyway. Detector failures never disturb the
// rate-limit decision; the flag defaults to false.
func (s *Service) assess(ctx context.Context, identity string, tier models.Tier, decision *limiter.Decision) bool {
	if decision.Degraded {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	flagged, err := s.detector.RecordAndAssess(ctx, identity, decision.Count, tier.MaxRequests)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "anomaly assessment failed",
				"tier", tier.Name,
				"error", err,
			)
		}
		return false
	}
	return flagged
}

// ResetAnomaly deletes an identity's behavioral record. Administrative
// operation, not request-path: operators un-flag a caller after manual
// review.
func (s *Service) ResetAnomaly(ctx context.Context, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	return s.detector.Reset(ctx, identity)
}

// InspectAnomaly returns an identity's current behavioral record.
func (s *Service) InspectAnomaly(ctx context.Context, identity string) (*models.AnomalyRecord, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	return s.detector.Inspect(ctx, identity)
}

// retryAfterSeconds converts the reset boundary into a whole-second retry
// hint, rounding up so the hint never lands inside the closed window.
func retryAfterSeconds(now, resetAt time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
