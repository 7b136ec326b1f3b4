// Package limiter decides allow/deny for a (identity, tier) pair by
// counting requests in the trailing window.
//
// Failure semantics: when the counter store is unreachable the limiter
// does not block the request pipeline. By default it fails open (the
// request is treated as allowed) and the error is logged and counted,
// never raised to the request path. Deployments preferring strictness
// over availability can flip to fail-closed via WithFailClosed.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aegis/internal/ratelimit/metrics"
	"aegis/internal/ratelimit/models"
	"aegis/pkg/requestcontext"
)

// WindowStore records one request and returns the live count for the key
// along with the timestamp of the oldest entry still in the window.
type WindowStore interface {
	Record(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// Decision is the limiter's verdict for a single request.
type Decision struct {
	Allowed   bool
	Count     int64 // live entries in the window, including this request
	Remaining int
	ResetAt   time.Time

	// Degraded marks a decision made without the counter store (outage).
	// Count and Remaining carry no information in this state.
	Degraded bool
}

// Service enforces sliding-window rate limits.
// Thread-safe for concurrent use by HTTP middleware: all mutable state
// lives in the window store.
type Service struct {
	store      WindowStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	failClosed bool
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for degraded-mode observability.
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

// WithFailClosed denies requests instead of admitting them when the
// counter store is unreachable.
func WithFailClosed() Option {
	return func(s *Service) {
		s.failClosed = true
	}
}

// New creates a sliding window limiter backed by the given store.
func New(store WindowStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("window store is required")
	}

	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check records the current request against the identity's window in the
// given tier and returns the verdict. ResetAt is the instant the oldest
// logged entry ages out of the window: that is when the next slot frees,
// so it doubles as the retry boundary for denied callers.
func (s *Service) Check(ctx context.Context, identity string, tier models.Tier) (*Decision, error) {
	now := requestcontext.Now(ctx)
	key := models.NewWindowKey(tier.KeyNamespace, identity)

	count, oldest, err := s.store.Record(ctx, key, tier.Window)
	if err != nil {
		return s.degraded(ctx, tier, now, err), nil
	}
	if oldest.IsZero() {
		oldest = now
	}

	remaining := tier.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Decision{
		Allowed:   count <= int64(tier.MaxRequests),
		Count:     count,
		Remaining: remaining,
		ResetAt:   oldest.Add(tier.Window),
	}, nil
}

// degraded builds the store-outage verdict according to the fail policy.
func (s *Service) degraded(ctx context.Context, tier models.Tier, now time.Time, cause error) *Decision {
	if s.metrics != nil {
		s.metrics.RecordStoreError("window")
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "counter store unavailable",
			"tier", tier.Name,
			"fail_closed", s.failClosed,
			"error", cause,
		)
	}

	if s.failClosed {
		return &Decision{
			Allowed:  false,
			ResetAt:  now.Add(tier.Window),
			Degraded: true,
		}
	}

	if s.metrics != nil {
		s.metrics.RecordFailOpen()
	}
	return &Decision{
		Allowed:  true,
		ResetAt:  now.Add(tier.Window),
		Degraded: true,
	}
}
