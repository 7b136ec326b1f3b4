// Package anomaly maintains a rolling behavioral profile per identity and
// raises a sticky flag on likely automated or malicious traffic.
//
// Three independent triggers raise the flag: a burst score over rapid-fire
// request spacing, proximity to the tier budget, and sustained rapid-fire
// over a long request history. Any single heuristic is easy to evade; the
// union is harder to evade without looking statistically normal.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aegis/internal/ratelimit/config"
	"aegis/internal/ratelimit/metrics"
	"aegis/internal/ratelimit/models"
	"aegis/internal/ratelimit/observability"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

// Store persists anomaly records keyed by identity.
type Store interface {
	Get(ctx context.Context, key string) (*models.AnomalyRecord, error)
	Put(ctx context.Context, key string, record *models.AnomalyRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service is the anomaly detector. Records are tier-independent: one
// profile per identity regardless of which tiers it hits.
type Service struct {
	store          Store
	auditPublisher observability.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	config         *config.AnomalyConfig
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for audit logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the audit event publisher for security logging.
func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig overrides the default detector thresholds.
func WithConfig(cfg *config.AnomalyConfig) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates an anomaly detector backed by the given record store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("anomaly store is required")
	}

	svc := &Service{
		store:  store,
		config: config.DefaultAnomalyConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RecordAndAssess folds the current request into the identity's profile and
// returns whether the identity is flagged. windowCount and tierCeiling come
// from the limiter's verdict for the tier the request hit.
//
// The flag is sticky: once raised it stays raised until the record expires
// or an operator resets it. The false-to-true transition emits an audit
// event and a metric exactly once.
func (s *Service) RecordAndAssess(ctx context.Context, identity string, windowCount int64, tierCeiling int) (bool, error) {
	now := requestcontext.Now(ctx)
	key := models.NewAnomalyKey(identity)

	record, err := s.store.Get(ctx, key)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("anomaly")
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load anomaly record")
	}
	if record == nil {
		record = models.NewAnomalyRecord(now)
	}

	delta := now.Sub(record.LastRequestAt)
	switch {
	case delta < s.config.BurstSpacing:
		record.BurstCount++
	case delta > s.config.CooldownSpacing:
		if record.BurstCount > 0 {
			record.BurstCount--
		}
	}

	record.RequestCount++
	record.LastRequestAt = now

	wasFlagged := record.Flagged
	if !record.Flagged && s.shouldFlag(record, delta, windowCount, tierCeiling) {
		record.Flagged = true
	}

	if err := s.store.Put(ctx, key, record, s.config.RecordTTL); err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("anomaly")
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist anomaly record")
	}

	if record.Flagged && !wasFlagged {
		if s.metrics != nil {
			s.metrics.RecordFlagTransition()
		}
		observability.LogAudit(ctx, s.logger, s.auditPublisher, "anomaly_flag_raised", identity,
			"burst_count", record.BurstCount,
			"request_count", record.RequestCount,
			"window_count", windowCount,
			"tier_ceiling", tierCeiling,
		)
	}

	return record.Flagged, nil
}

// shouldFlag evaluates the three triggers against the updated profile.
// delta is the spacing observed before this request was folded in.
func (s *Service) shouldFlag(record *models.AnomalyRecord, delta time.Duration, windowCount int64, tierCeiling int) bool {
	if record.BurstCount > s.config.BurstThreshold {
		return true
	}
	// Near-exhausting the tier budget: callers tuned just under the limit.
	if float64(windowCount) > s.config.CeilingFraction*float64(tierCeiling) {
		return true
	}
	// Sustained rapid-fire over a long history: low-and-slow abuse that
	// never bursts but never idles either.
	if record.RequestCount > s.config.SustainedCount && delta < s.config.SustainedSpacing {
		return true
	}
	return false
}

// Reset deletes the identity's record outright. This is the only way to
// clear a sticky flag before natural TTL expiry; it is an operator action
// taken after manual review.
func (s *Service) Reset(ctx context.Context, identity string) error {
	key := models.NewAnomalyKey(identity)
	if err := s.store.Delete(ctx, key); err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("anomaly")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete anomaly record")
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, "anomaly_flag_reset", identity)
	return nil
}

// Inspect returns the identity's current record, or a not-found error when
// no record is live.
func (s *Service) Inspect(ctx context.Context, identity string) (*models.AnomalyRecord, error) {
	record, err := s.store.Get(ctx, models.NewAnomalyKey(identity))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load anomaly record")
	}
	if record == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no anomaly record for identity %q", identity))
	}
	return record, nil
}
