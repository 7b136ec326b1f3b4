package window

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/circuit"
)

// Store is the full window store surface shared by the Redis and memory
// implementations.
type Store interface {
	Record(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Count(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// defaultProbeInterval is how many rejected calls pass between probes of an
// open circuit.
const defaultProbeInterval = 10

// CircuitStore wraps a window store with a circuit breaker. Once the store
// has failed repeatedly, further calls are rejected locally instead of
// waiting out a timeout against a dead backend, which keeps the limiter's
// degraded path fast under a store outage. While open, every probe
// interval one call is let through so the circuit can close again.
type CircuitStore struct {
	next    Store
	breaker *circuit.Breaker
	logger  *slog.Logger

	rejected      atomic.Int64
	probeInterval int64
}

// NewCircuit wraps next with breaker protection.
func NewCircuit(next Store, breaker *circuit.Breaker, logger *slog.Logger) *CircuitStore {
	return &CircuitStore{
		next:          next,
		breaker:       breaker,
		logger:        logger,
		probeInterval: defaultProbeInterval,
	}
}

func (s *CircuitStore) Record(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if !s.admit(ctx) {
		return 0, time.Time{}, dErrors.New(dErrors.CodeUnavailable, "counter store circuit open")
	}

	count, oldest, err := s.next.Record(ctx, key, window)
	s.observe(ctx, err)
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, oldest, nil
}

func (s *CircuitStore) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !s.admit(ctx) {
		return 0, dErrors.New(dErrors.CodeUnavailable, "counter store circuit open")
	}

	count, err := s.next.Count(ctx, key, window)
	s.observe(ctx, err)
	return count, err
}

func (s *CircuitStore) Reset(ctx context.Context, key string) error {
	if !s.admit(ctx) {
		return dErrors.New(dErrors.CodeUnavailable, "counter store circuit open")
	}

	err := s.next.Reset(ctx, key)
	s.observe(ctx, err)
	return err
}

// admit decides whether this call may reach the backend. Open circuits
// reject locally but let every probeInterval-th call through.
func (s *CircuitStore) admit(ctx context.Context) bool {
	if !s.breaker.IsOpen() {
		return true
	}
	if s.rejected.Add(1)%s.probeInterval == 0 {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "probing counter store through open circuit",
				"breaker", s.breaker.Name(),
			)
		}
		return true
	}
	return false
}

func (s *CircuitStore) observe(ctx context.Context, err error) {
	if err != nil {
		if s.breaker.RecordFailure() && s.logger != nil {
			s.logger.ErrorContext(ctx, "counter store circuit opened",
				"breaker", s.breaker.Name(),
			)
		}
		return
	}
	if s.breaker.RecordSuccess() && s.logger != nil {
		s.logger.InfoContext(ctx, "counter store circuit closed",
			"breaker", s.breaker.Name(),
		)
	}
}
