package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/circuit"
)

// =============================================================================
// Circuit Store Test Suite
// =============================================================================

// flakyStore fails while down is set and counts backend calls.
type flakyStore struct {
	down  bool
	calls int
}

func (f *flakyStore) Record(context.Context, string, time.Duration) (int64, time.Time, error) {
	f.calls++
	if f.down {
		return 0, time.Time{}, errors.New("connection refused")
	}
	return 1, time.Time{}, nil
}

func (f *flakyStore) Count(context.Context, string, time.Duration) (int64, error) {
	f.calls++
	if f.down {
		return 0, errors.New("connection refused")
	}
	return 1, nil
}

func (f *flakyStore) Reset(context.Context, string) error {
	f.calls++
	if f.down {
		return errors.New("connection refused")
	}
	return nil
}

type CircuitStoreSuite struct {
	suite.Suite
	backend *flakyStore
	store   *CircuitStore
}

func TestCircuitStoreSuite(t *testing.T) {
	suite.Run(t, new(CircuitStoreSuite))
}

func (s *CircuitStoreSuite) SetupTest() {
	s.backend = &flakyStore{}
	breaker := circuit.New("window-store",
		circuit.WithFailureThreshold(3),
		circuit.WithSuccessThreshold(1),
	)
	s.store = NewCircuit(s.backend, breaker, nil)
}

func (s *CircuitStoreSuite) record() error {
	_, _, err := s.store.Record(context.Background(), "ratelimit:standard:u1", time.Minute)
	return err
}

func (s *CircuitStoreSuite) TestPassThroughWhenHealthy() {
	count, _, err := s.store.Record(context.Background(), "k", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
	s.Equal(1, s.backend.calls)
}

func (s *CircuitStoreSuite) TestOpensAndRejectsLocally() {
	s.backend.down = true

	for i := 0; i < 3; i++ {
		s.Error(s.record())
	}
	callsAtOpen := s.backend.calls

	// Open circuit: the next few calls must not reach the backend.
	for i := 0; i < 5; i++ {
		err := s.record()
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	}
	s.Equal(callsAtOpen, s.backend.calls, "open circuit must reject without backend calls")
}

func (s *CircuitStoreSuite) TestProbeClosesAfterRecovery() {
	s.backend.down = true
	for i := 0; i < 3; i++ {
		s.Error(s.record())
	}

	s.backend.down = false

	// Every probeInterval-th rejected call probes the backend; one healthy
	// probe closes the circuit with a success threshold of 1.
	var recovered bool
	for i := 0; i < 2 * defaultProbeInterval; i++ {
		if s.record() == nil {
			recovered = true
			break
		}
	}
	s.True(recovered, "a probe must reach the recovered backend")

	// Closed again: calls flow through.
	s.Require().NoError(s.record())
}
