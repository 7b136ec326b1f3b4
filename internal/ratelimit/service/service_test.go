package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/ratelimit/anomaly"
	"aegis/internal/ratelimit/config"
	"aegis/internal/ratelimit/limiter"
	"aegis/internal/ratelimit/models"
	storeanomaly "aegis/internal/ratelimit/store/anomaly"
	"aegis/internal/ratelimit/store/window"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

// =============================================================================
// Decision Façade Test Suite
// =============================================================================
// Justification: The façade owns the merge of the two subsystems and the
// degradation rules between them; end-to-end scenarios with an injected
// clock are the only way to pin those down.

type FacadeSuite struct {
	suite.Suite
	service *Service
	now     time.Time
}

func TestFacadeSuite(t *testing.T) {
	suite.Run(t, new(FacadeSuite))
}

func (s *FacadeSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.service = s.newService(window.NewInMemory())
}

func (s *FacadeSuite) newService(windowStore limiter.WindowStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	lim, err := limiter.New(windowStore, limiter.WithLogger(logger))
	s.Require().NoError(err)

	det, err := anomaly.New(storeanomaly.NewInMemory(), anomaly.WithLogger(logger))
	s.Require().NoError(err)

	svc, err := New(config.DefaultRegistry(), lim, det, WithLogger(logger))
	s.Require().NoError(err)
	return svc
}

func (s *FacadeSuite) ctx() context.Context {
	return requestcontext.WithClock(context.Background(), func() time.Time { return s.now })
}

func (s *FacadeSuite) TestNew() {
	lim, err := limiter.New(window.NewInMemory())
	s.Require().NoError(err)
	det, err := anomaly.New(storeanomaly.NewInMemory())
	s.Require().NoError(err)

	s.Run("nil registry returns error", func() {
		_, err := New(nil, lim, det)
		s.Error(err)
	})

	s.Run("nil limiter returns error", func() {
		_, err := New(config.DefaultRegistry(), nil, det)
		s.Error(err)
	})

	s.Run("nil detector returns error", func() {
		_, err := New(config.DefaultRegistry(), lim, nil)
		s.Error(err)
	})
}

func (s *FacadeSuite) TestEvaluateValidation() {
	s.Run("empty identity is rejected", func() {
		_, err := s.service.Evaluate(s.ctx(), "  ", config.TierStandard)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown tier fails loudly", func() {
		_, err := s.service.Evaluate(s.ctx(), "u1", "premium")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownTier))
	})
}

// TestSensitiveTierScenario walks the sensitive tier (60s window, max 10)
// through fill-up, denial, and roll-over.
func (s *FacadeSuite) TestSensitiveTierScenario() {
	start := s.now

	// 10 requests at t=0..9s: all allowed, the last leaves nothing over.
	var result *models.RateLimitResult
	var err error
	for i := 0; i < 10; i++ {
		s.now = start.Add(time.Duration(i) * time.Second)
		result, err = s.service.Evaluate(s.ctx(), "u1", config.TierSensitive)
		s.Require().NoError(err)
		s.True(result.Allowed, "request %d should be allowed", i+1)
	}
	s.Equal(0, result.Remaining)

	// 11th request at t=9.5s is denied. The first entry leaves the window
	// at t=60s, so the retry hint is ceil(50.5s).
	s.now = start.Add(9500 * time.Millisecond)
	result, err = s.service.Evaluate(s.ctx(), "u1", config.TierSensitive)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
	s.Equal(51, result.RetryAfter)
	s.Equal(start.Add(time.Minute), result.ResetAt)

	// At t=70s every logged entry, including the denied one at t=9.5s, has
	// aged out: admitted again with 9 to spare.
	s.now = start.Add(70 * time.Second)
	result, err = s.service.Evaluate(s.ctx(), "u1", config.TierSensitive)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(9, result.Remaining)
}

func (s *FacadeSuite) TestTierIsolation() {
	// Exhaust sensitive; standard must be untouched.
	for i := 0; i < 11; i++ {
		_, err := s.service.Evaluate(s.ctx(), "u1", config.TierSensitive)
		s.Require().NoError(err)
		s.now = s.now.Add(time.Second)
	}

	result, err := s.service.Evaluate(s.ctx(), "u1", config.TierStandard)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(99, result.Remaining)
}

func (s *FacadeSuite) TestFlagging() {
	s.Run("near-exhausting the budget flags the identity", func() {
		// Ten requests into the sensitive tier: the tenth sets count=10,
		// which exceeds 90% of the ceiling.
		var result *models.RateLimitResult
		var err error
		for i := 0; i < 10; i++ {
			result, err = s.service.Evaluate(s.ctx(), "edge-1", config.TierSensitive)
			s.Require().NoError(err)
			s.now = s.now.Add(time.Second)
		}
		s.True(result.Allowed)
		s.True(result.Flagged)
	})

	s.Run("flag is reported across tiers", func() {
		for i := 0; i < 10; i++ {
			_, err := s.service.Evaluate(s.ctx(), "edge-2", config.TierSensitive)
			s.Require().NoError(err)
			s.now = s.now.Add(time.Second)
		}

		// The behavioral profile is tier-independent.
		result, err := s.service.Evaluate(s.ctx(), "edge-2", config.TierStandard)
		s.Require().NoError(err)
		s.True(result.Flagged)
	})

	s.Run("reset clears the flag", func() {
		for i := 0; i < 10; i++ {
			_, err := s.service.Evaluate(s.ctx(), "edge-3", config.TierSensitive)
			s.Require().NoError(err)
			s.now = s.now.Add(time.Second)
		}

		s.Require().NoError(s.service.ResetAnomaly(s.ctx(), "edge-3"))

		result, err := s.service.Evaluate(s.ctx(), "edge-3", config.TierStandard)
		s.Require().NoError(err)
		s.False(result.Flagged)
	})
}

// erroringWindowStore simulates a counter store outage.
type erroringWindowStore struct{}

func (erroringWindowStore) Record(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func (s *FacadeSuite) TestFailOpen() {
	svc := s.newService(erroringWindowStore{})

	result, err := svc.Evaluate(s.ctx(), "u1", config.TierSensitive)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.False(result.Flagged)
	s.Equal(0, result.Remaining)
}

// erroringDetector simulates an anomaly subsystem failure.
type erroringDetector struct{}

func (erroringDetector) RecordAndAssess(context.Context, string, int64, int) (bool, error) {
	return false, errors.New("connection refused")
}
func (erroringDetector) Reset(context.Context, string) error {
	return errors.New("connection refused")
}
func (erroringDetector) Inspect(context.Context, string) (*models.AnomalyRecord, error) {
	return nil, errors.New("connection refused")
}

func (s *FacadeSuite) TestDetectorFailureDoesNotBlockDecision() {
	lim, err := limiter.New(window.NewInMemory())
	s.Require().NoError(err)
	svc, err := New(config.DefaultRegistry(), lim, erroringDetector{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	result, err := svc.Evaluate(s.ctx(), "u1", config.TierSensitive)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(9, result.Remaining)
	s.False(result.Flagged)
}

func (s *FacadeSuite) TestInspectAnomaly() {
	_, err := s.service.Evaluate(s.ctx(), "u1", config.TierStandard)
	s.Require().NoError(err)

	record, err := s.service.InspectAnomaly(s.ctx(), "u1")
	s.Require().NoError(err)
	s.Equal(int64(1), record.RequestCount)

	_, err = s.service.InspectAnomaly(s.ctx(), "ghost")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
