package globalthrottle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"aegis/internal/ratelimit/models"
)

// =============================================================================
// Global Throttle Test Suite
// =============================================================================

type ThrottleSuite struct {
	suite.Suite
}

func TestThrottleSuite(t *testing.T) {
	suite.Run(t, new(ThrottleSuite))
}

func (s *ThrottleSuite) TestNew() {
	s.Run("rejects non-positive rate", func() {
		_, err := New(0, 1)
		s.Error(err)
	})

	s.Run("rejects non-positive burst", func() {
		_, err := New(10, 0)
		s.Error(err)
	})
}

func (s *ThrottleSuite) TestMiddleware() {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.Run("passes requests under the budget", func() {
		throttle, err := New(100, 10)
		s.Require().NoError(err)

		rec := httptest.NewRecorder()
		throttle.Middleware(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("sheds requests over the burst", func() {
		// Budget of exactly one: the second immediate request must shed.
		throttle, err := New(0.001, 1)
		s.Require().NoError(err)

		first := httptest.NewRecorder()
		throttle.Middleware(okHandler).ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
		s.Equal(http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		throttle.Middleware(okHandler).ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
		s.Equal(http.StatusServiceUnavailable, second.Code)
		s.Equal("60", second.Header().Get("Retry-After"))

		var body models.ServiceOverloadedResponse
		s.Require().NoError(json.Unmarshal(second.Body.Bytes(), &body))
		s.Equal("service_unavailable", body.Error)
		s.Equal(60, body.RetryAfter)
	})
}
