// Package globalthrottle sheds load before any per-identity accounting
// runs. It is a per-instance token bucket, not a shared counter: its job
// is protecting this process from traffic floods, while the per-identity
// limits live in the shared store.
package globalthrottle

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"aegis/internal/ratelimit/metrics"
	"aegis/internal/ratelimit/models"
	"aegis/pkg/platform/httputil"
)

const retryAfterSeconds = 60

// Throttle caps the instance-wide request intake.
type Throttle struct {
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Throttle instance.
type Option func(*Throttle)

// WithLogger sets the structured logger for shed-load observability.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Throttle) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Throttle) {
		t.metrics = m
	}
}

// New creates a throttle admitting requestsPerSecond sustained with the
// given burst headroom.
func New(requestsPerSecond float64, burst int, opts ...Option) (*Throttle, error) {
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive")
	}
	if burst <= 0 {
		return nil, fmt.Errorf("burst must be positive")
	}

	t := &Throttle{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Allow reports whether one more request fits under the instance budget.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}

// Middleware rejects requests over the instance budget with 503 before
// they reach the routing tree.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		if t.metrics != nil {
			t.metrics.RecordThrottled()
		}
		if t.logger != nil {
			t.logger.WarnContext(r.Context(), "request shed by global throttle",
				"path", r.URL.Path,
			)
		}

		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		httputil.WriteJSON(w, http.StatusServiceUnavailable, &models.ServiceOverloadedResponse{
			Error:      "service_unavailable",
			Message:    "Service is temporarily overloaded. Please try again later.",
			RetryAfter: retryAfterSeconds,
		})
	})
}
