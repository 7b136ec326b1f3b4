// Package middleware enforces gate decisions at the HTTP boundary.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	platformMW "aegis/internal/platform/middleware"
	"aegis/internal/ratelimit/models"
	"aegis/pkg/platform/httputil"
)

// Evaluator is the decision façade consumed by the middleware.
type Evaluator interface {
	Evaluate(ctx context.Context, identity, tierName string) (*models.RateLimitResult, error)
}

// IdentityFunc extracts the caller identity from a request. An empty
// return means the request carries no usable identity.
type IdentityFunc func(r *http.Request) string

// APIKeyOrClientIP keys authenticated callers by their API key and
// everyone else by their resolved network address.
func APIKeyOrClientIP(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return platformMW.GetClientIP(r.Context())
}

type Middleware struct {
	evaluator Evaluator
	identity  IdentityFunc
	logger    *slog.Logger
}

func New(evaluator Evaluator, identity IdentityFunc, logger *slog.Logger) *Middleware {
	if identity == nil {
		identity = APIKeyOrClientIP
	}
	return &Middleware{
		evaluator: evaluator,
		identity:  identity,
		logger:    logger,
	}
}

// RateLimit gates every request through the named tier. Evaluation
// failures are an operator problem, not the caller's: the request
// proceeds and the failure is logged.
func (m *Middleware) RateLimit(tierName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity := m.identity(r)
			if identity == "" {
				m.logger.WarnContext(ctx, "request carries no identity, gate skipped",
					"tier", tierName,
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.evaluator.Evaluate(ctx, identity, tierName)
			if err != nil {
				m.logger.ErrorContext(ctx, "gate evaluation failed",
					"error", err,
					"tier", tierName,
				)
				next.ServeHTTP(w, r)
				return
			}

			// Headers go out on both outcomes.
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, tierName, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders exposes the window state to the caller. The flag
// header is advisory and only appears for flagged identities.
func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Flagged {
		w.Header().Set("X-Abuse-Flagged", "true")
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, tierName string, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate limit exceeded",
		Code:       "RATE_LIMITED",
		Tier:       tierName,
		RetryAfter: result.RetryAfter,
		ResetAt:    result.ResetAt,
	})
}
