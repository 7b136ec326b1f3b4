// Package requestcontext carries per-request metadata through context:
// the request id assigned by middleware and an injectable clock so that
// time-dependent logic stays deterministic under test.
package requestcontext

import (
	"context"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	clockKey
)

// Clock returns the current time. Production code uses time.Now; tests
// install a fixed or stepping clock via WithClock.
type Clock func() time.Time

// WithClock returns a context that resolves Now through the given clock.
func WithClock(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, clockKey, clock)
}

// Now returns the current time according to the context's clock,
// falling back to time.Now when none is installed.
func Now(ctx context.Context) time.Time {
	if clock, ok := ctx.Value(clockKey).(Clock); ok {
		return clock()
	}
	return time.Now()
}

// WithRequestID stores the request id assigned by transport middleware.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id, or "" when none was assigned.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
