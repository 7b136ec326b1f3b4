// Package middleware holds transport middleware shared by all routes:
// request id assignment and client IP resolution.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"aegis/pkg/requestcontext"
)

type contextKey int

const clientIPKey contextKey = iota

// RequestID assigns a request id to every request and echoes it back
// in the X-Request-ID response header. Incoming ids from trusted proxies
// are preserved for cross-service correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the caller's network address once per request and
// stores it in the context for downstream consumers.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, resolveClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP returns the client IP resolved by the ClientIP middleware,
// or "" when the middleware did not run.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// resolveClientIP prefers proxy headers over the socket address.
// X-Forwarded-For may carry a chain; the first hop is the original client.
func resolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
