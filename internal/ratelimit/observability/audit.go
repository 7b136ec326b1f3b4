// Package observability provides audit logging helpers for the gate.
package observability

import (
	"context"
	"log/slog"
	"time"

	"aegis/pkg/requestcontext"
)

// Event is an audit record for a security-relevant gate action.
type Event struct {
	Action     string
	Subject    string
	RequestID  string
	Reason     string
	OccurredAt time.Time
}

// AuditPublisher emits audit events for security-relevant operations.
// Deployments without an audit pipeline leave it nil.
type AuditPublisher interface {
	Emit(ctx context.Context, event Event) error
}

// LogAudit is a shared helper for logging audit events across gate services.
// It logs to the structured logger and, if configured, the audit publisher.
// subject is the identity the event concerns.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event, subject string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "identity", subject, "event", event, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, Event{
		Action:     event,
		Subject:    subject,
		RequestID:  requestID,
		OccurredAt: requestcontext.Now(ctx),
	}); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
