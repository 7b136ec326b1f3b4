// Package handler exposes operator endpoints for the abuse gate: flag
// inspection and manual resets after review.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/ratelimit/models"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

type Service interface {
	Evaluate(ctx context.Context, identity, tierName string) (*models.RateLimitResult, error)
	ResetAnomaly(ctx context.Context, identity string) error
	InspectAnomaly(ctx context.Context, identity string) (*models.AnomalyRecord, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/gate/evaluate", h.HandleEvaluate)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/abuse/anomaly/reset", h.HandleResetAnomaly)
	r.Get("/admin/abuse/anomaly/{identity}", h.HandleInspectAnomaly)
}

// HandleEvaluate implements POST /v1/gate/evaluate, the decision endpoint
// for callers embedding the gate over the network instead of in-process.
// Input: { "identity": "u1", "tier": "standard" }
// Output: the full gate verdict, regardless of outcome. Enforcement is the
// caller's job here; this endpoint only decides.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	// Limit request body size to prevent DoS via large payloads
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64KB max

	req, ok := httputil.DecodeJSON[models.EvaluateRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Evaluate(ctx, req.Identity, req.Tier)
	if err != nil {
		h.logger.ErrorContext(ctx, "gate evaluation failed",
			"error", err,
			"tier", req.Tier,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleResetAnomaly implements POST /admin/abuse/anomaly/reset.
// Input: { "identity": "u1" }
// Output: { "identity": "u1", "reset": true }
func (h *Handler) HandleResetAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	// Limit request body size to prevent DoS via large payloads
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64KB max

	req, ok := httputil.DecodeJSON[models.ResetAnomalyRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.ResetAnomaly(ctx, req.Identity); err != nil {
		h.logger.ErrorContext(ctx, "failed to reset anomaly record",
			"error", err,
			"identity", req.Identity,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "anomaly record reset",
		"identity", req.Identity,
		"request_id", requestID,
	)

	httputil.WriteJSON(w, http.StatusOK, &models.ResetAnomalyResponse{
		Identity: req.Identity,
		Reset:    true,
	})
}

// HandleInspectAnomaly implements GET /admin/abuse/anomaly/{identity}.
// Returns the behavioral record, or 404 when the identity has none.
func (h *Handler) HandleInspectAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	identity := chi.URLParam(r, "identity")
	if identity == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identity is required"))
		return
	}

	record, err := h.service.InspectAnomaly(ctx, identity)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to inspect anomaly record",
				"error", err,
				"identity", identity,
				"request_id", requestID,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.AnomalyStateResponse{
		Identity:      identity,
		RequestCount:  record.RequestCount,
		LastRequestAt: record.LastRequestAt,
		BurstCount:    record.BurstCount,
		Flagged:       record.Flagged,
	})
}
