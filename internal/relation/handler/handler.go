package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"healthlink/internal/relation/models"
	dErrors "healthlink/pkg/domain-errors"
	"healthlink/pkg/platform/httputil"
	"healthlink/pkg/requestcontext"
)

// Service defines the interface for relation resolution.
type Service interface {
	Resolve(ctx context.Context, endpoint string, eventType models.EventType, set models.IdentifierSet) (models.Outcome, error)
}

// Handler wires the relation endpoint to the resolver.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a relation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts relation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/relacao/{tipo_evento}", h.HandleRelation)
}

// HandleRelation handles POST /relacao/{tipo_evento} requests.
func (h *Handler) HandleRelation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	eventType, err := models.ParseEventType(chi.URLParam(r, "tipo_evento"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tipo_evento não suportado"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RelationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.Resolve(ctx, r.URL.Path, eventType, req.ParsedSet())
	if err != nil {
		h.logger.ErrorContext(ctx, "relation resolution failed",
			"request_id", requestID,
			"tipo_evento", eventType.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "relation resolved",
		"request_id", requestID,
		"tipo_evento", eventType.String(),
		"api_client", requestcontext.APIClient(ctx),
		"outcome", outcome.Kind.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if outcome.Kind == models.OutcomeConflict {
		httputil.WriteError(w, outcome.Conflict.DomainError())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(outcome))
}
