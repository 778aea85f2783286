// Package health exposes liveness and database readiness probes.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthlink/internal/platform/postgres"
	"healthlink/pkg/platform/httputil"
)

// Response is the probe body. Database is omitted by the liveness probe.
type Response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Handler serves /health and /health/db.
type Handler struct {
	db     postgres.Pinger
	logger *slog.Logger
}

// New builds a probe handler. A nil db reports the database as down.
func New(db postgres.Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, logger: logger}
}

// Register mounts the probes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleLive)
	r.Get("/health/db", h.HandleDB)
}

func (h *Handler) HandleLive(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
}

// HandleDB always answers 200; a failed ping is reported in the body so the
// probe never takes the process out of rotation by itself.
func (h *Handler) HandleDB(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "degraded", Database: "down"})
		return
	}
	if err := postgres.Ping(r.Context(), h.db); err != nil {
		h.logger.WarnContext(r.Context(), "database ping failed", "error", err)
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "degraded", Database: "down"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Database: "up"})
}
