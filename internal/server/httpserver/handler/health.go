package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/canvasvault/internal/storage"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. The store serves requests in both modes,
// so readiness is reported as degraded rather than failed in memory mode.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	mode := h.store.Mode()
	status := "ready"
	if mode == storage.ModeMemory {
		status = "degraded"
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: status,
		Mode:   mode.String(),
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
