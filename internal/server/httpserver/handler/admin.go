package handler

import (
	"net/http"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/infra/buildinfo"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
)

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Mode:   h.store.Mode().String(),
		Engine: h.store.DriverName(),
		Build:  buildinfo.Get(),
	}
	if cause := h.store.Cause(); cause != nil {
		resp.Cause = cause.Error()
	}
	if h.resetFlag != nil {
		queued, err := h.resetFlag.Requested()
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		resp.ResetQueued = queued
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleStoreReset handles POST /admin/v1/store/reset. The durable
// database is destroyed on the next start, before it is opened.
func (h *Handler) handleStoreReset(w http.ResponseWriter, r *http.Request) {
	if h.resetFlag == nil {
		h.writeError(w, r, domain.ErrBadRequest.WithDetails("reset is not configured"))
		return
	}
	if err := h.resetFlag.Request(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	logger.L(r.Context()).Warn("durable store reset requested")
	h.writeJSON(w, r, http.StatusAccepted, ResetResponse{
		Requested: true,
		Message:   "the durable database will be destroyed on the next restart",
	})
}
