package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
)

// lockBackup claims the backup slot or writes a 409.
func (h *Handler) lockBackup(w http.ResponseWriter, r *http.Request) bool {
	if !h.backupMu.TryLock() {
		h.writeError(w, r, domain.ErrBackupInProgress)
		return false
	}
	return true
}

func progressLogger(ctx context.Context, op string) snapshot.Progress {
	l := logger.L(ctx)
	return func(message string, percent int) {
		l.Debug("backup progress", "op", op, "percent", percent, "message", message)
	}
}

// handleExport handles POST /admin/v1/backups/export. With ?save=true the
// document is also written to the snapshot directory and old files are
// pruned.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	body, err := readBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := unmarshalBody(body, &req); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	save, err := parseBoolQuery(r, "save")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if save && h.backups == nil {
		h.writeError(w, r, domain.ErrBadRequest.WithDetails("snapshot storage is not configured"))
		return
	}

	if !h.lockBackup(w, r) {
		return
	}
	defer h.backupMu.Unlock()

	state := snapshot.EditState{EditCounter: req.EditCounter, LastBackupReminder: req.LastBackupReminder}
	doc, err := h.codec.Export(r.Context(), h.store, state, progressLogger(r.Context(), "export"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ExportResponse{Document: doc}
	if save {
		info, err := h.backups.Save(doc)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		resp.Snapshot = info

		pruned, err := h.backups.Prune()
		if err != nil {
			logger.L(r.Context()).Warn("snapshot prune failed", "error", err)
		}
		resp.Pruned = pruned
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleImport handles POST /admin/v1/backups/import. The snapshot comes
// from the request body, or from the snapshot directory with ?id=.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var (
		raw    []byte
		source = "body"
		err    error
	)
	if id := r.URL.Query().Get("id"); id != "" {
		if h.backups == nil {
			h.writeError(w, r, domain.ErrBadRequest.WithDetails("snapshot storage is not configured"))
			return
		}
		raw, _, err = h.backups.Read(id)
		source = id
	} else {
		raw, err = readBody(r)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		h.writeError(w, r, domain.ErrMissingArgument.WithDetails("snapshot body or id"))
		return
	}

	if !h.lockBackup(w, r) {
		return
	}
	defer h.backupMu.Unlock()

	state, err := h.codec.Import(r.Context(), raw, h.store, progressLogger(r.Context(), "import"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ImportResponse{Source: source, EditState: state})
}

// handleListBackups handles GET /admin/v1/backups.
func (h *Handler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, r, http.StatusOK, ListBackupsResponse{Snapshots: []*snapshot.Info{}})
		return
	}
	infos, err := h.backups.List()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if infos == nil {
		infos = []*snapshot.Info{}
	}
	h.writeJSON(w, r, http.StatusOK, ListBackupsResponse{Snapshots: infos})
}

// handleBackupFile handles GET /admin/v1/backups/{id}/file. The body is
// the snapshot document itself, not an envelope.
func (h *Handler) handleBackupFile(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, r, domain.ErrSnapshotNotFound)
		return
	}
	data, info, err := h.backups.Read(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="snapshot-`+info.ID+`.json"`)
	w.Header().Set("X-Checksum-SHA256", info.Checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrInvalidArgument.WithDetails(key + " must be a boolean")
	}
	return b, nil
}
