package handler

import (
	"net/http"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (domain.Collection, bool) {
	c, err := domain.ParseCollection(r.PathValue("collection"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return "", false
	}
	return c, true
}

// handleListKeys handles GET /v1/collections/{collection}/keys.
func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}

	keys, err := h.store.ListKeys(r.Context(), c)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, KeysResponse{Collection: c.String(), Keys: keys})
}

// handleGetRecord handles GET /v1/collections/{collection}/records/{id}.
// The theme is synthesized when absent. The root node is seeded on first
// read; once deleted it answers 404 until the nodes collection is cleared.
func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	rec, err := h.store.GetOrDefault(r.Context(), c, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if rec == nil {
		h.writeError(w, r, domain.ErrRecordNotFound.WithDetails(c.String()+"/"+id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, rec)
}

// handlePutRecord handles PUT /v1/collections/{collection}/records/{id}.
// A body without an id takes the id from the path; a different id is
// rejected.
func (h *Handler) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	body, err := readBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	rec := domain.Record(body)
	if rec.HasID() {
		got, err := rec.ID()
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if got != id {
			h.writeError(w, r, domain.ErrInvalidRecord.WithDetails("body id "+got+" does not match path id "+id))
			return
		}
	} else if rec, err = rec.WithID(id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if err := h.store.Put(r.Context(), c, rec); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, rec)
}

// handleDeleteRecord handles DELETE /v1/collections/{collection}/records/{id}.
func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), c, r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCollection handles DELETE /v1/collections/{collection}.
func (h *Handler) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	if err := h.store.Clear(r.Context(), c); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetTheme handles GET /v1/theme.
func (h *Handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.store.GetTheme(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, theme)
}

// handlePutTheme handles PUT /v1/theme.
func (h *Handler) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var theme domain.Theme
	if err := decodeJSON(r, &theme); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.store.SaveTheme(r.Context(), &theme); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	theme.ID = domain.ThemeID
	h.writeJSON(w, r, http.StatusOK, theme)
}

// handleGetImage handles GET /v1/images/{id}.
func (h *Handler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, ok, err := h.store.GetImage(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, domain.ErrRecordNotFound.WithDetails("images/"+id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, ImageResponse{ID: id, Data: data})
}

// handlePutImage handles PUT /v1/images/{id}.
func (h *Handler) handlePutImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ImageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Data == "" {
		h.writeError(w, r, domain.ErrMissingArgument.WithDetails("data"))
		return
	}
	if err := h.store.SaveImage(r.Context(), id, req.Data); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteImage handles DELETE /v1/images/{id}.
func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteImage(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
