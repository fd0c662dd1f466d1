package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
	"github.com/yndnr/canvasvault/internal/telemetry/metric"
)

// Store is the store surface served over HTTP. *storage.Engine
// implements it.
type Store interface {
	snapshot.Source
	snapshot.Target
	Delete(ctx context.Context, c domain.Collection, id string) error
	GetTheme(ctx context.Context) (*domain.Theme, error)
	SaveTheme(ctx context.Context, theme *domain.Theme) error
	DeleteImage(ctx context.Context, id string) error
	Mode() storage.Mode
	Cause() error
	DriverName() string
}

// Backups stores exported documents. *snapshot.Manager implements it.
type Backups interface {
	Save(doc *snapshot.Document) (*snapshot.Info, error)
	List() ([]*snapshot.Info, error)
	Read(id string) ([]byte, *snapshot.Info, error)
	Prune() ([]string, error)
}

// Config holds the handler dependencies.
type Config struct {
	Store     Store
	Codec     *snapshot.Codec
	Backups   Backups
	ResetFlag storage.ResetFlag
	Metrics   *metric.Registry
	Logger    *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	store     Store
	codec     *snapshot.Codec
	backups   Backups
	resetFlag storage.ResetFlag
	metrics   *metric.Registry
	logger    *slog.Logger
	mux       *http.ServeMux

	// backupMu serialises exports and imports.
	backupMu sync.Mutex
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		store:     cfg.Store,
		codec:     cfg.Codec,
		backups:   cfg.Backups,
		resetFlag: cfg.ResetFlag,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.codec == nil {
		h.codec = snapshot.NewCodec(snapshot.WithLogger(h.logger), snapshot.WithMetrics(h.metrics))
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.handle("GET /health", h.handleHealth)
	h.handle("GET /ready", h.handleReady)

	h.handle("GET /v1/collections/{collection}/keys", h.handleListKeys)
	h.handle("GET /v1/collections/{collection}/records/{id}", h.handleGetRecord)
	h.handle("PUT /v1/collections/{collection}/records/{id}", h.handlePutRecord)
	h.handle("DELETE /v1/collections/{collection}/records/{id}", h.handleDeleteRecord)
	h.handle("DELETE /v1/collections/{collection}", h.handleClearCollection)

	h.handle("GET /v1/theme", h.handleGetTheme)
	h.handle("PUT /v1/theme", h.handlePutTheme)

	h.handle("GET /v1/images/{id}", h.handleGetImage)
	h.handle("PUT /v1/images/{id}", h.handlePutImage)
	h.handle("DELETE /v1/images/{id}", h.handleDeleteImage)

	h.handle("GET /admin/v1/status", h.handleStatus)
	h.handle("POST /admin/v1/store/reset", h.handleStoreReset)

	h.handle("POST /admin/v1/backups/export", h.handleExport)
	h.handle("POST /admin/v1/backups/import", h.handleImport)
	h.handle("GET /admin/v1/backups", h.handleListBackups)
	h.handle("GET /admin/v1/backups/{id}/file", h.handleBackupFile)
}

// handle registers fn and records request metrics under its pattern.
func (h *Handler) handle(pattern string, fn http.HandlerFunc) {
	method, route, _ := strings.Cut(pattern, " ")
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		fn(sw, r)
		h.metrics.ObserveRequest(method, route, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", err.Code)
	w.WriteHeader(errorCodeToHTTPStatus(err.Code))
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, err.Code, err.Message, err.Details))
}

// handleServiceError converts store and codec errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if errorCodeToHTTPStatus(de.Code) >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "code", de.Code, "error", err)
		}
		h.writeError(w, r, de)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, r, domain.ErrPayloadTooLarge.WithDetails("limit "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes"))
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, domain.ErrInternalServer)
}

// readBody reads the whole request body. The size cap is applied by the
// server middleware.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, domain.ErrBadRequest.WithCause(err)
	}
	return body, nil
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	return unmarshalBody(body, v)
}

func unmarshalBody(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return domain.ErrBadRequest.WithDetails("invalid JSON body")
	}
	return nil
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes. The numeric
// part of a CV code carries the status in its first three digits; argument
// errors are always 400.
func errorCodeToHTTPStatus(code string) int {
	if strings.HasPrefix(code, "CV-ARG-") {
		return http.StatusBadRequest
	}
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 != 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	if status := n / 10; status >= 400 && status < 600 {
		return status
	}
	return http.StatusInternalServerError
}
