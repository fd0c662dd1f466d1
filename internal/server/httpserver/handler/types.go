package handler

import (
	"encoding/json"
	"time"

	"github.com/yndnr/canvasvault/internal/infra/buildinfo"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
)

// Response is the standard API response envelope.
// All JSON responses use this format except /metrics and snapshot file
// downloads.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   string `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message, details string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// HealthResponse is returned by /health and /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode,omitempty"`
	Time   string `json:"time"`
}

// KeysResponse is the body of GET /v1/collections/{collection}/keys.
type KeysResponse struct {
	Collection string   `json:"collection"`
	Keys       []string `json:"keys"`
}

// ImageRequest is the body of PUT /v1/images/{id}.
type ImageRequest struct {
	Data string `json:"data"`
}

// ImageResponse is the body of GET /v1/images/{id}.
type ImageResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// StatusResponse is the body of GET /admin/v1/status.
type StatusResponse struct {
	Mode        string         `json:"mode"`
	Engine      string         `json:"engine"`
	Cause       string         `json:"cause,omitempty"`
	ResetQueued bool           `json:"reset_queued"`
	Build       buildinfo.Info `json:"build"`
}

// ExportRequest is the optional body of POST /admin/v1/backups/export.
// The editing layer owns the edit state; it is carried into the snapshot
// verbatim.
type ExportRequest struct {
	EditCounter        *int64          `json:"editCounter"`
	LastBackupReminder json.RawMessage `json:"lastBackupReminder"`
}

// ExportResponse is the body of POST /admin/v1/backups/export.
type ExportResponse struct {
	Document *snapshot.Document `json:"document"`
	Snapshot *snapshot.Info     `json:"snapshot,omitempty"`
	Pruned   []string           `json:"pruned,omitempty"`
}

// ImportResponse is the body of POST /admin/v1/backups/import.
type ImportResponse struct {
	Source    string             `json:"source"`
	EditState snapshot.EditState `json:"editState"`
}

// ListBackupsResponse is the body of GET /admin/v1/backups.
type ListBackupsResponse struct {
	Snapshots []*snapshot.Info `json:"snapshots"`
}

// ResetResponse is the body of POST /admin/v1/store/reset.
type ResetResponse struct {
	Requested bool   `json:"requested"`
	Flag      string `json:"flag,omitempty"`
	Message   string `json:"message"`
}
