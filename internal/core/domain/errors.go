// Package domain defines the core domain models for canvasvault.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
//
// Codes follow the format CV-<AREA>-<NNNN>, where the numeric part mirrors
// the HTTP status the error maps to.
type DomainError struct {
	Code    string // Error code (e.g., "CV-SNAP-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
// Two domain errors match when their codes match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrBackendUnavailable indicates the durable backend could not be opened
	// or a transaction against it failed. The failover engine recovers from it
	// locally and never returns it to store callers.
	ErrBackendUnavailable = NewDomainError("CV-STOR-5030", "durable backend unavailable")

	// ErrBackendTimeout indicates the durable backend did not open in time.
	// It is handled exactly like ErrBackendUnavailable.
	ErrBackendTimeout = NewDomainError("CV-STOR-5040", "durable backend open timed out")

	// ErrUnknownCollection indicates a collection name outside nodes/theme/images.
	ErrUnknownCollection = NewDomainError("CV-STOR-4000", "unknown collection")

	// ErrInvalidRecord indicates a record that is not a JSON object with a string id.
	ErrInvalidRecord = NewDomainError("CV-STOR-4001", "invalid record")

	// ErrRecordNotFound indicates the requested record does not exist.
	ErrRecordNotFound = NewDomainError("CV-STOR-4040", "record not found")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrMalformedSnapshot indicates the snapshot could not be parsed at all.
	ErrMalformedSnapshot = NewDomainError("CV-SNAP-4000", "malformed snapshot")

	// ErrInvalidSnapshotStructure indicates the snapshot parsed but failed validation.
	ErrInvalidSnapshotStructure = NewDomainError("CV-SNAP-4220", "invalid snapshot structure")

	// ErrPartialImport indicates an import failed after existing data was cleared.
	// The store is left partially imported.
	ErrPartialImport = NewDomainError("CV-SNAP-5000", "import failed after clearing existing data")

	// ErrBackupInProgress indicates another export or import is running.
	ErrBackupInProgress = NewDomainError("CV-SNAP-4090", "backup operation already in progress")

	// ErrSnapshotNotFound indicates no stored snapshot matches the request.
	ErrSnapshotNotFound = NewDomainError("CV-SNAP-4040", "snapshot not found")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("CV-SYS-5000", "internal server error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("CV-SYS-4000", "bad request")

	// ErrPayloadTooLarge indicates the request body exceeded the configured limit.
	ErrPayloadTooLarge = NewDomainError("CV-SYS-4130", "payload too large")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("CV-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("CV-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("CV-ARG-1002", "missing required argument")
)
