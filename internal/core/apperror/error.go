// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Load and generation failures of the schema engine are reported as AppError;
// lookup misses are never errors.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Schema lifecycle errors (503)
	CodeMetadataLoad      = "METADATA_LOAD_FAILED"
	CodeMetadataNotLoaded = "METADATA_NOT_LOADED"
	CodeDocumentMissing   = "DOCUMENT_MISSING"

	// DDL generation (500)
	CodeDDLGeneration = "DDL_GENERATION_FAILED"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (class path, document id, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewMetadataLoad wraps a failure to fetch or merge the metadata documents.
func NewMetadataLoad(err error) *AppError {
	return &AppError{
		Code:       CodeMetadataLoad,
		Message:    "Failed to load metadata",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewMetadataNotLoaded is returned by operations that need a loaded schema.
func NewMetadataNotLoaded() *AppError {
	return &AppError{
		Code:       CodeMetadataNotLoaded,
		Message:    "Metadata is not loaded",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// NewDocumentMissing reports a required store document (meta, meta_patch) that does not exist.
func NewDocumentMissing(docID string) *AppError {
	return &AppError{
		Code:       CodeDocumentMissing,
		Message:    fmt.Sprintf("Metadata document %q is missing", docID),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"document_id": docID},
	}
}

// NewDDLGeneration reports a class whose table DDL could not be generated.
func NewDDLGeneration(classPath string, err error) *AppError {
	return &AppError{
		Code:       CodeDDLGeneration,
		Message:    fmt.Sprintf("Failed to generate DDL for %s", classPath),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"class": classPath},
		Err:        err,
	}
}

// NewDatabase wraps a storage failure.
func NewDatabase(err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    "Database error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsDocumentMissing checks if error is CodeDocumentMissing
func IsDocumentMissing(err error) bool {
	return HasCode(err, CodeDocumentMissing)
}
