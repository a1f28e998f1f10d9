package middleware

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/smilemakc/wfkernel/internal/admission"
	"github.com/smilemakc/wfkernel/internal/receipt"
	"github.com/smilemakc/wfkernel/internal/scheduler"
	"github.com/smilemakc/wfkernel/internal/snapshot"
	"github.com/smilemakc/wfkernel/internal/workflow"
)

// APIError is the JSON shape returned for every 4xx/5xx response.
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string { return e.Message }

// NewAPIError builds an APIError with no detail payload.
func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// NewAPIErrorWithDetails builds an APIError carrying a detail payload.
func NewAPIErrorWithDetails(code, message string, httpStatus int, details map[string]any) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: httpStatus}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	ErrNotFound         = NewAPIError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrConflict         = NewAPIError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrValidationFailed = NewAPIError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest)
	ErrInternalServer   = NewAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "invalid JSON in request body", http.StatusBadRequest)
	ErrBusy             = NewAPIError("BUSY", "scheduler at capacity", http.StatusServiceUnavailable)
)

// TranslateError maps a domain sentinel error to its HTTP representation.
func TranslateError(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, snapshot.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, snapshot.ErrInvariantViolation):
		return NewAPIError("INVARIANT_VIOLATION", err.Error(), http.StatusConflict)
	case errors.Is(err, snapshot.ErrPromotionBlocked):
		return NewAPIError("PROMOTION_BLOCKED", err.Error(), http.StatusConflict)
	case errors.Is(err, admission.ErrSchemaMismatch):
		return NewAPIError("SCHEMA_MISMATCH", err.Error(), http.StatusBadRequest)
	case errors.Is(err, admission.ErrUnknownTerm):
		return NewAPIError("UNKNOWN_TERM", err.Error(), http.StatusBadRequest)
	case errors.Is(err, admission.ErrSizeExceeded):
		return NewAPIError("SIZE_EXCEEDED", err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, workflow.ErrTerminalState):
		return NewAPIError("TERMINAL_STATE", err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrLateArrival):
		return NewAPIError("LATE_ARRIVAL", err.Error(), http.StatusConflict)
	case errors.Is(err, receipt.ErrFoldMismatch):
		return NewAPIError("FOLD_MISMATCH", err.Error(), http.StatusConflict)
	case errors.Is(err, scheduler.ErrBusy):
		return ErrBusy
	case errors.Is(err, scheduler.ErrCancelled):
		return NewAPIError("CANCELLED", err.Error(), http.StatusGatewayTimeout)
	default:
		return NewAPIErrorWithDetails(ErrInternalServer.Code, err.Error(), ErrInternalServer.HTTPStatus, nil)
	}
}
