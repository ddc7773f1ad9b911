package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeMalformed marks a per-row expansion failure. Recoverable:
	// the offending row is skipped and reported, never aborting a batch.
	ErrTypeMalformed ErrorType = "MALFORMED"
	// ErrTypeEmptyBatch marks aggregation invoked with no input.
	// Recoverable: the caller may skip aggregation for the batch.
	ErrTypeEmptyBatch ErrorType = "EMPTY_BATCH"
	// ErrTypeReconcile marks a structural invariant violation during
	// reconciliation. Fatal: the run aborts with no partial output.
	ErrTypeReconcile ErrorType = "RECONCILE"

	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Helper functions for common error types

// NewMalformedExtractError creates a per-row expansion error carrying
// the source row position for reporting.
func NewMalformedExtractError(rowNumber int, message string) *AppError {
	return NewAppError(ErrTypeMalformed, message, nil).
		WithContext("row_number", rowNumber)
}

// NewEmptyBatchError creates an empty-batch aggregation error.
func NewEmptyBatchError() *AppError {
	return NewAppError(ErrTypeEmptyBatch, "no records to aggregate in batch", nil)
}

// NewReconciliationError creates a fatal reconciliation error.
func NewReconciliationError(message string) *AppError {
	return NewAppError(ErrTypeReconcile, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}
