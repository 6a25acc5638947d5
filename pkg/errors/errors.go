package errors

import (
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeMalformedRecord indicates a raw export record that cannot be built
	ErrorTypeMalformedRecord ErrorType = "MALFORMED_RECORD"

	// ErrorTypeExtraction indicates a failed attachment text extraction
	ErrorTypeExtraction ErrorType = "EXTRACTION_FAILED"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	// Field names the offending field for malformed-record errors
	Field string
	Err   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Field != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (field %q): %v", e.Type, e.Message, e.Field, e.Err)
		}
		return fmt.Sprintf("%s: %s (field %q)", e.Type, e.Message, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == t
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewMalformedRecordError creates an error for an unbuildable raw record,
// naming the field that failed to parse
func NewMalformedRecordError(field, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedRecord,
		Message: message,
		Field:   field,
	}
}

// NewExtractionError creates an error for a failed attachment extraction
func NewExtractionError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExtraction,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}
