package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInputMissing       = "INPUT_MISSING"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeExternalAPI        = "EXTERNAL_API_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation         = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
	Err     error       `json:"-"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap exposes the sentinel behind the validation failure, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps a pipeline error onto the code reported to clients.
func ErrorCode(err error) string {
	var apiErr *APIError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrInputMissing):
		return ErrCodeInputMissing
	case errors.Is(err, ErrInvariantViolation):
		return ErrCodeInvariantViolation
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidImage):
		return ErrCodeInvalidInput
	default:
		return ErrCodeInternalServer
	}
}
