package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Missing image",
			code:      ErrCodeInputMissing,
			message:   "No image supplied",
			details:   "multipart field 'image' is required",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrCodeDatabase,
			message:   "History store unavailable",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("top_n", "must be positive", -1)

	expected := "validation error for field 'top_n': must be positive"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
	if err.Unwrap() != nil {
		t.Errorf("Expected no wrapped error, got %v", err.Unwrap())
	}
}

func TestErrorCode(t *testing.T) {
	_, parseErr := ParseSymptom("fever")

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"input missing", fmt.Errorf("diagnose: %w", ErrInputMissing), ErrCodeInputMissing},
		{"invariant", fmt.Errorf("normalize: %w", ErrInvariantViolation), ErrCodeInvariantViolation},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), ErrCodeNotFound},
		{"validation", parseErr, ErrCodeInvalidInput},
		{"invalid image", ErrInvalidImage, ErrCodeInvalidInput},
		{"api error", NewAPIError(ErrCodeRateLimit, "slow down", "", ""), ErrCodeRateLimit},
		{"other", errors.New("boom"), ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
