package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrElementNotFound
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrTimeout
	newErr := original.WithMessage("custom timeout message")

	if newErr.Message != "custom timeout message" {
		t.Errorf("Message = %q, want 'custom timeout message'", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == "custom timeout message" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{
		"selector": "#button",
		"timeout":  5000,
	})

	if newErr.Details["selector"] != "#button" {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrInvalidLocator, ErrCategoryLocator, "invalid_locator"},
		{ErrUnsupportedStrategy, ErrCategoryLocator, "unsupported_strategy"},
		{ErrInvalidTimeout, ErrCategoryUsage, "invalid_timeout"},
		{ErrInvalidReference, ErrCategoryUsage, "invalid_reference"},
		{ErrUnknownKeyword, ErrCategoryUsage, "unknown_keyword"},
		{ErrNoElementsFound, ErrCategoryLookup, "no_elements_found"},
		{ErrIndexOutOfRange, ErrCategoryLookup, "index_out_of_range"},
		{ErrElementNotFound, ErrCategoryLookup, "element_not_found"},
		{ErrElementNotVisible, ErrCategoryLookup, "element_not_visible"},
		{ErrElementVisible, ErrCategoryLookup, "element_visible"},
		{ErrTimeout, ErrCategoryTimeout, "timeout"},
		{ErrSessionNotConnected, ErrCategoryConnection, "session_not_connected"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryUsage, "custom_error", "custom message")

	if err.Category != ErrCategoryUsage {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryUsage)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrTimeout.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestExecutionError_IsMatchesDerivedErrors(t *testing.T) {
	derived := ErrNoElementsFound.
		WithMessage("no elements found for locator 'id=x' within 1s").
		WithDetails(map[string]interface{}{"locator": "id=x"})

	if !errors.Is(derived, ErrNoElementsFound) {
		t.Error("derived error should match its predefined error")
	}
	if errors.Is(derived, ErrTimeout) {
		t.Error("derived error should not match a different code")
	}

	wrapped := fmt.Errorf("outer: %w", derived)
	if !errors.Is(wrapped, ErrNoElementsFound) {
		t.Error("errors.Is should see through fmt.Errorf wrapping")
	}
}

func TestRetryable(t *testing.T) {
	base := errors.New("stale element reference")

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	if IsRetryable(base) {
		t.Error("plain error should not be retryable")
	}

	r := Retryable(base)
	if !IsRetryable(r) {
		t.Error("marked error should be retryable")
	}
	if !errors.Is(r, base) {
		t.Error("marked error should unwrap to its cause")
	}
	if r.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", r.Error(), base.Error())
	}
	if Retryable(r) != r {
		t.Error("marking twice should return the same error")
	}

	wrapped := fmt.Errorf("probe: %w", r)
	if !IsRetryable(wrapped) {
		t.Error("wrapping should keep the retryable mark visible")
	}
}
