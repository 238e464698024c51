package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: invalid_locator, timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches any ExecutionError with the same Code, so errors derived from a
// predefined error via WithMessage/WithDetails/WithCause still satisfy
// errors.Is(err, ErrXxx).
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Locator errors
	ErrInvalidLocator = &ExecutionError{
		Category: ErrCategoryLocator,
		Code:     "invalid_locator",
		Message:  "invalid locator",
	}
	ErrUnsupportedStrategy = &ExecutionError{
		Category: ErrCategoryLocator,
		Code:     "unsupported_strategy",
		Message:  "locator strategy is not supported",
	}

	// Usage errors
	ErrInvalidTimeout = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "invalid_timeout",
		Message:  "timeout must be positive",
	}
	ErrInvalidReference = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "invalid_reference",
		Message:  "invalid context reference",
	}
	ErrUnknownKeyword = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "unknown_keyword",
		Message:  "keyword is not registered",
	}

	// Lookup errors
	ErrNoElementsFound = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "no_elements_found",
		Message:  "no elements found",
	}
	ErrIndexOutOfRange = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "index_out_of_range",
		Message:  "reference index out of range",
	}
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementNotVisible = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "element_not_visible",
		Message:  "element not visible",
	}
	ErrElementVisible = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "element_visible",
		Message:  "element is still visible",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}

	// Connection errors
	ErrSessionNotConnected = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_not_connected",
		Message:  "no automation session",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// RetryableError marks a transient failure (stale handle, element not yet
// present, flaky transport) that the retry engine may swallow and retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable marks err as retryable. nil stays nil and already-marked
// errors are returned as-is.
func Retryable(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err, or anything it wraps, is marked retryable.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
