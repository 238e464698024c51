package core

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryLocator                         // Malformed locator, unknown strategy
	ErrCategoryUsage                           // Bad timeout, bad reference, unknown keyword
	ErrCategoryLookup                          // No elements, index out of range, visibility checks
	ErrCategoryTimeout                         // Retry window elapsed
	ErrCategoryConnection                      // Backend unreachable or session gone
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryLocator:
		return "locator"
	case ErrCategoryUsage:
		return "usage"
	case ErrCategoryLookup:
		return "lookup"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	default:
		return "unknown"
	}
}
