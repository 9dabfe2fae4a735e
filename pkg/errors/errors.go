package errors

import "fmt"

// ErrorType represents different types of failures the sync engine can hit
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeMalformed    ErrorType = "malformed"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeImageInvalid ErrorType = "image_invalid"
	ErrorTypeFilesystem   ErrorType = "filesystem"
	ErrorTypeStore        ErrorType = "store"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error represents a failure with type information attached so callers can
// decide between retrying, skipping the item, or aborting the run.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error without an HTTP status code
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithCode creates a typed error carrying the HTTP status code that produced it
func NewWithCode(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeMalformed, ErrorTypeNotFound, ErrorTypeImageInvalid, ErrorTypeFilesystem, ErrorTypeStore:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

// IsFatal reports whether the error should abort the whole run rather than
// being contained to a single item or URL.
func IsFatal(errorType ErrorType) bool {
	return errorType == ErrorTypeStore
}
