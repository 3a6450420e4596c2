package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies errors from the remote library API and local storage
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeCorruptStore ErrorType = "corrupt_store"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error represents a classified error with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a classified error
func New(t ErrorType, message string, code int) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// Newf creates a classified error with a formatted message
func Newf(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError:
		return true
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
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

// TypeOf returns the classified type of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsAuth reports whether err is an authentication failure (expired or
// invalid credentials). Auth errors pause the run for credential refresh
// instead of aborting it.
func IsAuth(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}

// IsCorruptStore reports whether err means the metadata store exists but
// cannot be parsed. Fatal: the run must abort before any mutation.
func IsCorruptStore(err error) bool {
	return TypeOf(err) == ErrorTypeCorruptStore
}
