package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeAuthLost         ErrorType = "auth_lost"
	ErrorTypeAuthFailed       ErrorType = "auth_failed"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeEmptyResource    ErrorType = "empty_resource"
	ErrorTypeInvalidRange     ErrorType = "invalid_range"
	ErrorTypeRetriesExhausted ErrorType = "retries_exhausted"
	ErrorTypeParsing          ErrorType = "parsing"
	ErrorTypeServerError      ErrorType = "server_error"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// Error represents a transfer error with type information
type Error struct {
	Type     ErrorType
	Message  string
	Code     int
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	msg += ": " + e.Message
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around a cause.
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Network reports a transport-level fault such as a timeout or reset connection.
func Network(url string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: "transport failure", URL: url, Err: err}
}

// AuthLost reports a 4xx response on a request that should have been authorized.
func AuthLost(url string, code int) *Error {
	return &Error{Type: ErrorTypeAuthLost, Message: "authentication lost", URL: url, Code: code}
}

// AuthFailed reports a login endpoint that refused the credentials.
func AuthFailed(url string, code int) *Error {
	return &Error{Type: ErrorTypeAuthFailed, Message: "login rejected", URL: url, Code: code}
}

// ServerError reports a 5xx response.
func ServerError(url string, code int) *Error {
	return &Error{Type: ErrorTypeServerError, Message: "server error", URL: url, Code: code}
}

// NotFound reports a resource the server does not have.
func NotFound(url string, code int) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: "resource not found", URL: url, Code: code}
}

// EmptyResource reports a resource whose advertised size is zero.
func EmptyResource(url string) *Error {
	return &Error{Type: ErrorTypeEmptyResource, Message: "resource is empty", URL: url}
}

// InvalidRange reports a 416 answer to a resume request.
func InvalidRange(url string, code int) *Error {
	return &Error{Type: ErrorTypeInvalidRange, Message: "requested range not satisfiable", URL: url, Code: code}
}

// RetriesExhausted wraps the last failure once every attempt has been used.
func RetriesExhausted(url string, attempts int, last error) *Error {
	return &Error{
		Type:     ErrorTypeRetriesExhausted,
		Message:  fmt.Sprintf("gave up after %d attempts", attempts),
		URL:      url,
		Attempts: attempts,
		Err:      last,
	}
}

// TypeOf returns the ErrorType of the first typed error in err's chain,
// or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether any error in err's chain has the given type.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeAuthLost:
		return true
	case ErrorTypeAuthFailed, ErrorTypeNotFound, ErrorTypeEmptyResource,
		ErrorTypeInvalidRange, ErrorTypeRetriesExhausted, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableError reports whether err carries a retryable type.
func IsRetryableError(err error) bool {
	return IsRetryable(TypeOf(err))
}
