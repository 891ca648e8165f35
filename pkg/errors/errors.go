package errors

import "fmt"

// Kind classifies the failures the export pipeline distinguishes between.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindNetwork     Kind = "network"
	KindNotFound    Kind = "not_found"
	KindServerError Kind = "server_error"
	KindParsing     Kind = "parsing"
	KindLocalIO     Kind = "local_io"
	KindUnknown     Kind = "unknown"
)

// Error represents a classified failure from the Flickr API or local disk.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// New creates a classified error.
func New(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// IsRetryable reports whether an error kind should be retried with backoff.
// Auth failures are never retried: token renewal happens outside this tool.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindRateLimit, KindServerError, KindLocalIO:
		return true
	case KindAuth, KindNotFound, KindParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
