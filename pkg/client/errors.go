package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrCancelled is returned when the caller's context ends a call.
	// Cancellation is terminal and never retried.
	ErrCancelled = errors.New("request cancelled")

	// ErrTransport is returned for connection-level failures that happen
	// before an HTTP status is known. Transport failures are retryable.
	ErrTransport = errors.New("transport failure")

	// ErrMalformedResponse is returned when a 2xx body does not parse as
	// a result page. Retrying cannot fix a malformed payload, so it is
	// surfaced immediately.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRetryExhausted is returned when every allowed attempt failed
	// with a retryable error. It wraps the last attempt's error.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrFeatureNotFound is returned by lookups that expect exactly one
	// feature when the server returns none.
	ErrFeatureNotFound = errors.New("feature not found")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (except 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a non-2xx response from the search endpoint.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("webstatus %s error (status %d): %s: %s",
			e.Class, e.StatusCode, e.Message, e.Body)
	}
	return fmt.Sprintf("webstatus %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Retryable reports whether this status is worth another attempt.
func (e *APIError) Retryable() bool {
	return shouldRetry(e.Class)
}

// TimeoutError reports a single attempt that exceeded its per-attempt
// budget. Timeouts are retryable; when attempts run out the last one is
// what ErrRetryExhausted wraps.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %v", e.Timeout)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// classifyStatus buckets an HTTP status code for retry decisions and
// observability.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500 && statusCode < 600:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error class should be retried.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassClient:
		// 4xx errors will not improve on retry
		return false
	case ErrorClassServer:
		// 5xx server errors are transient
		return true
	case ErrorClassRateLimit:
		// 429 clears once the window resets
		return true
	case ErrorClassNetwork:
		// Connection failures and timeouts are transient
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is worth another attempt: a retryable
// HTTP status (429 or 5xx), a transport failure, or an attempt timeout.
// Cancellation and malformed responses are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shouldRetry(apiErr.Class)
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	return errors.Is(err, ErrTransport)
}

// errorClass extracts the class label used on metrics and logs.
func errorClass(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return ErrorClassNetwork
	}
	if errors.Is(err, ErrTransport) {
		return ErrorClassNetwork
	}
	return ""
}
