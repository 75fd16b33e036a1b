package providers

import (
	"fmt"
	"time"
)

// HTTPError represents a non-2xx response received while opening a stream.
// Non-streaming calls return the status in RawResponse instead.
type HTTPError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Body is the (size limited) response body
	Body []byte

	// RetryAfter is the duration parsed from the Retry-After header, if any
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, Truncate(string(e.Body), 200))
}

// TransportError represents a failure to complete the HTTP exchange:
// connection refused, DNS failure, reset, or a per-call timeout.
type TransportError struct {
	// Provider is the name of the provider
	Provider string

	// Timeout is true when the per-call deadline expired
	Timeout bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %q request timed out: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("provider %q request failed: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ParseError represents a response parsing failure.
// This occurs when the provider returns a malformed response.
type ParseError struct {
	// Provider is the name of the provider that returned the malformed response
	Provider string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// BuildError represents a request that cannot be expressed in the provider's
// wire format, such as a content part the provider does not understand.
// It is never retried.
type BuildError struct {
	// Provider is the adapter type that rejected the request
	Provider string

	// Message describes what could not be translated
	Message string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("provider %q cannot build request: %s", e.Provider, e.Message)
}

// StreamError represents an error that occurred after a stream was opened.
// Body is set when the provider sent an error payload inside the stream.
type StreamError struct {
	// Provider is the name of the provider where the error occurred
	Provider string

	// Message is the error message
	Message string

	// Body is the in-band error payload, if any
	Body []byte

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
