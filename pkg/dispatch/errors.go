package dispatch

import (
	"errors"

	"mercator-hq/switchboard/pkg/providers"
)

// Terminal failure messages.
const (
	msgNoKey           = "no API key available"
	msgAllInvalid      = "All API keys are invalid"
	msgAllNoCredits    = "All API keys have insufficient credits"
	msgCancelled       = "request cancelled"
	msgUnknownProvider = "unknown provider"
)

// Error is the single terminal failure of a dispatch.
//
// Error() returns the human-readable string callers display. Kind carries the
// classification of the last failed attempt and Cause the underlying error,
// if any.
type Error struct {
	// Provider is the provider the request was dispatched to
	Provider string

	// Kind classifies the failure that ended the request
	Kind providers.Kind

	// Message is the user-visible description
	Message string

	// Attempts is the number of HTTP exchanges made
	Attempts int

	// Retries is the number of failed attempts that were retried
	Retries int

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCancelled reports whether err ended a dispatch because its context was
// cancelled or timed out.
func IsCancelled(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Message == msgCancelled
}
