package usage

import (
	"context"
	"fmt"
	"time"
)

// Request status values.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Record is one finished request in the usage ledger.
type Record struct {
	// ID uniquely identifies the record (UUID)
	ID string `json:"id"`

	// RequestID correlates the record with log lines
	RequestID string `json:"request_id"`

	// Time is when the request finished
	Time time.Time `json:"time"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Origin names what issued the request (ask, chat, compare)
	Origin string `json:"origin"`

	Streaming bool `json:"streaming"`
	Thinking  bool `json:"thinking"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Estimated is true when token counts were computed locally
	Estimated bool `json:"estimated"`

	Retries int           `json:"retries"`
	Latency time.Duration `json:"latency"`

	// Status is success, error or cancelled
	Status string `json:"status"`

	// Error is the user-visible failure message, if any
	Error string `json:"error,omitempty"`
}

// Query filters ledger records. Zero fields do not filter.
type Query struct {
	Provider string
	Since    time.Time
	Until    time.Time

	// Limit caps the number of records returned, newest first
	Limit int
}

func (q *Query) matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.Provider != "" && r.Provider != q.Provider {
		return false
	}
	if !q.Since.IsZero() && r.Time.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !r.Time.Before(q.Until) {
		return false
	}
	return true
}

// Totals aggregates the ledger for one provider.
type Totals struct {
	Provider         string `json:"provider"`
	Requests         int64  `json:"requests"`
	Failures         int64  `json:"failures"`
	Retries          int64  `json:"retries"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`

	// EstimatedRequests counts records whose tokens were estimated
	EstimatedRequests int64 `json:"estimated_requests"`
}

func (t *Totals) add(r *Record) {
	t.Requests++
	if r.Status != StatusSuccess {
		t.Failures++
	}
	t.Retries += int64(r.Retries)
	t.PromptTokens += int64(r.PromptTokens)
	t.CompletionTokens += int64(r.CompletionTokens)
	t.TotalTokens += int64(r.TotalTokens)
	if r.Estimated {
		t.EstimatedRequests++
	}
}

// Store persists usage records. Implementations are safe for concurrent use.
type Store interface {
	// Store appends a record.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Totals aggregates matching records per provider, sorted by provider.
	Totals(ctx context.Context, query *Query) ([]Totals, error)

	// DeleteBefore removes records older than cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory" or "sqlite"
	Operation string // Operation that failed ("store", "query", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("usage storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
