package pipeline

import (
	"context"
	"time"

	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/providers"
)

// Dispatcher is the part of *dispatch.Engine the pipeline decorates.
type Dispatcher interface {
	CallWithRetry(ctx context.Context, req dispatch.Request) (*dispatch.Response, error)
	CallStreamUnified(ctx context.Context, req dispatch.Request, emit dispatch.Emitter) *dispatch.StreamResult
	DefaultModel(provider string) string
}

// Request is a dispatch request plus bookkeeping labels.
type Request struct {
	dispatch.Request

	// Origin names what issued the request (ask, chat, compare)
	Origin string

	// SessionID groups the turns of one conversation
	SessionID string
}

// RequestContext is the bookkeeping record for one request.
type RequestContext struct {
	// ID uniquely identifies the request (UUID)
	ID string

	Origin    string
	SessionID string
	Provider  string
	Model     string

	Streaming       bool
	ThinkingEnabled bool

	StartTime time.Time
	Elapsed   time.Duration

	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// Estimated is true when token counts were computed locally because the
	// provider did not report usage
	Estimated bool

	// Attempts is the number of HTTP exchanges made
	Attempts int

	// RetryCount counts key rotations plus failed attempts retried on the
	// same key
	RetryCount int

	// ResponseText, ReasoningText and ToolCalls are set only on success
	ResponseText  string
	ReasoningText string
	ToolCalls     []providers.ToolCall

	// PartialText is the text a stream emitted before it failed
	PartialText string

	// Error is the user-visible failure message, empty on success
	Error string

	// Err is the underlying *dispatch.Error, nil on success
	Err error
}

// Succeeded reports whether the request produced a response.
func (rc *RequestContext) Succeeded() bool {
	return rc.Err == nil
}

func (rc *RequestContext) setUsage(u *providers.TokenUsage, estimated bool) {
	if u == nil {
		return
	}
	rc.InputTokens = u.PromptTokens
	rc.OutputTokens = u.CompletionTokens
	rc.TotalTokens = u.TotalTokens
	if rc.TotalTokens == 0 {
		rc.TotalTokens = rc.InputTokens + rc.OutputTokens
	}
	rc.Estimated = estimated
}
