package providers

import (
	"net/http"
	"strings"
	"time"
)

// Message represents a single message in a conversation.
// It is provider-agnostic and will be transformed to provider-specific formats.
//
// A message carries either plain text in Content or an ordered list of Parts.
// When Parts is non-empty it takes precedence over Content.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the plain text content
	Content string `json:"content,omitempty"`

	// Parts is the ordered multimodal content
	Parts []ContentPart `json:"parts,omitempty"`
}

// PartType identifies the variant carried by a ContentPart.
type PartType string

// Content part variants.
const (
	PartText         PartType = "text"
	PartImageRef     PartType = "image_ref"
	PartInlineBinary PartType = "inline_binary"
	PartFileRef      PartType = "file_ref"
)

// ContentPart is one element of a multimodal message.
//
// Which fields are meaningful depends on Type:
//   - PartText: Text
//   - PartImageRef: URL (a data URL or an http(s) URL)
//   - PartInlineBinary: MIMEType and Data (base64, no data: prefix)
//   - PartFileRef: URI and MIMEType
type ContentPart struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	MIMEType string   `json:"mime_type,omitempty"`
	Data     string   `json:"data,omitempty"`
	URI      string   `json:"uri,omitempty"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImageRefPart returns an image reference part. url is usually a
// "data:<mime>;base64,<data>" URL produced by a screenshot or clipboard capture.
func ImageRefPart(url string) ContentPart {
	return ContentPart{Type: PartImageRef, URL: url}
}

// InlineBinaryPart returns an inline binary part with base64 encoded data.
func InlineBinaryPart(mimeType, base64Data string) ContentPart {
	return ContentPart{Type: PartInlineBinary, MIMEType: mimeType, Data: base64Data}
}

// FileRefPart returns a reference to a remotely stored file.
func FileRefPart(uri, mimeType string) ContentPart {
	return ContentPart{Type: PartFileRef, URI: uri, MIMEType: mimeType}
}

// NewTextMessage creates a message with plain text content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// NewPartsMessage creates a message with multimodal content.
func NewPartsMessage(role string, parts ...ContentPart) Message {
	return Message{Role: role, Parts: parts}
}

// HasParts reports whether the message uses multimodal content.
func (m Message) HasParts() bool {
	return len(m.Parts) > 0
}

// Text returns the textual content of the message, joining text parts.
func (m Message) Text() string {
	if !m.HasParts() {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Params carries provider generation parameters (temperature, max_tokens, ...).
// OpenAI-compatible adapters merge them into the request body; the Gemini
// adapter sends them as generationConfig.
type Params map[string]any

// Clone returns a shallow copy of the parameters.
func (p Params) Clone() Params {
	if len(p) == 0 {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ToolCall represents a function/tool call request from the model.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Type is the type of tool call (currently always "function")
	Type string `json:"type"`

	// Function contains the function name and arguments
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a specific function invocation.
type FunctionCall struct {
	// Name is the function name to call
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments
	Arguments string `json:"arguments"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// Call is everything an adapter needs to issue one HTTP request.
type Call struct {
	// Key is the API key selected from the provider's key pool
	Key string

	// Model is the effective model identifier
	Model string

	// Messages is the canonical conversation
	Messages []Message

	// Params are passed through to the provider
	Params Params

	// Thinking asks the provider to return reasoning content when it supports it
	Thinking bool

	// Stream selects the provider's incremental endpoint
	Stream bool

	// Timeout bounds a single HTTP exchange. For streams it bounds the gap
	// between received bytes instead of the whole response.
	Timeout time.Duration
}

// RawResponse is an HTTP response read fully into memory.
// Non-2xx responses are not errors at this level; the dispatcher classifies them.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *RawResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyPreview returns the first n characters of the body for logging.
func (r *RawResponse) BodyPreview(n int) string {
	if r == nil {
		return ""
	}
	return Truncate(string(r.Body), n)
}

// Result is the normalized content of a successful response.
type Result struct {
	Text      string
	Reasoning string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// Chunk is one normalized increment read from a provider stream.
type Chunk struct {
	Text      string
	Thinking  string
	ToolCalls []ToolCall
	Usage     *TokenUsage

	// FinishReason is set on the chunk that ends a choice
	FinishReason string
}

// Empty reports whether the chunk carries no caller-visible content.
func (c *Chunk) Empty() bool {
	return c.Text == "" && c.Thinking == "" && len(c.ToolCalls) == 0
}

// EventType tags the variant carried by a StreamEvent.
type EventType string

// Stream event variants.
const (
	EventText      EventType = "text"
	EventThinking  EventType = "thinking"
	EventToolCalls EventType = "tool_calls"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// StreamEvent is the canonical streaming event delivered to callers.
//
// A stream yields zero or more Text, Thinking and ToolCalls events in arrival
// order, at most one Usage event, and exactly one terminal Done or Error event.
type StreamEvent struct {
	Type EventType

	// Delta is set for Text and Thinking events
	Delta string

	// ToolCalls is set for ToolCalls events
	ToolCalls []ToolCall

	// Usage is set for Usage events
	Usage *TokenUsage

	// Estimated marks usage computed locally instead of reported by the provider
	Estimated bool

	// Message is set for Error events
	Message string
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ProviderConfig contains configuration for a single provider adapter.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "openrouter", "google", "custom")
	Name string

	// Type is the adapter type (openai, gemini, custom)
	Type string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// Headers are extra headers sent with every request
	Headers map[string]string

	// IncludeStreamUsage requests usage in the final stream chunk
	// (stream_options.include_usage) on OpenAI-compatible endpoints
	IncludeStreamUsage bool

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Adapter type constants
const (
	TypeOpenAI = "openai"
	TypeGemini = "gemini"
	TypeCustom = "custom"
)

// Tool type constants
const (
	ToolTypeFunction = "function"
)

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
