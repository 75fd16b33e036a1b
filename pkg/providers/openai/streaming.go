package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"mercator-hq/switchboard/pkg/providers"
)

// streamReader reads Server-Sent Events (SSE) from a chat completions stream.
type streamReader struct {
	provider string
	body     io.ReadCloser
	scanner  *providers.SSEScanner
	closed   bool
	done     bool

	// pending accumulates tool call fragments keyed by their stream index
	pending map[int]*providers.ToolCall
}

func newStreamReader(provider string, body io.ReadCloser) *streamReader {
	return &streamReader{
		provider: provider,
		body:     body,
		scanner:  providers.NewSSEScanner(body),
		pending:  make(map[int]*providers.ToolCall),
	}
}

// Read reads the next chunk from the stream.
// Returns nil, io.EOF when the stream ends normally.
// Returns nil, error if an error occurs.
//
// Tool call fragments are merged by index and delivered as one chunk when
// the choice finishes or the stream ends.
func (s *streamReader) Read(ctx context.Context) (*providers.Chunk, error) {
	if s.closed || s.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.scanner.Next()
		if errors.Is(err, io.EOF) {
			s.done = true
			if calls := s.flushToolCalls(); len(calls) > 0 {
				return &providers.Chunk{ToolCalls: calls}, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, s.readError(err)
		}

		var event OpenAIStreamResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider,
				RawResponse: providers.Truncate(data, 500),
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}

		if len(event.Error) > 0 && string(event.Error) != "null" {
			return nil, &providers.StreamError{
				Provider: s.provider,
				Message:  "provider reported an error mid-stream",
				Body:     event.Error,
			}
		}

		chunk := s.transformStreamChunk(&event)
		if chunk.Empty() && chunk.Usage == nil {
			continue
		}
		return chunk, nil
	}
}

// transformStreamChunk converts one SSE event into a canonical chunk.
func (s *streamReader) transformStreamChunk(event *OpenAIStreamResponse) *providers.Chunk {
	chunk := &providers.Chunk{Usage: transformUsage(event.Usage)}
	if len(event.Choices) == 0 {
		return chunk
	}

	choice := event.Choices[0]
	chunk.Text = choice.Delta.Content
	chunk.Thinking = choice.Delta.Reasoning
	if chunk.Thinking == "" {
		chunk.Thinking = choice.Delta.ReasoningContent
	}
	chunk.FinishReason = choice.FinishReason

	for i, tc := range choice.Delta.ToolCalls {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
		}
		s.mergeToolCall(idx, tc)
	}

	if choice.FinishReason != "" {
		chunk.ToolCalls = s.flushToolCalls()
	}
	return chunk
}

func (s *streamReader) mergeToolCall(idx int, tc OpenAIToolCall) {
	call, ok := s.pending[idx]
	if !ok {
		call = &providers.ToolCall{Type: providers.ToolTypeFunction}
		s.pending[idx] = call
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Type != "" {
		call.Type = tc.Type
	}
	if tc.Function.Name != "" {
		call.Function.Name = tc.Function.Name
	}
	call.Function.Arguments += tc.Function.Arguments
}

// flushToolCalls returns the merged tool calls in index order and resets them.
func (s *streamReader) flushToolCalls() []providers.ToolCall {
	if len(s.pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(s.pending))
	for idx := range s.pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]providers.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		calls = append(calls, *s.pending[idx])
	}
	s.pending = make(map[int]*providers.ToolCall)
	return calls
}

func (s *streamReader) readError(err error) error {
	var terr *providers.TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &providers.StreamError{
		Provider: s.provider,
		Message:  "failed to read stream",
		Cause:    err,
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.body.Close()
}
