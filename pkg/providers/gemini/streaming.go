package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mercator-hq/switchboard/pkg/providers"
)

// streamReader reads streamGenerateContent events. Each event is a complete
// GeminiResponse holding only the newly generated parts.
type streamReader struct {
	provider string
	body     io.ReadCloser
	scanner  *providers.SSEScanner
	closed   bool
	done     bool

	// usage is cumulative in every event; only the last value is reported
	usage *providers.TokenUsage
	calls int
}

func newStreamReader(provider string, body io.ReadCloser) *streamReader {
	return &streamReader{
		provider: provider,
		body:     body,
		scanner:  providers.NewSSEScanner(body),
	}
}

// Read reads the next chunk from the stream.
// Returns nil, io.EOF when the stream ends normally.
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
			if s.usage != nil {
				return &providers.Chunk{Usage: s.usage}, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var terr *providers.TransportError
			if errors.As(err, &terr) {
				return nil, err
			}
			return nil, &providers.StreamError{Provider: s.provider, Message: "failed to read stream", Cause: err}
		}

		var event GeminiResponse
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

		if u := transformUsage(event.UsageMetadata); u != nil {
			s.usage = u
		}
		if len(event.Candidates) == 0 {
			continue
		}

		candidate := event.Candidates[0]
		text, thinking, calls := transformParts(candidate.Content.Parts, s.calls)
		s.calls += len(calls)

		chunk := &providers.Chunk{
			Text:         text,
			Thinking:     thinking,
			ToolCalls:    calls,
			FinishReason: candidate.FinishReason,
		}
		if chunk.Empty() {
			continue
		}
		return chunk, nil
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
