package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	testhelpers "mercator-hq/switchboard/internal/providers"
	"mercator-hq/switchboard/pkg/providers"
)

// readAll drains a stream reader into chunks.
func readAll(t *testing.T, r providers.StreamReader) ([]*providers.Chunk, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var chunks []*providers.Chunk
	for {
		chunk, err := r.Read(ctx)
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

func joinText(chunks []*providers.Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func TestProvider_OpenStream(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockOpenAIStreamChunk("Hello", ""),
			testhelpers.MockOpenAIStreamChunk(", ", ""),
			testhelpers.MockOpenAIStreamChunk("world", ""),
			testhelpers.MockOpenAIStreamChunk("!", "stop"),
		},
	})

	provider := newTestProvider(t, mock)

	stream, err := provider.OpenStream(context.Background(), testhelpers.TestCall("k", "m", "hi"))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	chunks, err := readAll(t, stream)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if got := joinText(chunks); got != "Hello, world!" {
		t.Errorf("expected %q, got %q", "Hello, world!", got)
	}
	if chunks[len(chunks)-1].FinishReason != "stop" {
		t.Errorf("expected finish reason on last chunk, got %q", chunks[len(chunks)-1].FinishReason)
	}

	body, _ := mock.Requests()[0].JSON()
	if body["stream"] != true {
		t.Errorf("expected stream=true in body, got %v", body["stream"])
	}
	if _, ok := body["stream_options"]; ok {
		t.Error("expected no stream_options unless configured")
	}
}

func TestProvider_OpenStream_Usage(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockOpenAIStreamChunk("ok", "stop"),
			testhelpers.MockOpenAIUsageChunk(9, 2),
		},
	})

	cfg := testhelpers.TestConfigWithURL("openrouter", providers.TypeOpenAI, mock.URL()+"/v1")
	cfg.IncludeStreamUsage = true
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	stream, err := provider.OpenStream(context.Background(), testhelpers.TestCall("k", "m", "hi"))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	chunks, err := readAll(t, stream)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	last := chunks[len(chunks)-1]
	if last.Usage == nil || last.Usage.TotalTokens != 11 {
		t.Errorf("expected usage-only final chunk, got %+v", last)
	}

	body, _ := mock.Requests()[0].JSON()
	opts, ok := body["stream_options"].(map[string]any)
	if !ok || opts["include_usage"] != true {
		t.Errorf("expected stream_options.include_usage, got %v", body["stream_options"])
	}
}

func TestProvider_OpenStream_ReasoningAndToolCalls(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			`{"choices":[{"delta":{"reasoning":"Let me check"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"clock","arguments":"{}"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		},
	})

	provider := newTestProvider(t, mock)
	stream, err := provider.OpenStream(context.Background(), testhelpers.TestCall("k", "m", "hi"))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	chunks, err := readAll(t, stream)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected reasoning chunk and one tool call chunk, got %d", len(chunks))
	}
	if chunks[0].Thinking != "Let me check" {
		t.Errorf("expected thinking delta, got %q", chunks[0].Thinking)
	}

	calls := chunks[1].ToolCalls
	if len(calls) != 2 {
		t.Fatalf("expected 2 merged tool calls, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Function.Arguments != `{"q":"go"}` {
		t.Errorf("expected fragments merged by index, got %+v", calls[0])
	}
	if calls[1].Type != providers.ToolTypeFunction || calls[1].Function.Name != "clock" {
		t.Errorf("unexpected second call: %+v", calls[1])
	}
}

func TestProvider_OpenStream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response testhelpers.MockResponse
		wantKind providers.Kind
		openErr  bool
	}{
		{
			name:     "status before stream",
			response: testhelpers.MockRateLimitError(3),
			wantKind: providers.KindRateLimited,
			openErr:  true,
		},
		{
			name: "in-band error",
			response: testhelpers.MockResponse{StreamChunks: []string{
				testhelpers.MockOpenAIStreamChunk("partial", ""),
				`{"error":{"code":402,"message":"Insufficient credits"}}`,
			}},
			wantKind: providers.KindInsufficientCredits,
		},
		{
			name: "malformed chunk",
			response: testhelpers.MockResponse{StreamChunks: []string{
				`{"choices":[`,
			}},
			wantKind: providers.KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", tt.response)

			provider := newTestProvider(t, mock)
			stream, err := provider.OpenStream(context.Background(), testhelpers.TestCall("k", "m", "hi"))
			if tt.openErr {
				if err == nil {
					stream.Close()
					t.Fatal("expected OpenStream to fail")
				}
				if kind := providers.ClassifyError(err); kind != tt.wantKind {
					t.Errorf("expected %s, got %s", tt.wantKind, kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStream() error = %v", err)
			}
			defer stream.Close()

			_, err = readAll(t, stream)
			if err == nil {
				t.Fatal("expected stream error")
			}
			if kind := providers.ClassifyError(err); kind != tt.wantKind {
				t.Errorf("expected %s, got %s (%v)", tt.wantKind, kind, err)
			}
		})
	}
}

func TestStreamReader_Cancelled(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockOpenAIStreamChunk("a", ""),
			testhelpers.MockOpenAIStreamChunk("b", ""),
		},
		StallAfter: 1,
	})

	provider := newTestProvider(t, mock)
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := provider.OpenStream(ctx, testhelpers.TestCall("k", "m", "hi"))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	if chunk, err := stream.Read(ctx); err != nil || chunk.Text != "a" {
		t.Fatalf("expected first chunk, got %+v (%v)", chunk, err)
	}

	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = stream.Read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := stream.Read(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}
