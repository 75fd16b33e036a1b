package dispatch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"mercator-hq/switchboard/pkg/providers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func textChunks(deltas ...string) []providers.Chunk {
	chunks := make([]providers.Chunk, len(deltas))
	for i, d := range deltas {
		chunks[i] = providers.Chunk{Text: d}
	}
	return chunks
}

func collect(t *testing.T, s *Stream) []providers.StreamEvent {
	t.Helper()

	var events []providers.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func terminalCount(events []providers.StreamEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

func TestStream_ConcatenationAndSingleTerminal(t *testing.T) {
	tests := []struct {
		name   string
		deltas []string
	}{
		{"single delta", []string{"hello"}},
		{"many deltas", []string{"The ", "quick ", "brown ", "fox"}},
		{"unicode", []string{"héllo ", "wörld ", "日本"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := newTestEngine(t, []string{"k1"}, testSettings(),
				step{status: 200, chunks: textChunks(tt.deltas...)})

			s := engine.Stream(context.Background(), userRequest("hi"))
			events := collect(t, s)
			result := s.Wait()

			var sb strings.Builder
			for _, ev := range events {
				if ev.Type == providers.EventText {
					sb.WriteString(ev.Delta)
				}
			}
			want := strings.Join(tt.deltas, "")
			if sb.String() != want {
				t.Errorf("expected concatenated deltas %q, got %q", want, sb.String())
			}
			if result.Text != want {
				t.Errorf("expected result text %q, got %q", want, result.Text)
			}
			if n := terminalCount(events); n != 1 {
				t.Errorf("expected exactly one terminal event, got %d", n)
			}
			if last := events[len(events)-1]; last.Type != providers.EventDone {
				t.Errorf("expected last event %q, got %q", providers.EventDone, last.Type)
			}
			if result.Err != nil {
				t.Errorf("unexpected error: %v", result.Err)
			}
		})
	}
}

func TestStream_ThinkingToolCallsAndUsage(t *testing.T) {
	usage := &providers.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	call := providers.ToolCall{
		ID:       "call_1",
		Type:     providers.ToolTypeFunction,
		Function: providers.FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`},
	}

	engine, _, _ := newTestEngine(t, []string{"k1"}, testSettings(), step{status: 200, chunks: []providers.Chunk{
		{Thinking: "let me "},
		{Thinking: "think"},
		{Text: "answer"},
		{ToolCalls: []providers.ToolCall{call}},
		{Usage: usage},
	}})

	var events []providers.StreamEvent
	result := engine.CallStreamUnified(context.Background(), userRequest("hi"), func(ev providers.StreamEvent) {
		events = append(events, ev)
	})

	if result.Reasoning != "let me think" {
		t.Errorf("expected reasoning %q, got %q", "let me think", result.Reasoning)
	}
	if result.Text != "answer" {
		t.Errorf("expected text %q, got %q", "answer", result.Text)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Function.Name != "lookup" {
		t.Errorf("expected one lookup tool call, got %+v", result.ToolCalls)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 15 {
		t.Errorf("expected reported usage, got %+v", result.Usage)
	}

	var types []providers.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []providers.EventType{
		providers.EventThinking,
		providers.EventThinking,
		providers.EventText,
		providers.EventToolCalls,
		providers.EventUsage,
		providers.EventDone,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("expected events %v, got %v", want, types)
	}
}

func TestStream_NoUsageEventWithoutReportedUsage(t *testing.T) {
	engine, _, _ := newTestEngine(t, []string{"k1"}, testSettings(),
		step{status: 200, chunks: textChunks("hello")})

	result := engine.Stream(context.Background(), userRequest("hi")).Collect()
	if result.Usage != nil {
		t.Errorf("expected no usage, got %+v", result.Usage)
	}
}

func TestStream_RetriesBeforeContent(t *testing.T) {
	engine, adapter, sleeper := newTestEngine(t, []string{"k1", "k2"}, testSettings(),
		step{status: 401, body: `{"error":"invalid api key"}`},
		step{status: 200, streamErr: errNetwork},
		step{status: 200},
		step{status: 200, chunks: textChunks("ok")},
	)

	s := engine.Stream(context.Background(), userRequest("hi"))
	events := collect(t, s)
	result := s.Wait()

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Text != "ok" {
		t.Errorf("expected %q, got %q", "ok", result.Text)
	}
	if result.Retries != 3 {
		t.Errorf("expected 3 retries, got %d", result.Retries)
	}
	if keys := adapter.usedKeys(); !reflect.DeepEqual(keys, []string{"k1", "k2", "k2", "k2"}) {
		t.Errorf("expected rotation to k2 only after the invalid key, got %v", keys)
	}
	if got := len(sleeper.recorded()); got != 2 {
		t.Errorf("expected 2 pauses for the transient and empty attempts, got %d", got)
	}
	if n := terminalCount(events); n != 1 {
		t.Errorf("expected exactly one terminal event, got %d", n)
	}
}

func TestStream_FailureAfterContent(t *testing.T) {
	tests := []struct {
		name      string
		streamErr error
		wantMsg   string
		rotates   bool
	}{
		{
			name:      "connection lost",
			streamErr: errNetwork,
			wantMsg:   "Stream interrupted: connection lost",
		},
		{
			name: "in-band rate limit",
			streamErr: &providers.StreamError{
				Provider: "test",
				Message:  "provider reported an error mid-stream",
				Body:     []byte(`{"code":429,"message":"Rate limit exceeded"}`),
			},
			wantMsg: "Stream interrupted: rate limited",
			rotates: true,
		},
		{
			name:      "idle timeout",
			streamErr: &providers.TransportError{Provider: "test", Timeout: true, Cause: errors.New("idle")},
			wantMsg:   "Stream interrupted: timed out waiting for data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, adapter, _ := newTestEngine(t, []string{"k1", "k2"}, testSettings(),
				step{status: 200, chunks: textChunks("partial ", "output"), streamErr: tt.streamErr},
				step{status: 200, chunks: textChunks("should not be used")},
			)

			s := engine.Stream(context.Background(), userRequest("hi"))
			events := collect(t, s)
			result := s.Wait()

			if adapter.callCount() != 1 {
				t.Errorf("expected no re-issue after partial output, got %d calls", adapter.callCount())
			}
			if result.Text != "partial output" {
				t.Errorf("expected partial text %q, got %q", "partial output", result.Text)
			}
			if n := terminalCount(events); n != 1 {
				t.Fatalf("expected exactly one terminal event, got %d", n)
			}
			last := events[len(events)-1]
			if last.Type != providers.EventError || last.Message != tt.wantMsg {
				t.Errorf("expected error event %q, got %q %q", tt.wantMsg, last.Type, last.Message)
			}

			pool, _ := engine.Pool("test")
			if got := pool.KeyNumber() == 2; got != tt.rotates {
				t.Errorf("expected rotation=%v, got key number %d", tt.rotates, pool.KeyNumber())
			}
		})
	}
}

func TestStream_ThinkingOnlyIsNotSuccess(t *testing.T) {
	engine, adapter, _ := newTestEngine(t, []string{"k1", "k2"}, testSettings(),
		step{status: 200, chunks: []providers.Chunk{{Thinking: "hmm"}}},
		step{status: 200, chunks: textChunks("should not be used")},
	)

	s := engine.Stream(context.Background(), userRequest("hi"))
	events := collect(t, s)
	result := s.Wait()

	if adapter.callCount() != 1 {
		t.Errorf("expected no re-issue after emitted thinking, got %d calls", adapter.callCount())
	}
	if result.Reasoning != "hmm" {
		t.Errorf("expected reasoning %q, got %q", "hmm", result.Reasoning)
	}
	if result.Text != "" {
		t.Errorf("expected no text, got %q", result.Text)
	}

	var de *Error
	if !errors.As(result.Err, &de) {
		t.Fatalf("expected *Error, got %v", result.Err)
	}
	if de.Kind != providers.KindMalformedResponse {
		t.Errorf("expected %s, got %s", providers.KindMalformedResponse, de.Kind)
	}

	if n := terminalCount(events); n != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", n)
	}
	last := events[len(events)-1]
	if last.Type != providers.EventError || last.Message != "Stream interrupted: malformed data from provider" {
		t.Errorf("expected malformed error event, got %q %q", last.Type, last.Message)
	}
}

func TestStream_InvalidKeysBeforeContent(t *testing.T) {
	engine, adapter, _ := newTestEngine(t, []string{"k1", "k2"}, testSettings(),
		step{status: 403, body: `denied`})

	result := engine.Stream(context.Background(), userRequest("hi")).Collect()
	if result.Err == nil || result.Err.Error() != "All API keys are invalid" {
		t.Fatalf("expected %q, got %v", "All API keys are invalid", result.Err)
	}
	if adapter.callCount() != 2 {
		t.Errorf("expected 2 calls, got %d", adapter.callCount())
	}
}

func TestStream_NoKeys(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil, testSettings(), step{status: 200, chunks: textChunks("x")})

	s := engine.Stream(context.Background(), userRequest("hi"))
	events := collect(t, s)
	if len(events) != 1 || events[0].Type != providers.EventError || events[0].Message != "no API key available" {
		t.Errorf("expected a single %q error event, got %+v", "no API key available", events)
	}
}

func TestStream_PanicBecomesErrorEvent(t *testing.T) {
	engine, _, _ := newTestEngine(t, []string{"k1"}, testSettings(), step{panicMsg: "adapter bug"})

	s := engine.Stream(context.Background(), userRequest("hi"))
	events := collect(t, s)
	result := s.Wait()

	if n := terminalCount(events); n != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", n)
	}
	if !strings.Contains(events[0].Message, "adapter bug") {
		t.Errorf("expected panic message in error event, got %q", events[0].Message)
	}
	if result.Err == nil {
		t.Error("expected result error")
	}
}

func TestStream_CancelledContext(t *testing.T) {
	engine, adapter, _ := newTestEngine(t, []string{"k1"}, testSettings(),
		step{status: 200, chunks: textChunks("x")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := engine.Stream(ctx, userRequest("hi"))
	events := collect(t, s)

	if adapter.callCount() != 0 {
		t.Errorf("expected no calls, got %d", adapter.callCount())
	}
	if len(events) != 1 || events[0].Message != "request cancelled" {
		t.Errorf("expected a single cancellation event, got %+v", events)
	}
	if !IsCancelled(s.Wait().Err) {
		t.Errorf("expected cancelled result, got %v", s.Wait().Err)
	}
}

func TestStream_CloseReleasesGoroutine(t *testing.T) {
	engine, _, _ := newTestEngine(t, []string{"k1"}, testSettings(),
		step{status: 200, chunks: textChunks("a", "b", "c", "d")})

	s := engine.Stream(context.Background(), userRequest("hi"))
	<-s.Events()
	s.Close()
	s.Close()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream goroutine did not exit after Close")
	}
}
