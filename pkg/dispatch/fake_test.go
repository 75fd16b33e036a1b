package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
)

// step scripts one adapter exchange.
type step struct {
	status int
	body   string
	err    error

	// chunks and streamErr script a stream opened with status 2xx
	chunks    []providers.Chunk
	streamErr error
	panicMsg  string
}

// fakeAdapter replays scripted steps and records the key of every call.
type fakeAdapter struct {
	name string

	mu    sync.Mutex
	steps []step
	keys  []string
	calls int
	stats providers.ClientStats
}

func (f *fakeAdapter) next(call *providers.Call) step {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys = append(f.keys, call.Key)
	f.calls++
	if len(f.steps) == 0 {
		return step{status: 500, body: `{"error":"script exhausted"}`}
	}
	s := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return s
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Type() string { return providers.TypeOpenAI }

func (f *fakeAdapter) Send(ctx context.Context, call *providers.Call) (*providers.RawResponse, error) {
	s := f.next(call)
	if s.err != nil {
		return nil, s.err
	}
	return &providers.RawResponse{StatusCode: s.status, Body: []byte(s.body)}, nil
}

func (f *fakeAdapter) ExtractText(raw *providers.RawResponse) (string, bool) {
	r, ok := f.ExtractResult(raw)
	if !ok {
		return "", false
	}
	return r.Text, r.Text != ""
}

func (f *fakeAdapter) ExtractResult(raw *providers.RawResponse) (*providers.Result, bool) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw.Body, &body); err != nil || body.Text == "" {
		return nil, false
	}
	return &providers.Result{Text: body.Text}, true
}

func (f *fakeAdapter) OpenStream(ctx context.Context, call *providers.Call) (providers.StreamReader, error) {
	s := f.next(call)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.status >= 300 {
		return nil, &providers.HTTPError{Provider: f.name, StatusCode: s.status, Body: []byte(s.body)}
	}
	return &fakeReader{chunks: s.chunks, err: s.streamErr}, nil
}

func (f *fakeAdapter) Stats() providers.ClientStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) usedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeReader struct {
	chunks []providers.Chunk
	err    error
	pos    int
}

func (r *fakeReader) Read(ctx context.Context) (*providers.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos < len(r.chunks) {
		c := r.chunks[r.pos]
		r.pos++
		return &c, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return nil, io.EOF
}

func (r *fakeReader) Close() error { return nil }

// recordingSleeper records every pause without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

// newTestEngine builds an engine with one fake provider named "test".
func newTestEngine(t *testing.T, keys []string, settings Settings, steps ...step) (*Engine, *fakeAdapter, *recordingSleeper) {
	t.Helper()

	adapter := &fakeAdapter{name: "test", steps: steps}
	sleeper := &recordingSleeper{}

	engine, err := NewEngine(Config{
		Settings: settings,
		Providers: []ProviderSpec{{
			Config:       providers.ProviderConfig{Name: "test", Type: providers.TypeOpenAI},
			Keys:         keys,
			DefaultModel: "test-model",
		}},
	},
		WithLogger(logging.Discard()),
		WithSleeper(sleeper.sleep),
		WithAdapterFactory(func(providers.ProviderConfig) (providers.Adapter, error) {
			return adapter, nil
		}),
	)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine, adapter, sleeper
}

func testSettings() Settings {
	return Settings{MaxRetries: 3, RetryDelay: time.Second, RequestTimeout: time.Second}
}

func userRequest(text string) Request {
	return Request{
		Provider: "test",
		Messages: []providers.Message{providers.NewTextMessage(providers.RoleUser, text)},
	}
}

var errNetwork = &providers.TransportError{Provider: "test", Cause: errors.New("connection refused")}

func okStep(text string) step {
	return step{status: 200, body: `{"text":"` + text + `"}`}
}
