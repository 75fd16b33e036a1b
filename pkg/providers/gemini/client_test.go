package gemini

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	testhelpers "mercator-hq/switchboard/internal/providers"
	"mercator-hq/switchboard/pkg/providers"
)

func newTestProvider(t *testing.T, mock *testhelpers.MockServer) *Provider {
	t.Helper()
	provider, err := NewProvider(testhelpers.TestConfigWithURL("google", "", mock.URL()+"/v1beta"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(providers.ProviderConfig{Name: "google"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Close()

	if p.Type() != providers.TypeGemini || p.Config().BaseURL != DefaultBaseURL {
		t.Errorf("unexpected defaults: type %q, url %q", p.Type(), p.Config().BaseURL)
	}
	if _, err := NewProvider(providers.ProviderConfig{}); err == nil {
		t.Error("expected error without a name")
	}
}

func TestProvider_Send(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1beta/models/gemini-2.0-flash:generateContent", testhelpers.MockResponse{
		Body: testhelpers.MockGeminiResponse("Paris"),
	})

	provider := newTestProvider(t, mock)

	raw, err := provider.Send(context.Background(), testhelpers.TestCall("AIzaTestKey", "gemini-2.0-flash", "Capital of France?"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	text, ok := provider.ExtractText(raw)
	if !ok || text != "Paris" {
		t.Errorf("expected %q, got %q (ok=%v)", "Paris", text, ok)
	}
	result, ok := provider.ExtractResult(raw)
	if !ok || result.Usage == nil || result.Usage.TotalTokens != 20 {
		t.Errorf("expected usage total 20, got %+v", result)
	}

	req := mock.Requests()[0]
	if err := testhelpers.ExpectHeader(req, "x-goog-api-key", "AIzaTestKey"); err != nil {
		t.Error(err)
	}
	if strings.Contains(req.Query, "key=") {
		t.Error("expected the key to travel in a header, not the query string")
	}
}

func TestProvider_ExtractText(t *testing.T) {
	provider, _ := NewProvider(providers.ProviderConfig{Name: "google"})
	defer provider.Close()

	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"text", `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`, "ab", true},
		{"thought only", `{"candidates":[{"content":{"parts":[{"text":"hmm","thought":true}]}}]}`, "", false},
		{"blocked", `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`, "", false},
		{"no parts", `{"candidates":[{"finishReason":"MAX_TOKENS"}]}`, "", false},
		{"not json", `oops`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := provider.ExtractText(&providers.RawResponse{StatusCode: 200, Body: []byte(tt.body)})
			if got != tt.want || ok != tt.ok {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestProvider_OpenStream(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1beta/models/gemini-2.0-flash:streamGenerateContent", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockGeminiStreamChunk("thinking it over", true),
			testhelpers.MockGeminiStreamChunk("Hello", false),
			testhelpers.MockGeminiStreamChunk(" there", false),
			`{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}}`,
		},
		OmitDone: true,
	})

	provider := newTestProvider(t, mock)

	call := testhelpers.TestStreamingCall("AIzaTestKey", "gemini-2.0-flash", "hi")
	call.Thinking = true
	stream, err := provider.OpenStream(context.Background(), call)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var text, thinking strings.Builder
	var usage *providers.TokenUsage
	for {
		chunk, err := stream.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		text.WriteString(chunk.Text)
		thinking.WriteString(chunk.Thinking)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if text.String() != "Hello there" {
		t.Errorf("expected %q, got %q", "Hello there", text.String())
	}
	if thinking.String() != "thinking it over" {
		t.Errorf("expected thought text, got %q", thinking.String())
	}
	if usage == nil || usage.TotalTokens != 5 {
		t.Errorf("expected final usage of 5 tokens, got %+v", usage)
	}

	req := mock.Requests()[0]
	if req.Query != "alt=sse" {
		t.Errorf("expected alt=sse query, got %q", req.Query)
	}
}

func TestProvider_OpenStream_InBandError(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1beta/models/gemini-2.0-flash:streamGenerateContent", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockGeminiStreamChunk("partial", false),
			`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
		},
		OmitDone: true,
	})

	provider := newTestProvider(t, mock)
	stream, err := provider.OpenStream(context.Background(), testhelpers.TestStreamingCall("k", "gemini-2.0-flash", "hi"))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	if chunk, err := stream.Read(context.Background()); err != nil || chunk.Text != "partial" {
		t.Fatalf("expected partial chunk, got %+v (%v)", chunk, err)
	}
	_, err = stream.Read(context.Background())
	if kind := providers.ClassifyError(err); kind != providers.KindRateLimited {
		t.Errorf("expected rate limited, got %s (%v)", kind, err)
	}
}
