package openai

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/switchboard/pkg/providers"
)

// DefaultBaseURL is the OpenRouter API endpoint used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Provider is the OpenAI-compatible chat completions adapter.
// It serves OpenRouter and any custom endpoint that speaks the same format
// (Ollama, LM Studio, vLLM, a self-hosted gateway).
type Provider struct {
	*providers.HTTPClient
}

// NewProvider creates a new OpenAI-compatible adapter.
// A custom provider must configure its base URL; an openai provider
// defaults to OpenRouter.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("openai adapter: provider name is required")
	}
	if config.Type == "" {
		config.Type = providers.TypeOpenAI
	}
	if config.BaseURL == "" {
		if config.Type == providers.TypeCustom {
			return nil, fmt.Errorf("provider %q: base URL is required for custom providers", config.Name)
		}
		config.BaseURL = DefaultBaseURL
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Debug("OpenAI-compatible provider initialized",
		"provider", config.Name,
		"type", config.Type,
		"base_url", config.BaseURL,
	)
	return p, nil
}

func (p *Provider) headers(key string) map[string]string {
	h := make(map[string]string, 1)
	if key != "" {
		h["Authorization"] = "Bearer " + key
	}
	return h
}

// Send posts a chat completion and returns the raw response.
func (p *Provider) Send(ctx context.Context, call *providers.Call) (*providers.RawResponse, error) {
	body, err := buildRequest(p.Name(), call, false)
	if err != nil {
		return nil, err
	}
	return p.PostJSON(ctx, p.URL("/chat/completions"), body, p.headers(call.Key), call.Timeout)
}

// ExtractText returns choices[0].message.content.
func (p *Provider) ExtractText(raw *providers.RawResponse) (string, bool) {
	if raw == nil {
		return "", false
	}
	resp, ok := parseResponse(raw.Body)
	if !ok {
		return "", false
	}
	text := contentText(resp.Choices[0].Message.Content)
	return text, text != ""
}

// ExtractResult returns the first choice's text, reasoning and tool calls
// together with reported usage.
func (p *Provider) ExtractResult(raw *providers.RawResponse) (*providers.Result, bool) {
	if raw == nil {
		return nil, false
	}
	resp, ok := parseResponse(raw.Body)
	if !ok {
		return nil, false
	}
	result := transformResponse(resp)
	if result.Text == "" && len(result.ToolCalls) == 0 {
		return nil, false
	}
	return result, true
}

// OpenStream posts a streaming chat completion.
func (p *Provider) OpenStream(ctx context.Context, call *providers.Call) (providers.StreamReader, error) {
	streamCall := *call
	streamCall.Stream = true

	body, err := buildRequest(p.Name(), &streamCall, p.Config().IncludeStreamUsage)
	if err != nil {
		return nil, err
	}

	rc, err := p.OpenSSE(ctx, p.URL("/chat/completions"), body, p.headers(call.Key), call.Timeout)
	if err != nil {
		return nil, err
	}
	return newStreamReader(p.Name(), rc), nil
}

var _ providers.Adapter = (*Provider)(nil)
