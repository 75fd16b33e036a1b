package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"mercator-hq/switchboard/pkg/providers"
)

// DefaultBaseURL is the Gemini API endpoint used when none is configured.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider is the Gemini generateContent adapter.
type Provider struct {
	*providers.HTTPClient
}

// NewProvider creates a new Gemini adapter.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("gemini adapter: provider name is required")
	}
	config.Type = providers.TypeGemini
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Debug("Gemini provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

func (p *Provider) endpoint(model, method string) string {
	return p.URL("/models/" + url.PathEscape(model) + ":" + method)
}

func headers(key string) map[string]string {
	return map[string]string{"x-goog-api-key": key}
}

// Send posts generateContent and returns the raw response.
func (p *Provider) Send(ctx context.Context, call *providers.Call) (*providers.RawResponse, error) {
	body, err := buildRequest(p.Name(), call)
	if err != nil {
		return nil, err
	}
	return p.PostJSON(ctx, p.endpoint(call.Model, "generateContent"), body, headers(call.Key), call.Timeout)
}

// ExtractText returns the answer text of the first candidate.
// Thought parts are excluded.
func (p *Provider) ExtractText(raw *providers.RawResponse) (string, bool) {
	if raw == nil {
		return "", false
	}
	resp, ok := parseResponse(raw.Body)
	if !ok {
		return "", false
	}
	text, _, _ := transformParts(resp.Candidates[0].Content.Parts, 0)
	return text, text != ""
}

// ExtractResult returns answer text, thoughts, function calls and usage.
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

// OpenStream posts streamGenerateContent with SSE framing.
func (p *Provider) OpenStream(ctx context.Context, call *providers.Call) (providers.StreamReader, error) {
	body, err := buildRequest(p.Name(), call)
	if err != nil {
		return nil, err
	}

	rc, err := p.OpenSSE(ctx, p.endpoint(call.Model, "streamGenerateContent")+"?alt=sse", body, headers(call.Key), call.Timeout)
	if err != nil {
		return nil, err
	}
	return newStreamReader(p.Name(), rc), nil
}

var _ providers.Adapter = (*Provider)(nil)
