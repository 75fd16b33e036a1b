package gemini

import (
	"encoding/json"
	"errors"
	"testing"

	"mercator-hq/switchboard/pkg/providers"
)

func decodeRequest(t *testing.T, call *providers.Call) GeminiRequest {
	t.Helper()
	data, err := buildRequest("google", call)
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	var req GeminiRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("invalid request json: %v", err)
	}
	return req
}

func TestBuildRequest_Roles(t *testing.T) {
	req := decodeRequest(t, &providers.Call{
		Model: "gemini-2.0-flash",
		Messages: []providers.Message{
			providers.NewTextMessage(providers.RoleSystem, "be brief"),
			providers.NewTextMessage(providers.RoleUser, "hi"),
			providers.NewTextMessage(providers.RoleAssistant, "hello"),
		},
	})

	want := []string{"model", "user", "model"}
	if len(req.Contents) != len(want) {
		t.Fatalf("expected %d contents, got %d", len(want), len(req.Contents))
	}
	for i, role := range want {
		if req.Contents[i].Role != role {
			t.Errorf("content %d: expected role %q, got %q", i, role, req.Contents[i].Role)
		}
	}
	if req.GenerationConfig != nil {
		t.Errorf("expected no generationConfig, got %v", req.GenerationConfig)
	}
}

func TestBuildRequest_ImageTranslation(t *testing.T) {
	req := decodeRequest(t, &providers.Call{
		Model: "gemini-2.0-flash",
		Messages: []providers.Message{
			providers.NewPartsMessage(providers.RoleUser,
				providers.TextPart("describe"),
				providers.ImageRefPart("data:image/png;base64,iVBORw0KGgo="),
				providers.ImageRefPart("https://example.com/cat.webp?size=large"),
				providers.InlineBinaryPart("application/pdf", "JVBERi0="),
				providers.FileRefPart("gs://bucket/clip.mp4", "video/mp4"),
			),
		},
	})

	parts := req.Contents[0].Parts
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	if parts[0].Text != "describe" {
		t.Errorf("expected text part first, got %+v", parts[0])
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" || parts[1].InlineData.Data != "iVBORw0KGgo=" {
		t.Errorf("expected data URL split into inline_data, got %+v", parts[1].InlineData)
	}
	if parts[2].FileData == nil || parts[2].FileData.MIMEType != "image/webp" || parts[2].FileData.FileURI != "https://example.com/cat.webp?size=large" {
		t.Errorf("expected remote image as file_data, got %+v", parts[2].FileData)
	}
	if parts[3].InlineData == nil || parts[3].InlineData.MIMEType != "application/pdf" {
		t.Errorf("expected pdf inline_data, got %+v", parts[3].InlineData)
	}
	if parts[4].FileData == nil || parts[4].FileData.FileURI != "gs://bucket/clip.mp4" {
		t.Errorf("expected file reference, got %+v", parts[4].FileData)
	}

	data, _ := buildRequest("google", &providers.Call{Messages: []providers.Message{
		providers.NewPartsMessage(providers.RoleUser, providers.ImageRefPart("data:image/jpeg;base64,/9j/")),
	}})
	var raw map[string]any
	json.Unmarshal(data, &raw)
	part := raw["contents"].([]any)[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
	inline, ok := part["inline_data"].(map[string]any)
	if !ok || inline["mime_type"] != "image/jpeg" {
		t.Errorf("expected snake_case inline_data on the wire, got %v", part)
	}
}

func TestBuildRequest_GenerationConfig(t *testing.T) {
	req := decodeRequest(t, &providers.Call{
		Messages: []providers.Message{providers.NewTextMessage(providers.RoleUser, "hi")},
		Params:   providers.Params{"temperature": 0.2, "maxOutputTokens": 64},
		Thinking: true,
	})

	gc := req.GenerationConfig
	if gc["temperature"] != 0.2 || gc["maxOutputTokens"] != float64(64) {
		t.Errorf("expected params in generationConfig, got %v", gc)
	}
	tc, ok := gc["thinkingConfig"].(map[string]any)
	if !ok || tc["includeThoughts"] != true {
		t.Errorf("expected thinkingConfig.includeThoughts, got %v", gc["thinkingConfig"])
	}
}

func TestBuildRequest_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		part providers.ContentPart
	}{
		{"malformed data URL", providers.ImageRefPart("data:image/png,notbase64")},
		{"local path", providers.ImageRefPart("/tmp/cat.png")},
		{"inline without mime", providers.InlineBinaryPart("", "AAAA")},
		{"empty file ref", providers.FileRefPart("", "video/mp4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildRequest("google", &providers.Call{
				Messages: []providers.Message{providers.NewPartsMessage(providers.RoleUser, tt.part)},
			})
			var berr *providers.BuildError
			if !errors.As(err, &berr) {
				t.Errorf("expected BuildError, got %v", err)
			}
		})
	}
}

func TestTransformResponse(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"text": "Considering the question", "thought": true},
				{"text": "The answer "},
				{"text": "is 4."},
				{"functionCall": {"name": "calc", "args": {"expr":"2+2"}}}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 12, "thoughtsTokenCount": 5}
	}`

	resp, ok := parseResponse([]byte(body))
	if !ok {
		t.Fatal("expected response to parse")
	}
	result := transformResponse(resp)

	if result.Text != "The answer is 4." {
		t.Errorf("expected %q, got %q", "The answer is 4.", result.Text)
	}
	if result.Reasoning != "Considering the question" {
		t.Errorf("expected thought text as reasoning, got %q", result.Reasoning)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].ID != "call_0" || result.ToolCalls[0].Function.Arguments != `{"expr":"2+2"}` {
		t.Errorf("unexpected tool calls: %+v", result.ToolCalls)
	}
	if result.Usage.CompletionTokens != 17 || result.Usage.TotalTokens != 25 {
		t.Errorf("expected thoughts counted as completion, got %+v", result.Usage)
	}
}
