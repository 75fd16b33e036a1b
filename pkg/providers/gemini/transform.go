package gemini

import (
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strconv"
	"strings"

	"mercator-hq/switchboard/pkg/providers"
)

// Gemini API request/response types

// GeminiRequest represents a generateContent request.
type GeminiRequest struct {
	Contents         []GeminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

// GeminiContent is one turn of the conversation.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single part of a turn. Exactly one field is set.
type GeminiPart struct {
	Text         string              `json:"text,omitempty"`
	Thought      bool                `json:"thought,omitempty"`
	InlineData   *GeminiInlineData   `json:"inline_data,omitempty"`
	FileData     *GeminiFileData     `json:"file_data,omitempty"`
	FunctionCall *GeminiFunctionCall `json:"functionCall,omitempty"`
}

// GeminiInlineData carries base64 encoded bytes.
type GeminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GeminiFileData references a file by URI.
type GeminiFileData struct {
	MIMEType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

// GeminiFunctionCall is a tool call requested by the model.
type GeminiFunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// GeminiResponse represents a generateContent response or one stream event.
type GeminiResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         json.RawMessage      `json:"error,omitempty"`
}

// GeminiCandidate is one generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiUsageMetadata represents token usage in Gemini format.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// dataURLPattern matches data:<mime>;base64,<data>.
var dataURLPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.+)$`)

// Transformation functions

// buildRequest produces the JSON body for generateContent.
func buildRequest(providerName string, call *providers.Call) ([]byte, error) {
	req := GeminiRequest{
		Contents: make([]GeminiContent, 0, len(call.Messages)),
	}

	for i, msg := range call.Messages {
		content, err := transformMessage(msg)
		if err != nil {
			return nil, &providers.BuildError{
				Provider: providerName,
				Message:  fmt.Sprintf("message %d: %v", i, err),
			}
		}
		req.Contents = append(req.Contents, content)
	}

	if len(call.Params) > 0 || call.Thinking {
		req.GenerationConfig = make(map[string]any, len(call.Params)+1)
		for k, v := range call.Params {
			req.GenerationConfig[k] = v
		}
		if call.Thinking {
			if _, set := req.GenerationConfig["thinkingConfig"]; !set {
				req.GenerationConfig["thinkingConfig"] = map[string]any{"includeThoughts": true}
			}
		}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, &providers.BuildError{Provider: providerName, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}
	return data, nil
}

// transformMessage converts a canonical message to a Gemini turn.
// Gemini only knows "user" and "model"; every other role is sent as model.
func transformMessage(msg providers.Message) (GeminiContent, error) {
	role := "model"
	if msg.Role == providers.RoleUser {
		role = "user"
	}

	if !msg.HasParts() {
		return GeminiContent{Role: role, Parts: []GeminiPart{{Text: msg.Content}}}, nil
	}

	parts := make([]GeminiPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		part, err := transformPart(p)
		if err != nil {
			return GeminiContent{}, err
		}
		parts = append(parts, part)
	}
	return GeminiContent{Role: role, Parts: parts}, nil
}

func transformPart(p providers.ContentPart) (GeminiPart, error) {
	switch p.Type {
	case providers.PartText:
		return GeminiPart{Text: p.Text}, nil

	case providers.PartImageRef:
		return transformImageRef(p.URL)

	case providers.PartInlineBinary:
		if p.MIMEType == "" || p.Data == "" {
			return GeminiPart{}, fmt.Errorf("inline part requires a MIME type and data")
		}
		return GeminiPart{InlineData: &GeminiInlineData{MIMEType: p.MIMEType, Data: p.Data}}, nil

	case providers.PartFileRef:
		if p.URI == "" {
			return GeminiPart{}, fmt.Errorf("file reference has no URI")
		}
		return GeminiPart{FileData: &GeminiFileData{MIMEType: p.MIMEType, FileURI: p.URI}}, nil

	default:
		return GeminiPart{}, fmt.Errorf("unsupported content part type %q", p.Type)
	}
}

// transformImageRef splits a data URL into inline_data, or references a
// remote image through file_data.
func transformImageRef(url string) (GeminiPart, error) {
	if strings.HasPrefix(url, "data:") {
		m := dataURLPattern.FindStringSubmatch(url)
		if m == nil {
			return GeminiPart{}, fmt.Errorf("malformed image data URL")
		}
		return GeminiPart{InlineData: &GeminiInlineData{MIMEType: m[1], Data: m[2]}}, nil
	}

	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "gs://") {
		mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(stripQuery(url))))
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/jpeg"
		}
		return GeminiPart{FileData: &GeminiFileData{MIMEType: mimeType, FileURI: url}}, nil
	}

	return GeminiPart{}, fmt.Errorf("unsupported image reference %q", providers.Truncate(url, 40))
}

func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// parseResponse decodes a response body.
func parseResponse(body []byte) (*GeminiResponse, bool) {
	var resp GeminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false
	}
	if len(resp.Candidates) == 0 {
		return nil, false
	}
	return &resp, true
}

// transformParts splits candidate parts into answer text, thought text and
// tool calls. base offsets generated tool call IDs.
func transformParts(parts []GeminiPart, base int) (text, thinking string, calls []providers.ToolCall) {
	var textSB, thoughtSB strings.Builder
	for _, part := range parts {
		switch {
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + strconv.Itoa(base+len(calls))
			}
			args := string(part.FunctionCall.Args)
			if args == "" {
				args = "{}"
			}
			calls = append(calls, providers.ToolCall{
				ID:   id,
				Type: providers.ToolTypeFunction,
				Function: providers.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			})
		case part.Thought:
			thoughtSB.WriteString(part.Text)
		default:
			textSB.WriteString(part.Text)
		}
	}
	return textSB.String(), thoughtSB.String(), calls
}

// transformResponse transforms the first candidate to the canonical result.
func transformResponse(resp *GeminiResponse) *providers.Result {
	text, thinking, calls := transformParts(resp.Candidates[0].Content.Parts, 0)
	return &providers.Result{
		Text:      text,
		Reasoning: thinking,
		ToolCalls: calls,
		Usage:     transformUsage(resp.UsageMetadata),
	}
}

func transformUsage(u *GeminiUsageMetadata) *providers.TokenUsage {
	if u == nil {
		return nil
	}
	completion := u.CandidatesTokenCount + u.ThoughtsTokenCount
	total := u.TotalTokenCount
	if total == 0 {
		total = u.PromptTokenCount + completion
	}
	return &providers.TokenUsage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
