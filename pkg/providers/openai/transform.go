package openai

import (
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"strings"

	"mercator-hq/switchboard/pkg/providers"
)

// OpenAI API request/response types

// OpenAIMessage represents a message in OpenAI format.
// Content is either a string or a list of content parts.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// OpenAIContentPart is one element of a multimodal message.
type OpenAIContentPart struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	ImageURL   *OpenAIImageURL   `json:"image_url,omitempty"`
	InputAudio *OpenAIInputAudio `json:"input_audio,omitempty"`
	File       *OpenAIFile       `json:"file,omitempty"`
}

// OpenAIImageURL carries an http(s) or data URL.
type OpenAIImageURL struct {
	URL string `json:"url"`
}

// OpenAIInputAudio carries base64 audio data.
type OpenAIInputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// OpenAIFile carries a document as a data URL or a remote URL.
type OpenAIFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// OpenAIToolCall represents a tool call in OpenAI format.
type OpenAIToolCall struct {
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall represents a function call in OpenAI format.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIResponse represents an OpenAI chat completion response.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   *OpenAIUsage   `json:"usage,omitempty"`
}

// OpenAIChoice represents a completion choice in OpenAI format.
type OpenAIChoice struct {
	Index        int                   `json:"index"`
	Message      OpenAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// OpenAIResponseMessage is the assistant message of a choice.
// Content is usually a string but some compatible servers return parts.
type OpenAIResponseMessage struct {
	Role             string           `json:"role"`
	Content          json.RawMessage  `json:"content"`
	Reasoning        string           `json:"reasoning,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIUsage represents token usage in OpenAI format.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAI streaming response types

// OpenAIStreamResponse represents a chunk in OpenAI's SSE stream.
type OpenAIStreamResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
	Usage   *OpenAIUsage         `json:"usage,omitempty"`
	Error   json.RawMessage      `json:"error,omitempty"`
}

// OpenAIStreamChoice represents a choice in a stream chunk.
type OpenAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        OpenAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

// OpenAIStreamDelta represents the incremental content in a stream chunk.
type OpenAIStreamDelta struct {
	Role             string           `json:"role,omitempty"`
	Content          string           `json:"content,omitempty"`
	Reasoning        string           `json:"reasoning,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// Transformation functions

// buildRequest produces the JSON body for a chat completion.
// Caller params are merged first so that model, messages and stream always win.
func buildRequest(providerName string, call *providers.Call, includeStreamUsage bool) ([]byte, error) {
	messages, err := transformMessages(providerName, call.Messages)
	if err != nil {
		return nil, err
	}

	body := make(map[string]any, len(call.Params)+4)
	for k, v := range call.Params {
		body[k] = v
	}
	body["model"] = call.Model
	body["messages"] = messages
	body["stream"] = call.Stream

	if call.Thinking {
		if _, set := body["reasoning"]; !set {
			body["reasoning"] = map[string]any{"enabled": true}
		}
	}
	if call.Stream && includeStreamUsage {
		if _, set := body["stream_options"]; !set {
			body["stream_options"] = map[string]any{"include_usage": true}
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &providers.BuildError{Provider: providerName, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}
	return data, nil
}

// transformMessages converts canonical messages to OpenAI format.
func transformMessages(providerName string, msgs []providers.Message) ([]OpenAIMessage, error) {
	out := make([]OpenAIMessage, len(msgs))
	for i, msg := range msgs {
		if !msg.HasParts() {
			out[i] = OpenAIMessage{Role: msg.Role, Content: msg.Content}
			continue
		}

		parts := make([]OpenAIContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			part, err := transformPart(p)
			if err != nil {
				return nil, &providers.BuildError{
					Provider: providerName,
					Message:  fmt.Sprintf("message %d: %v", i, err),
				}
			}
			parts = append(parts, part)
		}
		out[i] = OpenAIMessage{Role: msg.Role, Content: parts}
	}
	return out, nil
}

func transformPart(p providers.ContentPart) (OpenAIContentPart, error) {
	switch p.Type {
	case providers.PartText:
		return OpenAIContentPart{Type: "text", Text: p.Text}, nil

	case providers.PartImageRef:
		if p.URL == "" {
			return OpenAIContentPart{}, fmt.Errorf("image reference has no URL")
		}
		return OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: p.URL}}, nil

	case providers.PartInlineBinary:
		return transformInline(p.MIMEType, p.Data)

	case providers.PartFileRef:
		if !strings.HasPrefix(p.URI, "http://") && !strings.HasPrefix(p.URI, "https://") {
			return OpenAIContentPart{}, fmt.Errorf("unsupported file reference %q", p.URI)
		}
		if strings.HasPrefix(p.MIMEType, "image/") {
			return OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: p.URI}}, nil
		}
		return OpenAIContentPart{
			Type: "file",
			File: &OpenAIFile{Filename: path.Base(p.URI), FileData: p.URI},
		}, nil

	default:
		return OpenAIContentPart{}, fmt.Errorf("unsupported content part type %q", p.Type)
	}
}

// transformInline maps base64 data to the part type matching its MIME type.
func transformInline(mimeType, data string) (OpenAIContentPart, error) {
	if data == "" {
		return OpenAIContentPart{}, fmt.Errorf("inline %s part has no data", mimeType)
	}
	dataURL := "data:" + mimeType + ";base64," + data

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: dataURL}}, nil

	case strings.HasPrefix(mimeType, "audio/"):
		format := audioFormat(mimeType)
		if format == "" {
			return OpenAIContentPart{}, fmt.Errorf("unsupported audio format %q", mimeType)
		}
		return OpenAIContentPart{Type: "input_audio", InputAudio: &OpenAIInputAudio{Data: data, Format: format}}, nil

	case mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/"):
		return OpenAIContentPart{
			Type: "file",
			File: &OpenAIFile{Filename: "attachment" + extensionFor(mimeType), FileData: dataURL},
		}, nil

	default:
		return OpenAIContentPart{}, fmt.Errorf("unsupported inline MIME type %q", mimeType)
	}
}

func audioFormat(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	default:
		return ""
	}
}

func extensionFor(mimeType string) string {
	if mimeType == "application/pdf" {
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// parseResponse decodes a chat completion body.
func parseResponse(body []byte) (*OpenAIResponse, bool) {
	var resp OpenAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false
	}
	if len(resp.Choices) == 0 {
		return nil, false
	}
	return &resp, true
}

// contentText decodes message content that may be a string, null,
// or a list of {type:"text", text} parts.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// transformResponse transforms an OpenAI response to the canonical result.
func transformResponse(resp *OpenAIResponse) *providers.Result {
	// Use the first choice
	msg := resp.Choices[0].Message

	result := &providers.Result{
		Text:      contentText(msg.Content),
		Reasoning: msg.Reasoning,
		ToolCalls: transformToolCalls(msg.ToolCalls),
		Usage:     transformUsage(resp.Usage),
	}
	if result.Reasoning == "" {
		result.Reasoning = msg.ReasoningContent
	}
	return result
}

func transformToolCalls(calls []OpenAIToolCall) []providers.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]providers.ToolCall, len(calls))
	for i, tc := range calls {
		typ := tc.Type
		if typ == "" {
			typ = providers.ToolTypeFunction
		}
		out[i] = providers.ToolCall{
			ID:   tc.ID,
			Type: typ,
			Function: providers.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func transformUsage(u *OpenAIUsage) *providers.TokenUsage {
	if u == nil {
		return nil
	}
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	return &providers.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      total,
	}
}
