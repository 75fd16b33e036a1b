package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"mercator-hq/switchboard/pkg/providers"
)

// maxAttachmentSize bounds one --image or --file attachment.
const maxAttachmentSize = 20 << 20

// readPrompt joins args, or reads in when there are none.
func readPrompt(args []string, in io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && in != nil {
		data, err := io.ReadAll(io.LimitReader(in, maxAttachmentSize))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", fmt.Errorf("no prompt given")
	}
	return prompt, nil
}

// buildMessages returns the conversation for a one-shot prompt. Images are
// attached as data URLs; text files are inlined as text parts and other
// files as base64 binary parts.
func buildMessages(system, prompt string, images, files []string) ([]providers.Message, error) {
	var msgs []providers.Message
	if system != "" {
		msgs = append(msgs, providers.NewTextMessage(providers.RoleSystem, system))
	}

	if len(images) == 0 && len(files) == 0 {
		return append(msgs, providers.NewTextMessage(providers.RoleUser, prompt)), nil
	}

	parts := []providers.ContentPart{providers.TextPart(prompt)}
	for _, path := range images {
		data, mimeType, err := readAttachment(path)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
		}
		parts = append(parts, providers.ImageRefPart(dataURL(mimeType, data)))
	}
	for _, path := range files {
		data, mimeType, err := readAttachment(path)
		if err != nil {
			return nil, err
		}
		if isText(mimeType, data) {
			parts = append(parts, providers.TextPart(fmt.Sprintf("File: %s\n\n%s", filepath.Base(path), data)))
			continue
		}
		parts = append(parts, providers.InlineBinaryPart(mimeType, base64.StdEncoding.EncodeToString(data)))
	}

	return append(msgs, providers.NewPartsMessage(providers.RoleUser, parts...)), nil
}

func readAttachment(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read attachment: %w", err)
	}
	if info.Size() > maxAttachmentSize {
		return nil, "", fmt.Errorf("attachment %s is larger than %d MiB", path, maxAttachmentSize>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, detectMIME(path, data), nil
}

// detectMIME prefers the file extension and falls back to content sniffing.
func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func isText(mimeType string, data []byte) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/yaml", "application/x-yaml", "application/toml":
		return true
	}
	return mimeType == "application/octet-stream" && utf8.Valid(data)
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// generationParams maps the common flags to each wire format's names.
func generationParams(providerType string, temperature float64, setTemperature bool, maxTokens int) providers.Params {
	params := providers.Params{}
	if setTemperature {
		params["temperature"] = temperature
	}
	if maxTokens > 0 {
		if providerType == providers.TypeGemini {
			params["maxOutputTokens"] = maxTokens
		} else {
			params["max_tokens"] = maxTokens
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
