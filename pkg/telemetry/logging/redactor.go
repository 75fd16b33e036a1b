package logging

import (
	"regexp"
	"strings"
)

// Redactor masks credentials in log fields.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Credential pattern names.
const (
	PatternOpenAIKey   = "openai_key"
	PatternGoogleKey   = "google_key"
	PatternBearerToken = "bearer_token"
	PatternQueryKey    = "query_key"
)

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}

	// Order matters: bearer tokens are matched before the bare key patterns
	// so that the "Bearer" prefix survives.
	r.add(PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***")
	// OpenAI, OpenRouter (sk-or-v1-...), Anthropic style keys
	r.add(PatternOpenAIKey, `sk-[a-zA-Z0-9_\-]{6,}`, "sk-***")
	// Google API keys
	r.add(PatternGoogleKey, `AIza[0-9A-Za-z_\-]{20,}`, "AIza***")
	// Keys passed as query parameters
	r.add(PatternQueryKey, `([?&](?:key|api_key)=)[^&\s]+`, "${1}***")

	return r
}

func (r *Redactor) add(name, expr, replacement string) {
	r.patterns = append(r.patterns, &redactPattern{
		name:        name,
		regex:       regexp.MustCompile(expr),
		replacement: replacement,
	})
}

// RedactString masks every credential found in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := []string{
		"password", "secret", "token",
		"api_key", "apikey", "api-key",
		"authorization", "x-goog-api-key",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return lowerKey == "key"
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}

	// Keep first 4 and last 2 characters for identification
	return apiKey[:4] + "***" + apiKey[len(apiKey)-2:]
}
