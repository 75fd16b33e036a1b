package tokens

import (
	"sort"
	"strings"
	"sync"

	"mercator-hq/switchboard/pkg/providers"
)

// SimpleEstimator implements character-based token estimation.
// It uses model-specific characters-per-token ratios to estimate token counts.
type SimpleEstimator struct {
	config Config

	// prefixes holds configured model keys, longest first
	prefixes []string

	// mu protects the estimator for concurrent access
	mu sync.RWMutex
}

// NewSimpleEstimator creates a new simple character-based token estimator.
// Zero fields in cfg take their values from DefaultConfig.
func NewSimpleEstimator(cfg Config) *SimpleEstimator {
	def := DefaultConfig()
	if len(cfg.CharsPerToken) == 0 {
		cfg.CharsPerToken = def.CharsPerToken
	}
	if cfg.ImageTokens == 0 {
		cfg.ImageTokens = def.ImageTokens
	}
	if cfg.AttachmentTokens == 0 {
		cfg.AttachmentTokens = def.AttachmentTokens
	}

	prefixes := make([]string, 0, len(cfg.CharsPerToken))
	for k := range cfg.CharsPerToken {
		if k != "default" {
			prefixes = append(prefixes, k)
		}
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	return &SimpleEstimator{config: cfg, prefixes: prefixes}
}

// EstimateText estimates tokens for a single text string.
func (e *SimpleEstimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}

	charsPerToken := e.getCharsPerToken(model)
	charCount := len([]rune(text))

	tokens := float64(charCount) / charsPerToken
	if tokens < 1.0 {
		tokens = 1.0 // Minimum 1 token for non-empty text
	}

	return int(tokens + 0.5)
}

// EstimateMessages estimates tokens for a list of messages.
// Returns total prompt tokens including overhead for message formatting.
func (e *SimpleEstimator) EstimateMessages(messages []providers.Message, model string) int {
	if len(messages) == 0 {
		return 0
	}

	totalTokens := 0
	for _, msg := range messages {
		// Role (~1 token)
		totalTokens++

		if msg.HasParts() {
			totalTokens += e.estimateParts(msg.Parts, model)
		} else {
			totalTokens += e.EstimateText(msg.Content, model)
		}

		// Message formatting overhead (~3 tokens per message)
		totalTokens += 3
	}

	// Conversation formatting overhead (~3 tokens)
	return totalTokens + 3
}

// EstimateUsage estimates a complete usage record.
func (e *SimpleEstimator) EstimateUsage(messages []providers.Message, completion string, model string) *providers.TokenUsage {
	prompt := e.EstimateMessages(messages, model)
	completionTokens := e.EstimateText(completion, model)
	return &providers.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}

func (e *SimpleEstimator) estimateParts(parts []providers.ContentPart, model string) int {
	total := 0
	for _, p := range parts {
		switch {
		case p.Type == providers.PartText:
			total += e.EstimateText(p.Text, model)
		case p.Type == providers.PartImageRef, strings.HasPrefix(p.MIMEType, "image/"):
			total += e.config.ImageTokens
		default:
			total += e.config.AttachmentTokens
		}
	}
	return total
}

// getCharsPerToken returns the characters-per-token ratio for a model.
// Exact matches win, then the longest matching prefix, then "default".
func (e *SimpleEstimator) getCharsPerToken(model string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ratio, ok := e.config.CharsPerToken[model]; ok && ratio > 0 {
		return ratio
	}

	for _, prefix := range e.prefixes {
		if strings.HasPrefix(model, prefix) {
			if ratio := e.config.CharsPerToken[prefix]; ratio > 0 {
				return ratio
			}
		}
	}

	if ratio, ok := e.config.CharsPerToken["default"]; ok && ratio > 0 {
		return ratio
	}

	// Ultimate fallback
	return 4.0
}

var _ Estimator = (*SimpleEstimator)(nil)
