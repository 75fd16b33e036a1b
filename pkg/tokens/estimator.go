package tokens

import (
	"mercator-hq/switchboard/pkg/providers"
)

// Estimator estimates token counts for text and messages.
// Implementations may use different algorithms (character-based, BPE, ...).
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string, model string) int

	// EstimateMessages estimates tokens for a list of messages.
	// Returns total prompt tokens including overhead.
	EstimateMessages(messages []providers.Message, model string) int

	// EstimateUsage estimates prompt and completion tokens for a finished
	// exchange whose provider did not report usage.
	EstimateUsage(messages []providers.Message, completion string, model string) *providers.TokenUsage
}

// Config contains token estimation configuration.
type Config struct {
	// CharsPerToken maps a model identifier, or a prefix of one, to its
	// characters-per-token ratio. The "default" entry applies to all other models.
	CharsPerToken map[string]float64

	// ImageTokens is the flat cost charged for each image part
	ImageTokens int

	// AttachmentTokens is the flat cost charged for other binary parts
	AttachmentTokens int
}

// DefaultConfig returns ratios that hold for common chat models.
func DefaultConfig() Config {
	return Config{
		CharsPerToken: map[string]float64{
			"default":          4.0,
			"anthropic/claude": 3.5,
			"claude":           3.5,
		},
		ImageTokens:      1000,
		AttachmentTokens: 500,
	}
}
