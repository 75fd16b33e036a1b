package tokens

import (
	"testing"

	"mercator-hq/switchboard/pkg/providers"
)

func TestSimpleEstimator_EstimateText(t *testing.T) {
	estimator := NewSimpleEstimator(Config{
		CharsPerToken: map[string]float64{
			"gpt-4":   4.0,
			"claude":  3.5,
			"default": 4.0,
		},
	})

	tests := []struct {
		name        string
		text        string
		model       string
		expectedMin int
		expectedMax int
	}{
		{name: "empty text", text: "", model: "gpt-4", expectedMin: 0, expectedMax: 0},
		{name: "short text gpt-4", text: "Hello, world!", model: "gpt-4", expectedMin: 2, expectedMax: 4},
		{name: "short text claude", text: "Hello, world!", model: "claude-3-opus", expectedMin: 3, expectedMax: 5},
		{name: "single char", text: "a", model: "gpt-4", expectedMin: 1, expectedMax: 1},
		{
			name:        "medium text",
			text:        "This is a longer message that should result in more tokens being estimated for the request.",
			model:       "gpt-4",
			expectedMin: 20,
			expectedMax: 25,
		},
		{name: "unknown model uses default", text: "Hello, world!", model: "unknown-model", expectedMin: 2, expectedMax: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimator.EstimateText(tt.text, tt.model)
			if got < tt.expectedMin || got > tt.expectedMax {
				t.Errorf("expected tokens in [%d, %d], got %d", tt.expectedMin, tt.expectedMax, got)
			}
		})
	}
}

func TestSimpleEstimator_EstimateMessages(t *testing.T) {
	estimator := NewSimpleEstimator(DefaultConfig())

	if got := estimator.EstimateMessages(nil, "gpt-4"); got != 0 {
		t.Errorf("expected 0 tokens for no messages, got %d", got)
	}

	// "abcd" is one token: 1 role + 1 content + 3 formatting + 3 conversation
	msgs := []providers.Message{providers.NewTextMessage("user", "abcd")}
	if got := estimator.EstimateMessages(msgs, "gpt-4"); got != 8 {
		t.Errorf("expected 8 tokens, got %d", got)
	}
}

func TestSimpleEstimator_Parts(t *testing.T) {
	estimator := NewSimpleEstimator(Config{ImageTokens: 1000, AttachmentTokens: 200})

	msgs := []providers.Message{
		providers.NewPartsMessage("user",
			providers.TextPart("abcd"),
			providers.ImageRefPart("data:image/png;base64,AAAA"),
			providers.InlineBinaryPart("application/pdf", "AAAA"),
		),
	}

	// 1 role + 1 text + 1000 image + 200 pdf + 3 + 3
	if got := estimator.EstimateMessages(msgs, "gpt-4"); got != 1208 {
		t.Errorf("expected 1208 tokens, got %d", got)
	}
}

func TestSimpleEstimator_EstimateUsage(t *testing.T) {
	estimator := NewSimpleEstimator(DefaultConfig())

	msgs := []providers.Message{providers.NewTextMessage("user", "abcd")}
	usage := estimator.EstimateUsage(msgs, "abcdefgh", "gpt-4")

	if usage.PromptTokens != 8 {
		t.Errorf("expected 8 prompt tokens, got %d", usage.PromptTokens)
	}
	if usage.CompletionTokens != 2 {
		t.Errorf("expected 2 completion tokens, got %d", usage.CompletionTokens)
	}
	if usage.TotalTokens != 10 {
		t.Errorf("expected 10 total tokens, got %d", usage.TotalTokens)
	}
}

func TestSimpleEstimator_LongestPrefixWins(t *testing.T) {
	estimator := NewSimpleEstimator(Config{
		CharsPerToken: map[string]float64{
			"default": 4.0,
			"gpt":     2.0,
			"gpt-4o":  8.0,
		},
	})

	if got := estimator.getCharsPerToken("gpt-4o-mini"); got != 8.0 {
		t.Errorf("expected ratio 8.0, got %v", got)
	}
	if got := estimator.getCharsPerToken("gpt-3.5"); got != 2.0 {
		t.Errorf("expected ratio 2.0, got %v", got)
	}
}
