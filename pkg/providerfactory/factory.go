package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/providers/gemini"
	"mercator-hq/switchboard/pkg/providers/openai"
)

// NewAdapter creates an adapter for the configured wire format.
//
// Supported provider types:
//   - "openai": OpenAI-compatible chat completions (defaults to OpenRouter)
//   - "gemini": Google Gemini generateContent
//   - "custom": OpenAI-compatible endpoint with a required base URL
//
// The provider type is determined from the config.Type field. If not specified,
// it is inferred from the provider name:
//   - "google", "gemini" -> gemini
//   - "openrouter", "openai" -> openai
//   - Everything else -> custom
//
// Example:
//
//	adapter, err := NewAdapter(providers.ProviderConfig{Name: "openrouter"})
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
func NewAdapter(config providers.ProviderConfig) (providers.Adapter, error) {
	providerType := config.Type
	if providerType == "" {
		providerType = InferType(config.Name)
		config.Type = providerType
	}

	slog.Debug("creating provider adapter",
		"name", config.Name,
		"type", providerType,
		"base_url", config.BaseURL,
	)

	var adapter providers.Adapter
	var err error

	switch providerType {
	case providers.TypeOpenAI, providers.TypeCustom:
		adapter, err = openai.NewProvider(config)

	case providers.TypeGemini:
		adapter, err = gemini.NewProvider(config)

	default:
		return nil, fmt.Errorf("provider %q: unsupported type %q (supported: openai, gemini, custom)", config.Name, providerType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}
	return adapter, nil
}

// InferType infers the adapter type from the provider name.
func InferType(name string) string {
	switch name {
	case "google", "gemini":
		return providers.TypeGemini
	case "openrouter", "openai":
		return providers.TypeOpenAI
	default:
		return providers.TypeCustom
	}
}
