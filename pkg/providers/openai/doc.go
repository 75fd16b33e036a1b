// Package openai implements the OpenAI-compatible chat completions adapter.
//
// The same adapter serves OpenRouter (type "openai") and custom
// OpenAI-compatible endpoints (type "custom"). It supports:
//
//   - Chat completions with multimodal content parts
//   - Streaming responses (Server-Sent Events)
//   - Reasoning output (OpenRouter "reasoning" request field)
//   - Tool calls, merged across stream fragments by index
//   - Token usage, including the final stream chunk when requested
//
// # Basic Usage
//
//	provider, err := openai.NewProvider(providers.ProviderConfig{
//	    Name: "openrouter",
//	    Type: providers.TypeOpenAI,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	raw, err := provider.Send(ctx, &providers.Call{
//	    Key:      key,
//	    Model:    "openai/gpt-4o-mini",
//	    Messages: []providers.Message{providers.NewTextMessage("user", "Hello!")},
//	})
//
// # Content Parts
//
// Image references become image_url parts. Inline data is mapped by MIME type:
// images to data URLs, wav/mp3 audio to input_audio, PDF and text documents to
// file parts. Anything else fails with *providers.BuildError.
package openai
