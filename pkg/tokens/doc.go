// Package tokens estimates token counts when a provider does not report usage.
//
// The estimator is character based with model-specific ratios:
//
//   - Most chat models: ~4 characters per token
//   - Claude models: ~3.5 characters per token
//
// Each message adds one token for the role and three for formatting, and the
// conversation adds three more. Images and other attachments are charged a
// flat cost.
//
// # Usage
//
//	estimator := tokens.NewSimpleEstimator(tokens.DefaultConfig())
//	usage := estimator.EstimateUsage(messages, responseText, "openai/gpt-4o-mini")
package tokens
