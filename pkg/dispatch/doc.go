// Package dispatch sends chat requests to LLM providers with API key
// rotation, bounded retries and rate limit recovery.
//
// # Engine
//
// An Engine owns one adapter and one key pool per configured provider and is
// shared by every caller:
//
//	engine, err := dispatch.NewEngine(dispatch.Config{
//	    Settings: dispatch.DefaultSettings(),
//	    Providers: []dispatch.ProviderSpec{{
//	        Config:       providers.ProviderConfig{Name: "openrouter", Type: providers.TypeOpenAI},
//	        Keys:         []string{"sk-or-1", "sk-or-2"},
//	        DefaultModel: "openai/gpt-4o-mini",
//	    }},
//	})
//
// # Retry policy
//
// A request makes at most MaxRetries * max(1, keyCount) attempts. Each failed
// attempt is classified:
//
//   - Invalid key or insufficient credits: rotate to the next key and retry
//     at once; fail when no key remains.
//   - Rate limited: rotate and wait min(RetryDelay, 2s); when every key is
//     limited, wait 2*RetryDelay and clear the exhausted marks.
//   - Timeout, network error, other statuses, 2xx without content: wait
//     RetryDelay and retry with the same key.
//
// No pause follows the final attempt.
//
// # Streaming
//
// Stream returns a *Stream whose Events channel yields Text, Thinking and
// ToolCalls events, an optional Usage event and exactly one Done or Error
// event. Failures before the first content event are retried like
// CallWithRetry; later failures end the stream with an Error event.
package dispatch
