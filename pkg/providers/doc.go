// Package providers implements the wire-format layer of the dispatch engine.
//
// # Overview
//
// The package defines the canonical message and response model shared by
// every backend, the Adapter contract, the HTTP client adapters embed, and
// the error classifier that drives the dispatcher's retry decisions.
//
// # Architecture
//
//  1. Canonical model - Message, ContentPart, Result, Chunk, StreamEvent
//  2. Adapter interface - one HTTP exchange per call, no retries
//  3. HTTPClient - connection pooling, per-call timeout, stream idle timeout
//  4. Classifier - status code and body patterns mapped to a Kind
//
// Adapters live in subpackages:
//
//   - openai: OpenAI-compatible chat completions (OpenRouter and custom endpoints)
//   - gemini: Google Gemini generateContent
//
// # Error Handling
//
// Adapters return a non-2xx status as data (RawResponse) on the non-streaming
// path and as *HTTPError when opening a stream. Everything else is a typed error:
//
//   - TransportError: connection failures and timeouts
//   - ParseError: a 2xx body or stream event that could not be decoded
//   - BuildError: content the wire format cannot express (never retried)
//   - StreamError: failures after a stream was opened
//
// Classification:
//
//	kind := providers.ClassifyResponse(raw.StatusCode, raw.Body)
//	switch kind {
//	case providers.KindInvalidKey, providers.KindInsufficientCredits:
//	    // rotate to the next key
//	case providers.KindRateLimited:
//	    // rotate, or cool down when every key is limited
//	}
//
// # Thread Safety
//
// Adapters and HTTPClient are safe for concurrent use. A StreamReader is owned
// by a single goroutine.
package providers
