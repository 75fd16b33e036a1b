package providers

import "context"

// Adapter is the contract every backend wire format implements.
//
// An adapter performs exactly one HTTP exchange per call and never retries;
// retry, rotation and backoff belong to the dispatcher. Adapters are safe for
// concurrent use.
//
// Example usage:
//
//	raw, err := adapter.Send(ctx, &providers.Call{
//	    Key:      key,
//	    Model:    "openai/gpt-4o-mini",
//	    Messages: []providers.Message{providers.NewTextMessage("user", "Hello!")},
//	})
//	if err != nil {
//	    return err
//	}
//	if text, ok := adapter.ExtractText(raw); ok {
//	    fmt.Println(text)
//	}
type Adapter interface {
	// Name returns the configured provider name (e.g., "openrouter").
	Name() string

	// Type returns the wire format type (openai, gemini, custom).
	Type() string

	// Send builds the wire request and issues it.
	//
	// A non-2xx status is returned as a RawResponse, not an error. Errors are
	// reserved for requests that could not be built (*BuildError) or could not
	// complete (*TransportError).
	Send(ctx context.Context, call *Call) (*RawResponse, error)

	// ExtractText returns the primary text of a successful response.
	// It returns false when the body has no text at the expected location,
	// and never panics on malformed shapes.
	ExtractText(raw *RawResponse) (string, bool)

	// ExtractResult returns text, reasoning, tool calls and usage.
	// It returns false under the same conditions as ExtractText, except that a
	// response carrying only tool calls is considered content.
	ExtractResult(raw *RawResponse) (*Result, bool)

	// OpenStream issues a streaming request. A non-2xx status is returned
	// as *HTTPError with the response body attached.
	OpenStream(ctx context.Context, call *Call) (StreamReader, error)

	// Stats returns request counters for the adapter's HTTP client.
	Stats() ClientStats

	// Close releases idle connections. The adapter must not be used afterwards.
	Close() error
}

// StreamReader is a helper interface for adapters that support streaming.
// It abstracts the underlying SSE protocol used by the provider.
type StreamReader interface {
	// Read reads the next chunk from the stream.
	// Returns the chunk and nil on success.
	// Returns nil and io.EOF when the stream ends normally.
	// Returns nil and an error if an error occurs.
	Read(ctx context.Context) (*Chunk, error)

	// Close closes the stream and releases resources.
	Close() error
}
