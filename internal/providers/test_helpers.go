package providers

import (
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/providers"
)

// TestConfig returns a test provider configuration.
func TestConfig(name, providerType string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		Type:                providerType,
		BaseURL:             "http://localhost:8080",
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// TestConfigWithURL returns a test config with a specific base URL.
func TestConfigWithURL(name, providerType, baseURL string) providers.ProviderConfig {
	config := TestConfig(name, providerType)
	config.BaseURL = baseURL
	return config
}

// TestCall creates a call with a single user message.
func TestCall(key, model, text string) *providers.Call {
	return &providers.Call{
		Key:      key,
		Model:    model,
		Messages: []providers.Message{providers.NewTextMessage(providers.RoleUser, text)},
		Timeout:  5 * time.Second,
	}
}

// TestStreamingCall creates a streaming call with a single user message.
func TestStreamingCall(key, model, text string) *providers.Call {
	call := TestCall(key, model, text)
	call.Stream = true
	return call
}

// CollectEvents drains events and fails the test if the stream does not end
// within timeout.
func CollectEvents(t *testing.T, events <-chan providers.StreamEvent, timeout time.Duration) []providers.StreamEvent {
	t.Helper()

	deadline := time.After(timeout)
	var out []providers.StreamEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("stream did not end within %s", timeout)
			return out
		}
	}
}

// ConcatenateText concatenates the deltas of every Text event.
func ConcatenateText(events []providers.StreamEvent) string {
	var result string
	for _, ev := range events {
		if ev.Type == providers.EventText {
			result += ev.Delta
		}
	}
	return result
}

// WaitForCondition waits for a condition to become true within a timeout.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}

		<-ticker.C
	}
}
