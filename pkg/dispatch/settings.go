package dispatch

import (
	"time"

	"mercator-hq/switchboard/pkg/providers"
)

// Default dispatch settings.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultRequestTimeout = 120 * time.Second

	// maxRotationDelay caps the pause before trying the next key after a rate limit.
	maxRotationDelay = 2 * time.Second
)

// Settings are the retry parameters shared by every provider.
// They can be replaced at runtime with Engine.UpdateSettings.
type Settings struct {
	// MaxRetries is the number of passes over the key pool.
	// A request makes at most MaxRetries * max(1, keyCount) attempts.
	MaxRetries int

	// RetryDelay is the pause after transient failures. Rate limit cooldowns
	// with every key exhausted last twice as long.
	RetryDelay time.Duration

	// RequestTimeout bounds one HTTP exchange, or the silence between two
	// received chunks of a stream.
	RequestTimeout time.Duration
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// normalize replaces unusable values. A zero RetryDelay is kept.
func (s Settings) normalize() Settings {
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.RetryDelay < 0 {
		s.RetryDelay = 0
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	return s
}

// MaxAttempts returns the attempt budget for a pool of keyCount keys.
func (s Settings) MaxAttempts(keyCount int) int {
	return s.MaxRetries * max(1, keyCount)
}

// ProviderSpec describes one provider the engine dispatches to.
type ProviderSpec struct {
	// Config configures the adapter (name, type, base URL, headers)
	Config providers.ProviderConfig

	// Keys is the ordered key list for the provider's pool
	Keys []string

	// DefaultModel is used when a request does not override the model
	DefaultModel string
}

// Config is everything NewEngine needs.
type Config struct {
	Settings  Settings
	Providers []ProviderSpec
}
