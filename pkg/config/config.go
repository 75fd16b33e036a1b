package config

import "time"

// Config is the root configuration structure for switchboard.
// It contains the dispatch retry policy, the provider table, telemetry
// and the usage ledger.
type Config struct {
	// Dispatch contains the retry policy shared by every provider.
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`

	// Providers contains one entry per AI backend.
	// Keys are provider names (e.g., "openrouter", "google").
	Providers map[string]ProviderConfig `yaml:"providers" toml:"providers"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`

	// Usage contains configuration for the usage ledger.
	Usage UsageConfig `yaml:"usage" toml:"usage"`
}

// DispatchConfig contains the retry policy.
type DispatchConfig struct {
	// MaxRetries is the number of passes over a provider's key pool.
	// Default: 3
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`

	// RetryDelay is the pause after a transient failure.
	// Default: 5s
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay"`

	// RequestTimeout bounds one HTTP exchange, or the silence between two
	// stream chunks.
	// Default: 120s
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`
}

// ProviderConfig contains configuration for a single provider.
type ProviderConfig struct {
	// Type is the wire format: "openai", "gemini" or "custom".
	// Inferred from the provider name when empty.
	Type string `yaml:"type" toml:"type"`

	// BaseURL is the API endpoint. Required for custom providers.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// DefaultModel is used when a request names no model.
	DefaultModel string `yaml:"default_model" toml:"default_model"`

	// Keys is the ordered API key list. Rotation follows this order.
	Keys []string `yaml:"keys" toml:"keys"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers" toml:"headers"`

	// KeyResetSchedule is a cron expression that clears exhausted key marks
	// (e.g., "0 * * * *"). Empty disables scheduled resets.
	KeyResetSchedule string `yaml:"key_reset_schedule" toml:"key_reset_schedule"`

	// IncludeStreamUsage asks OpenAI-compatible endpoints to report usage
	// at the end of a stream.
	IncludeStreamUsage bool `yaml:"include_stream_usage" toml:"include_stream_usage"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level" toml:"level"`

	// Format is "json" or "text".
	// Default: "text"
	Format string `yaml:"format" toml:"format"`

	// AddSource includes file and line in every record.
	AddSource bool `yaml:"add_source" toml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// ListenAddress is where the chat command serves metrics.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address" toml:"listen_address"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path" toml:"path"`

	// Namespace prefixes every metric name.
	// Default: "switchboard"
	Namespace string `yaml:"namespace" toml:"namespace"`

	// MaxCardinality bounds distinct provider/model label sets.
	// Default: 1000
	MaxCardinality int `yaml:"max_cardinality" toml:"max_cardinality"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns span export on.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure" toml:"insecure"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler" toml:"sampler"`

	// SampleRatio is the fraction of requests traced by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`

	// ServiceName is reported as the OpenTelemetry service.name.
	// Default: "switchboard"
	ServiceName string `yaml:"service_name" toml:"service_name"`

	// Timeout bounds each export to the collector.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// UsageConfig contains usage ledger configuration.
type UsageConfig struct {
	// Backend is "memory", "sqlite" or "none".
	// Default: "sqlite"
	Backend string `yaml:"backend" toml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/usage.db"
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`

	// Driver selects the SQL driver: "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver" toml:"driver"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout"`

	// RetentionDays is how long records are kept. A negative value keeps
	// everything.
	// Default: 90
	RetentionDays int `yaml:"retention_days" toml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule" toml:"prune_schedule"`
}
