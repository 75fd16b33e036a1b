package config

import (
	"time"

	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/providerfactory"
)

// Default values for configuration fields.
const (
	// Dispatch defaults
	DefaultMaxRetries     = dispatch.DefaultMaxRetries
	DefaultRetryDelay     = dispatch.DefaultRetryDelay
	DefaultRequestTimeout = dispatch.DefaultRequestTimeout

	// Telemetry defaults
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultMetricsListenAddress  = "127.0.0.1:9090"
	DefaultMetricsPath           = "/metrics"
	DefaultMetricsNamespace      = "switchboard"
	DefaultMetricsMaxCardinality = 1000
	DefaultTracingEndpoint       = "localhost:4317"
	DefaultTracingSampler        = "always"
	DefaultTracingSampleRatio    = 1.0
	DefaultTracingServiceName    = "switchboard"
	DefaultTracingTimeout        = 10 * time.Second

	// Usage defaults
	DefaultUsageBackend       = "sqlite"
	DefaultUsageSQLitePath    = "data/usage.db"
	DefaultUsageDriver        = "sqlite"
	DefaultUsageBusyTimeout   = 5 * time.Second
	DefaultUsageRetentionDays = 90
	DefaultUsagePruneSchedule = "0 3 * * *"
)

// ApplyDefaults fills every unset field with its default value.
// Provider types missing from the file are inferred from the provider name.
func ApplyDefaults(cfg *Config) {
	if cfg.Dispatch.MaxRetries == 0 {
		cfg.Dispatch.MaxRetries = DefaultMaxRetries
	}
	if cfg.Dispatch.RetryDelay == 0 {
		cfg.Dispatch.RetryDelay = DefaultRetryDelay
	}
	if cfg.Dispatch.RequestTimeout == 0 {
		cfg.Dispatch.RequestTimeout = DefaultRequestTimeout
	}

	for name, p := range cfg.Providers {
		if p.Type == "" {
			p.Type = providerfactory.InferType(name)
			cfg.Providers[name] = p
		}
	}

	applyTelemetryDefaults(cfg)
	applyUsageDefaults(cfg)
}

func applyTelemetryDefaults(cfg *Config) {
	logging := &cfg.Telemetry.Logging
	if logging.Level == "" {
		logging.Level = DefaultLogLevel
	}
	if logging.Format == "" {
		logging.Format = DefaultLogFormat
	}

	metrics := &cfg.Telemetry.Metrics
	if metrics.ListenAddress == "" {
		metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if metrics.Path == "" {
		metrics.Path = DefaultMetricsPath
	}
	if metrics.Namespace == "" {
		metrics.Namespace = DefaultMetricsNamespace
	}
	if metrics.MaxCardinality == 0 {
		metrics.MaxCardinality = DefaultMetricsMaxCardinality
	}

	tracing := &cfg.Telemetry.Tracing
	if tracing.Endpoint == "" {
		tracing.Endpoint = DefaultTracingEndpoint
	}
	if tracing.Sampler == "" {
		tracing.Sampler = DefaultTracingSampler
	}
	if tracing.SampleRatio == 0 {
		tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if tracing.ServiceName == "" {
		tracing.ServiceName = DefaultTracingServiceName
	}
	if tracing.Timeout == 0 {
		tracing.Timeout = DefaultTracingTimeout
	}
}

func applyUsageDefaults(cfg *Config) {
	usage := &cfg.Usage
	if usage.Backend == "" {
		usage.Backend = DefaultUsageBackend
	}
	if usage.SQLitePath == "" {
		usage.SQLitePath = DefaultUsageSQLitePath
	}
	if usage.Driver == "" {
		usage.Driver = DefaultUsageDriver
	}
	if usage.BusyTimeout == 0 {
		usage.BusyTimeout = DefaultUsageBusyTimeout
	}
	if usage.RetentionDays == 0 {
		usage.RetentionDays = DefaultUsageRetentionDays
	}
	if usage.PruneSchedule == "" {
		usage.PruneSchedule = DefaultUsagePruneSchedule
	}
}

// Default returns a configuration with defaults applied and the two
// built-in providers registered without keys.
func Default() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"openrouter": {DefaultModel: "openai/gpt-4o-mini"},
			"google":     {DefaultModel: "gemini-2.0-flash"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
