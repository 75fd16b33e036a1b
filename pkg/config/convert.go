package config

import (
	"io"
	"sort"

	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
	"mercator-hq/switchboard/pkg/usage"
)

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings returns the dispatch retry policy.
func (c *Config) Settings() dispatch.Settings {
	return dispatch.Settings{
		MaxRetries:     c.Dispatch.MaxRetries,
		RetryDelay:     c.Dispatch.RetryDelay,
		RequestTimeout: c.Dispatch.RequestTimeout,
	}
}

// ToEngineConfig converts the configuration into what dispatch.NewEngine
// and Engine.Apply take. Providers are listed in sorted name order.
func (c *Config) ToEngineConfig() dispatch.Config {
	out := dispatch.Config{Settings: c.Settings()}

	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		out.Providers = append(out.Providers, dispatch.ProviderSpec{
			Config: providers.ProviderConfig{
				Name:               name,
				Type:               p.Type,
				BaseURL:            p.BaseURL,
				Headers:            p.Headers,
				IncludeStreamUsage: p.IncludeStreamUsage,
			},
			Keys:         append([]string(nil), p.Keys...),
			DefaultModel: p.DefaultModel,
		})
	}

	return out
}

// KeyResetSchedules returns provider name to cron expression for every
// provider with a key reset schedule.
func (c *Config) KeyResetSchedules() map[string]string {
	out := make(map[string]string)
	for name, p := range c.Providers {
		if p.KeyResetSchedule != "" {
			out[name] = p.KeyResetSchedule
		}
	}
	return out
}

// LoggingConfig returns the logger configuration writing to w.
func (c *Config) LoggingConfig(w io.Writer) logging.Config {
	return logging.Config{
		Level:     c.Telemetry.Logging.Level,
		Format:    c.Telemetry.Logging.Format,
		AddSource: c.Telemetry.Logging.AddSource,
		Writer:    w,
	}
}

// MetricsConfig returns the collector configuration.
func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:        c.Telemetry.Metrics.Enabled,
		Namespace:      c.Telemetry.Metrics.Namespace,
		MaxCardinality: c.Telemetry.Metrics.MaxCardinality,
	}
}

// TracingConfig returns the tracer configuration.
func (c *Config) TracingConfig() tracing.Config {
	t := c.Telemetry.Tracing
	return tracing.Config{
		Enabled:     t.Enabled,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		Sampler:     t.Sampler,
		SampleRatio: t.SampleRatio,
		ServiceName: t.ServiceName,
		Timeout:     t.Timeout,
	}
}

// SQLiteConfig returns the usage store configuration for the sqlite backend.
func (c *Config) SQLiteConfig() usage.SQLiteConfig {
	return usage.SQLiteConfig{
		Path:        c.Usage.SQLitePath,
		Driver:      c.Usage.Driver,
		BusyTimeout: c.Usage.BusyTimeout,
	}
}
