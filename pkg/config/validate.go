package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "dispatch.max_retries").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 1 {
		errs = append(errs, FieldError{
			Field:   "dispatch.max_retries",
			Message: "must be at least 1",
		})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.retry_delay",
			Message: "must not be negative",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.request_timeout",
			Message: "must be positive",
		})
	}

	return errs
}

func validateProviders(ps map[string]ProviderConfig) []FieldError {
	if len(ps) == 0 {
		return []FieldError{{
			Field:   "providers",
			Message: "at least one provider must be configured",
		}}
	}

	// sorted so the error list is stable
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []FieldError
	for _, name := range names {
		p := ps[name]
		field := "providers." + name

		if strings.TrimSpace(name) == "" {
			errs = append(errs, FieldError{Field: "providers", Message: "provider name must not be empty"})
			continue
		}

		switch p.Type {
		case providers.TypeOpenAI, providers.TypeGemini:
		case providers.TypeCustom:
			if p.BaseURL == "" {
				errs = append(errs, FieldError{
					Field:   field + ".base_url",
					Message: "is required for custom providers",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unsupported type %q (supported: openai, gemini, custom)", p.Type),
			})
		}

		if p.BaseURL != "" {
			if err := validateURL(p.BaseURL); err != nil {
				errs = append(errs, FieldError{Field: field + ".base_url", Message: err.Error()})
			}
		}

		for i, key := range p.Keys {
			if strings.TrimSpace(key) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.keys[%d]", field, i),
					Message: "must not be empty",
				})
			}
		}

		if p.KeyResetSchedule != "" {
			if _, err := cron.ParseStandard(p.KeyResetSchedule); err != nil {
				errs = append(errs, FieldError{
					Field:   field + ".key_reset_schedule",
					Message: fmt.Sprintf("invalid cron expression: %v", err),
				})
			}
		}
	}

	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "must start with /",
			})
		}
	}
	if cfg.Metrics.MaxCardinality < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.max_cardinality",
			Message: "must not be negative",
		})
	}

	switch cfg.Tracing.Sampler {
	case tracing.SamplerAlways, tracing.SamplerNever, tracing.SamplerRatio:
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0 and 1",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "required when tracing is enabled",
		})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none", "memory":
		return nil
	case "sqlite":
	default:
		return []FieldError{{
			Field:   "usage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite, memory, or none)", cfg.Backend),
		}}
	}

	if cfg.SQLitePath == "" {
		errs = append(errs, FieldError{Field: "usage.sqlite_path", Message: "is required for the sqlite backend"})
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		errs = append(errs, FieldError{
			Field:   "usage.driver",
			Message: fmt.Sprintf("invalid driver %q (must be sqlite or sqlite3)", cfg.Driver),
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{Field: "usage.busy_timeout", Message: "must not be negative"})
	}
	if cfg.RetentionDays > 0 {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "usage.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}
