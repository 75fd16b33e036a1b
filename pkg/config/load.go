package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SWITCHBOARD_"

// builtinProviders always accept key and base URL overrides from the
// environment, even when the file does not mention them.
var builtinProviders = []string{"openrouter", "google"}

// LoadConfig loads configuration from a YAML or TOML file at the specified
// path. Files ending in .toml are decoded as TOML, everything else as YAML.
// It applies default values and validates the result.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Decode YAML or TOML from file
// 2. Apply environment variable overrides
// 3. Apply default values
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Format is a configuration file encoding.
type Format string

// Supported file formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes data without applying defaults or validating.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config

	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, err
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", format)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables use the format SWITCHBOARD_SECTION_FIELD, and
// SWITCHBOARD_<PROVIDER>_FIELD for providers.
func applyEnvOverrides(cfg *Config) {
	// Dispatch overrides
	if val := os.Getenv(EnvPrefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Dispatch.MaxRetries = i
		}
	}
	if val := os.Getenv(EnvPrefix + "RETRY_DELAY"); val != "" {
		if d, ok := parseDuration(val); ok {
			cfg.Dispatch.RetryDelay = d
		}
	}
	if val := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); val != "" {
		if d, ok := parseDuration(val); ok {
			cfg.Dispatch.RequestTimeout = d
		}
	}

	// Provider overrides
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	names := make(map[string]struct{}, len(cfg.Providers)+len(builtinProviders))
	for name := range cfg.Providers {
		names[name] = struct{}{}
	}
	for _, name := range builtinProviders {
		names[name] = struct{}{}
	}
	for name := range names {
		applyProviderEnvOverrides(cfg, name)
	}

	// Telemetry overrides
	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv(EnvPrefix + "METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv(EnvPrefix + "METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv(EnvPrefix + "TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv(EnvPrefix + "TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}

	// Usage overrides
	if val := os.Getenv(EnvPrefix + "USAGE_BACKEND"); val != "" {
		cfg.Usage.Backend = val
	}
	if val := os.Getenv(EnvPrefix + "USAGE_SQLITE_PATH"); val != "" {
		cfg.Usage.SQLitePath = val
	}
	if val := os.Getenv(EnvPrefix + "USAGE_DRIVER"); val != "" {
		cfg.Usage.Driver = val
	}
	if val := os.Getenv(EnvPrefix + "USAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Usage.RetentionDays = i
		}
	}
}

// applyProviderEnvOverrides applies environment variable overrides for a
// specific provider. The provider name is upper-cased with dashes turned
// into underscores: SWITCHBOARD_OPENROUTER_KEYS, SWITCHBOARD_MY_LLM_BASE_URL.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider, exists := cfg.Providers[providerName]

	prefix := EnvPrefix + envName(providerName) + "_"
	modified := false

	if val := os.Getenv(prefix + "KEYS"); val != "" {
		provider.Keys = splitKeys(val)
		modified = true
	}
	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
		modified = true
	}
	if val := os.Getenv(prefix + "DEFAULT_MODEL"); val != "" {
		provider.DefaultModel = val
		modified = true
	}

	// Only update the map if we found at least one override
	if modified || exists {
		cfg.Providers[providerName] = provider
	}
}

func envName(providerName string) string {
	return strings.ToUpper(strings.ReplaceAll(providerName, "-", "_"))
}

// splitKeys splits a comma-separated key list, dropping blanks.
func splitKeys(val string) []string {
	var keys []string
	for _, k := range strings.Split(val, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// parseDuration accepts a Go duration ("1.5s") or a bare number of seconds.
func parseDuration(val string) (time.Duration, bool) {
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(f * float64(time.Second)), true
	}
	return 0, false
}

// LoadFromEnv builds a configuration from Default and environment variable
// overrides alone, for running without a configuration file.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
