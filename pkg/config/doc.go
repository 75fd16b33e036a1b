// Package config provides configuration management for switchboard.
//
// This package loads, validates and hot-reloads configuration from YAML or
// TOML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a file only:
//     cfg, err := config.LoadConfig("switchboard.yaml")
//
//  2. From a file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("switchboard.toml")
//
//  3. From the environment alone:
//     cfg, err := config.LoadFromEnv()
//
// Files ending in .toml are decoded as TOML; every other extension as YAML.
//
// # Environment Variable Overrides
//
//   - SWITCHBOARD_MAX_RETRIES, SWITCHBOARD_RETRY_DELAY, SWITCHBOARD_REQUEST_TIMEOUT
//   - SWITCHBOARD_<PROVIDER>_KEYS (comma separated), SWITCHBOARD_<PROVIDER>_BASE_URL,
//     SWITCHBOARD_<PROVIDER>_DEFAULT_MODEL
//   - SWITCHBOARD_LOG_LEVEL, SWITCHBOARD_LOG_FORMAT
//   - SWITCHBOARD_METRICS_ENABLED, SWITCHBOARD_METRICS_LISTEN_ADDRESS
//   - SWITCHBOARD_USAGE_BACKEND, SWITCHBOARD_USAGE_SQLITE_PATH,
//     SWITCHBOARD_USAGE_DRIVER, SWITCHBOARD_USAGE_RETENTION_DAYS
//
// # Hot Reload
//
// A Watcher reloads the file after it changes and hands the new
// configuration to a callback. Only the retry policy and default models
// should be applied at runtime; key pools are built once.
//
//	w, _ := config.NewWatcher(path, 0, logger)
//	go w.Watch(ctx, func(cfg *config.Config) {
//	    engine.Apply(cfg.ToEngineConfig())
//	})
//
// # Example Configuration
//
//	dispatch:
//	  max_retries: 3
//	  retry_delay: 5s
//	  request_timeout: 120s
//
//	providers:
//	  openrouter:
//	    default_model: "openai/gpt-4o-mini"
//	    keys: ["sk-or-v1-aaa", "sk-or-v1-bbb"]
//	    key_reset_schedule: "0 * * * *"
//	  google:
//	    default_model: "gemini-2.0-flash"
//	    keys: ["AIza..."]
//	  local:
//	    type: custom
//	    base_url: "http://localhost:8000/v1"
//
//	usage:
//	  backend: sqlite
//	  sqlite_path: data/usage.db
package config
