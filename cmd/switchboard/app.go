package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/pipeline"
	"mercator-hq/switchboard/pkg/telemetry/logging"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
	"mercator-hq/switchboard/pkg/usage"
)

const tracerShutdownTimeout = 5 * time.Second

// app is everything a dispatching command needs.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	engine     *dispatch.Engine
	store      usage.Store
	pipeline   *pipeline.Pipeline
}

// loadConfig resolves and loads the configuration.
func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if path == "" {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.LoadConfigWithEnvOverrides(path)
	}
	if err != nil {
		source := path
		if source == "" {
			source = "environment"
		}
		return nil, "", cli.NewConfigError(source, err.Error())
	}

	return cfg, path, nil
}

// newLogger builds the command logger. Without --verbose only warnings and
// errors are written so that answers stay readable.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lc := cfg.LoggingConfig(w)

	switch {
	case logLevel != "":
		lc.Level = logLevel
	case !verbose:
		if lvl, err := logging.ParseLevel(lc.Level); err == nil && lvl < slog.LevelWarn {
			lc.Level = "warn"
		}
	}

	return logging.New(lc)
}

// openUsageStore opens the configured usage backend. It returns nil for
// the "none" backend.
func openUsageStore(cfg *config.Config, logger *slog.Logger) (usage.Store, error) {
	switch cfg.Usage.Backend {
	case "none":
		return nil, nil
	case "memory":
		return usage.NewMemoryStore(), nil
	default:
		store, err := usage.NewSQLiteStore(cfg.SQLiteConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage store: %w", err)
		}
		return store, nil
	}
}

// newApp loads configuration and builds the engine, usage store and
// pipeline.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	collector := metrics.NewCollector(cfg.MetricsConfig(), nil)

	tc := cfg.TracingConfig()
	tc.ServiceVersion = Version
	tracer, err := tracing.New(tc)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	engine, err := dispatch.NewEngine(cfg.ToEngineConfig(),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(collector),
	)
	if err != nil {
		tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create dispatch engine: %w", err)
	}

	store, err := openUsageStore(cfg, logger)
	if err != nil {
		engine.Close()
		tracer.Shutdown(context.Background())
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithMetrics(collector),
		pipeline.WithTracer(tracer),
		pipeline.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, pipeline.WithStore(store))
	}

	return &app{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		metrics:    collector,
		tracer:     tracer,
		engine:     engine,
		store:      store,
		pipeline:   pipeline.New(engine, opts...),
	}, nil
}

// Close releases the engine and the usage store and flushes pending spans.
func (a *app) Close() error {
	err := a.engine.Close()
	if a.store != nil {
		if serr := a.store.Close(); serr != nil && err == nil {
			err = serr
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
	defer cancel()
	if terr := a.tracer.Shutdown(ctx); terr != nil {
		a.logger.Warn("failed to flush spans", "error", terr)
	}
	return err
}

// defaultProvider picks the provider for commands run without --provider:
// the first provider, in name order, that has keys.
func (a *app) defaultProvider() string {
	names := a.engine.Providers()
	for _, name := range names {
		if pool, ok := a.engine.Pool(name); ok && pool.HasKeys() {
			return name
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// providerType returns the adapter type of a configured provider.
func (a *app) providerType(name string) string {
	return a.cfg.Providers[name].Type
}
