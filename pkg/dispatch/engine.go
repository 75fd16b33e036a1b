package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/switchboard/pkg/keypool"
	"mercator-hq/switchboard/pkg/providerfactory"
	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
)

// Request is one logical call to a provider.
type Request struct {
	// Provider names the configured provider (e.g., "openrouter", "google")
	Provider string

	// Model overrides the provider's default model when set
	Model string

	// Messages is the conversation to send
	Messages []providers.Message

	// Params are passed through to the provider
	Params providers.Params

	// Thinking asks for reasoning output where supported
	Thinking bool
}

// Response is the successful result of CallWithRetry.
type Response struct {
	Text      string
	Reasoning string
	ToolCalls []providers.ToolCall

	// Usage is the provider-reported usage, or nil when none was reported
	Usage *providers.TokenUsage

	Provider string
	Model    string

	// Attempts is the number of HTTP exchanges made, including the successful one
	Attempts int

	// Retries is the number of failed attempts that were retried
	Retries int
}

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// AdapterFactory builds the adapter for a provider.
type AdapterFactory func(config providers.ProviderConfig) (providers.Adapter, error)

// provider is the engine's per-provider state.
type provider struct {
	name    string
	adapter providers.Adapter
	pool    *keypool.Pool
}

// Engine dispatches requests to providers with key rotation, bounded
// retries and rate limit recovery.
//
// An Engine is constructed once and shared; all methods are safe for
// concurrent use. Each provider has exactly one key pool, shared by every
// request to that provider for the engine's lifetime.
type Engine struct {
	providers map[string]*provider
	pools     *keypool.Registry

	settings      atomic.Pointer[Settings]
	defaultModels atomic.Pointer[map[string]string]

	sleep   Sleeper
	logger  *slog.Logger
	metrics *metrics.Collector
	factory AdapterFactory

	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records dispatch metrics to collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithSleeper replaces the function used for every backoff pause.
func WithSleeper(sleep Sleeper) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithAdapterFactory replaces providerfactory.NewAdapter.
func WithAdapterFactory(factory AdapterFactory) Option {
	return func(e *Engine) {
		if factory != nil {
			e.factory = factory
		}
	}
}

// NewEngine creates the engine, one adapter and one key pool per provider.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		providers: make(map[string]*provider, len(cfg.Providers)),
		sleep:     sleepContext,
		logger:    slog.Default(),
		factory:   providerfactory.NewAdapter,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "dispatch")
	e.pools = keypool.NewRegistry(e.logger)

	settings := cfg.Settings.normalize()
	e.settings.Store(&settings)

	defaults := make(map[string]string, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		name := spec.Config.Name
		if name == "" {
			return nil, errors.New("provider name is required")
		}
		if _, dup := e.providers[name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", name)
		}

		adapter, err := e.factory(spec.Config)
		if err != nil {
			e.Close()
			return nil, err
		}

		pool := e.pools.Add(name, spec.Keys)
		e.providers[name] = &provider{name: name, adapter: adapter, pool: pool}
		defaults[name] = spec.DefaultModel
		e.metrics.SetAvailableKeys(name, pool.Status().Available)

		e.logger.Info("provider registered",
			"provider", name,
			"type", adapter.Type(),
			"keys", pool.KeyCount(),
			"default_model", spec.DefaultModel,
		)
	}
	e.defaultModels.Store(&defaults)

	return e, nil
}

// Settings returns the current dispatch settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// UpdateSettings replaces the dispatch settings. Requests already running
// keep the settings they started with.
func (e *Engine) UpdateSettings(s Settings) {
	s = s.normalize()
	e.settings.Store(&s)
	e.logger.Info("dispatch settings updated",
		"max_retries", s.MaxRetries,
		"retry_delay", s.RetryDelay,
		"request_timeout", s.RequestTimeout,
	)
}

// SetDefaultModels replaces the per-provider default models. Unknown
// provider names are ignored; providers missing from models keep theirs.
func (e *Engine) SetDefaultModels(models map[string]string) {
	current := *e.defaultModels.Load()
	next := make(map[string]string, len(current))
	for k, v := range current {
		next[k] = v
	}
	for name, model := range models {
		if _, ok := e.providers[name]; ok {
			next[name] = model
		}
	}
	e.defaultModels.Store(&next)
}

// Apply swaps settings and default models from cfg. Key pools and adapters
// are never rebuilt; providers not known at construction are reported.
func (e *Engine) Apply(cfg Config) (ignored []string) {
	e.UpdateSettings(cfg.Settings)

	models := make(map[string]string, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		if _, ok := e.providers[spec.Config.Name]; !ok {
			ignored = append(ignored, spec.Config.Name)
			continue
		}
		models[spec.Config.Name] = spec.DefaultModel
	}
	e.SetDefaultModels(models)

	if len(ignored) > 0 {
		e.logger.Warn("new providers require a restart", "providers", ignored)
	}
	return ignored
}

// DefaultModel returns the configured default model for a provider.
func (e *Engine) DefaultModel(name string) string {
	return (*e.defaultModels.Load())[name]
}

// Providers returns the configured provider names in sorted order.
func (e *Engine) Providers() []string {
	names := make([]string, 0, len(e.providers))
	for name := range e.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pool returns the key pool for a provider.
func (e *Engine) Pool(name string) (*keypool.Pool, bool) {
	return e.pools.Get(name)
}

// Pools returns the registry holding every key pool.
func (e *Engine) Pools() *keypool.Registry {
	return e.pools
}

// Adapter returns the adapter for a provider.
func (e *Engine) Adapter(name string) (providers.Adapter, bool) {
	p, ok := e.providers[name]
	if !ok {
		return nil, false
	}
	return p.adapter, true
}

// Degraded returns, in sorted order, the providers whose endpoint failed
// several exchanges in a row.
func (e *Engine) Degraded() []string {
	var names []string
	for _, name := range e.Providers() {
		if e.providers[name].adapter.Stats().Degraded() {
			names = append(names, name)
		}
	}
	return names
}

// Close releases every adapter's idle connections.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		for _, p := range e.providers {
			if err := p.adapter.Close(); err != nil {
				e.logger.Warn("failed to close adapter", "provider", p.name, "error", err)
			}
		}
	})
	return nil
}

// lookup resolves the provider and effective model for a request.
func (e *Engine) lookup(req Request) (*provider, string, error) {
	p, ok := e.providers[req.Provider]
	if !ok {
		return nil, "", &Error{
			Provider: req.Provider,
			Kind:     providers.KindFatal,
			Message:  fmt.Sprintf("%s %q", msgUnknownProvider, req.Provider),
		}
	}
	model := req.Model
	if model == "" {
		model = e.DefaultModel(p.name)
	}
	return p, model, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
