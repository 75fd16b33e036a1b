package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains metrics configuration.
type Config struct {
	// Enabled turns recording on. A disabled collector ignores every call.
	Enabled bool

	// Namespace and Subsystem prefix every metric name
	Namespace string
	Subsystem string

	// RequestDurationBuckets are histogram buckets in seconds
	RequestDurationBuckets []float64

	// TokenCountBuckets are histogram buckets in tokens
	TokenCountBuckets []float64

	// MaxCardinality bounds distinct provider/model label sets
	MaxCardinality int
}

// Collector owns every Prometheus metric the dispatcher records.
//
// All methods are safe on a nil *Collector, so components can take an
// optional collector without guarding each call.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	dispatchMetrics *DispatchMetrics
	providerMetrics *ProviderMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is used.
//
// Example:
//
//	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
//	http.Handle("/metrics", collector.Handler())
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "switchboard"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "dispatch"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// LLM request latencies (100ms - 2m)
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	}
	if len(cfg.TokenCountBuckets) == 0 {
		cfg.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}
	}
	if cfg.MaxCardinality == 0 {
		cfg.MaxCardinality = 1000
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		dispatchMetrics:    NewDispatchMetrics(cfg, registry),
		providerMetrics:    NewProviderMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxCardinality),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// model returns model, or "other" once the label set limit is reached.
func (c *Collector) model(provider, model string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("%s:%s", provider, model)) {
		return "other"
	}
	return model
}

// RecordRequest records a finished dispatch.
//
// Parameters:
//   - status: "success", "error" or "cancelled"
//   - retries: number of failed attempts that were retried
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration, retries int) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordRequest(provider, c.model(provider, model), status, duration, retries)
}

// RecordAttempt records one HTTP exchange and how it was classified
// ("success" or a providers.Kind label).
func (c *Collector) RecordAttempt(provider, model, outcome string, latency time.Duration) {
	if !c.enabled() {
		return
	}
	c.providerMetrics.RecordAttempt(provider, c.model(provider, model), outcome, latency)
}

// RecordRotation records a key rotation.
func (c *Collector) RecordRotation(provider, reason string) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordRotation(provider, reason)
}

// RecordCooldown records a rate limit cooldown with every key exhausted.
func (c *Collector) RecordCooldown(provider string) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordCooldown(provider)
}

// RecordTokens records token usage for a request.
func (c *Collector) RecordTokens(provider, model string, prompt, completion int, estimated bool) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordTokens(provider, c.model(provider, model), prompt, completion, estimated)
}

// SetAvailableKeys updates the number of non-exhausted keys for a provider.
func (c *Collector) SetAvailableKeys(provider string, available int) {
	if !c.enabled() {
		return
	}
	c.providerMetrics.SetAvailableKeys(provider, available)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
