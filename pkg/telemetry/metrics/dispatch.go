package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks request-level outcomes of the retry dispatcher.
//
// Metrics:
//   - switchboard_dispatch_requests_total: finished requests by status
//   - switchboard_dispatch_request_duration_seconds: end-to-end latency including retries
//   - switchboard_dispatch_retries: failed attempts retried per request
//   - switchboard_dispatch_key_rotations_total: key rotations by reason
//   - switchboard_dispatch_cooldowns_total: rate limit cooldowns with every key exhausted
//   - switchboard_dispatch_tokens_total: tokens by type (prompt, completion)
type DispatchMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.HistogramVec
	rotations *prometheus.CounterVec
	cooldowns *prometheus.CounterVec
	tokens    *prometheus.CounterVec
}

// NewDispatchMetrics creates and registers dispatch metrics with the provided registry.
func NewDispatchMetrics(cfg Config, registry *prometheus.Registry) *DispatchMetrics {
	dm := &DispatchMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by final status",
			},
			[]string{"provider", "model", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds, including retries and cooldowns",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model", "status"},
		),

		retries: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries",
				Help:      "Failed attempts that were retried per request",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"provider"},
		),

		rotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "key_rotations_total",
				Help:      "Total number of API key rotations by reason",
			},
			[]string{"provider", "reason"},
		),

		cooldowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cooldowns_total",
				Help:      "Total number of rate limit cooldowns after every key was exhausted",
			},
			[]string{"provider"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total tokens by type; estimated marks locally computed counts",
			},
			[]string{"provider", "model", "type", "estimated"},
		),
	}

	registry.MustRegister(
		dm.requests,
		dm.duration,
		dm.retries,
		dm.rotations,
		dm.cooldowns,
		dm.tokens,
	)

	return dm
}

// RecordRequest records a finished request.
func (dm *DispatchMetrics) RecordRequest(provider, model, status string, duration time.Duration, retries int) {
	dm.requests.WithLabelValues(provider, model, status).Inc()
	dm.duration.WithLabelValues(provider, model, status).Observe(duration.Seconds())
	dm.retries.WithLabelValues(provider).Observe(float64(retries))
}

// RecordRotation records a key rotation.
func (dm *DispatchMetrics) RecordRotation(provider, reason string) {
	dm.rotations.WithLabelValues(provider, reason).Inc()
}

// RecordCooldown records a cooldown.
func (dm *DispatchMetrics) RecordCooldown(provider string) {
	dm.cooldowns.WithLabelValues(provider).Inc()
}

// RecordTokens records prompt and completion tokens.
func (dm *DispatchMetrics) RecordTokens(provider, model string, prompt, completion int, estimated bool) {
	est := strconv.FormatBool(estimated)
	if prompt > 0 {
		dm.tokens.WithLabelValues(provider, model, "prompt", est).Add(float64(prompt))
	}
	if completion > 0 {
		dm.tokens.WithLabelValues(provider, model, "completion", est).Add(float64(completion))
	}
}
