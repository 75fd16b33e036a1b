package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks individual HTTP exchanges with providers.
//
// Metrics:
//   - switchboard_dispatch_attempts_total: exchanges by classified outcome
//   - switchboard_dispatch_attempt_latency_seconds: single exchange latency
//   - switchboard_dispatch_available_keys: non-exhausted keys per provider
type ProviderMetrics struct {
	attempts      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	availableKeys *prometheus.GaugeVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg Config, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "attempts_total",
				Help:      "Total number of provider HTTP exchanges by classified outcome",
			},
			[]string{"provider", "model", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "attempt_latency_seconds",
				Help:      "Provider HTTP exchange latency in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		availableKeys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "available_keys",
				Help:      "Number of API keys not marked exhausted",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.attempts,
		pm.latency,
		pm.availableKeys,
	)

	return pm
}

// RecordAttempt records an exchange.
func (pm *ProviderMetrics) RecordAttempt(provider, model, outcome string, latency time.Duration) {
	pm.attempts.WithLabelValues(provider, model, outcome).Inc()
	pm.latency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// SetAvailableKeys updates the available key gauge.
func (pm *ProviderMetrics) SetAvailableKeys(provider string, available int) {
	pm.availableKeys.WithLabelValues(provider).Set(float64(available))
}
