// Package metrics provides Prometheus metrics for the dispatch engine.
//
// # Metrics Categories
//
//   - Dispatch: requests by final status, end-to-end duration, retries per
//     request, key rotations by reason, cooldowns, tokens
//   - Provider: HTTP exchanges by classified outcome, exchange latency,
//     available keys per provider
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
//	engine, _ := dispatch.NewEngine(cfg, dispatch.WithMetrics(collector))
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.Handler())
//
// Provider/model label combinations are capped by a cardinality limiter;
// models past the cap are recorded as "other".
package metrics
