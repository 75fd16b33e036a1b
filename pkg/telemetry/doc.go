// Package telemetry groups the observability packages used by switchboard.
//
//   - logging: slog construction and request-scoped context fields
//   - metrics: Prometheus collectors for dispatch, keys and tokens
//   - tracing: OpenTelemetry spans, one per dispatched request
//   - health: readiness checks served by the status server
//
// Each subpackage accepts a nil receiver where that keeps call sites free
// of "is it enabled" checks.
package telemetry
