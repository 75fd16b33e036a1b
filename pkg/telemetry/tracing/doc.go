// Package tracing exports OpenTelemetry spans for dispatched requests.
//
// One span covers one logical request, from the first HTTP exchange to the
// last, however many keys were rotated through. Spans carry the provider,
// model, origin, token counts and retry counts as "switchboard.*"
// attributes, and are exported over OTLP gRPC.
//
// # Sampling
//
//   - always: trace every request
//   - never: trace nothing
//   - ratio: trace a fraction of requests, chosen by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(tracing.Config{
//	    Enabled:  true,
//	    Endpoint: "localhost:4317",
//	    Insecure: true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "switchboard.request")
//	defer span.End()
//
// A nil or disabled Tracer returns noop spans, so callers never need to
// check whether tracing is on.
package tracing
