// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package configures Go's standard log/slog package:
//   - JSON or text output at a configurable level
//   - Automatic masking of API keys (sk-..., AIza..., bearer tokens, ?key=)
//   - Context fields (request_id, provider, model, session) added to
//     every record logged with a *Context method
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "dispatching",
//	    "api_key", key, // masked
//	    "attempt", 1,
//	)
package logging
