package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Everything lives under the "switchboard." namespace.
const (
	AttrProvider  = "switchboard.provider"
	AttrModel     = "switchboard.model"
	AttrRequestID = "switchboard.request_id"
	AttrOrigin    = "switchboard.origin"
	AttrSession   = "switchboard.session"
	AttrStreaming = "switchboard.streaming"
	AttrThinking  = "switchboard.thinking"

	AttrTokensPrompt     = "switchboard.tokens.prompt"
	AttrTokensCompletion = "switchboard.tokens.completion"
	AttrTokensTotal      = "switchboard.tokens.total"
	AttrTokensEstimated  = "switchboard.tokens.estimated"

	AttrAttempts   = "switchboard.attempts"
	AttrRetryCount = "switchboard.retry_count"
	AttrErrorKind  = "switchboard.error.kind"
)

// SetProviderAttributes records which provider and model served the span.
func SetProviderAttributes(span trace.Span, provider, model string) {
	span.SetAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
}

// SetRequestAttributes records the request labels. An empty session is
// left out.
func SetRequestAttributes(span trace.Span, requestID, origin, session string, streaming, thinking bool) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrOrigin, origin),
		attribute.Bool(AttrStreaming, streaming),
		attribute.Bool(AttrThinking, thinking),
	}
	if session != "" {
		attrs = append(attrs, attribute.String(AttrSession, session))
	}
	span.SetAttributes(attrs...)
}

// SetTokenAttributes records token counts.
func SetTokenAttributes(span trace.Span, prompt, completion, total int, estimated bool) {
	span.SetAttributes(
		attribute.Int(AttrTokensPrompt, prompt),
		attribute.Int(AttrTokensCompletion, completion),
		attribute.Int(AttrTokensTotal, total),
		attribute.Bool(AttrTokensEstimated, estimated),
	)
}

// SetRetryAttributes records how many exchanges the request took.
func SetRetryAttributes(span trace.Span, attempts, retries int) {
	span.SetAttributes(
		attribute.Int(AttrAttempts, attempts),
		attribute.Int(AttrRetryCount, retries),
	)
}

// SetErrorAttributes marks the span failed with err, labelled by the
// failure kind.
func SetErrorAttributes(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	if kind != "" {
		span.SetAttributes(attribute.String(AttrErrorKind, kind))
	}
	SetStatus(span, err)
}
