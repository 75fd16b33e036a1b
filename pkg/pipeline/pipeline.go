package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
	"mercator-hq/switchboard/pkg/tokens"
	"mercator-hq/switchboard/pkg/usage"
)

// Pipeline wraps a Dispatcher with timing, token accounting and the usage
// ledger. It makes no retry decisions of its own.
type Pipeline struct {
	dispatcher Dispatcher
	estimator  tokens.Estimator
	store      usage.Store
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEstimator replaces the default character-based estimator.
func WithEstimator(e tokens.Estimator) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.estimator = e
		}
	}
}

// WithStore writes a usage record for every finished request.
func WithStore(s usage.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithMetrics records token counts to collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.metrics = c
	}
}

// WithTracer opens one span per request.
func WithTracer(t *tracing.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline around d.
func New(d Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		dispatcher: d,
		estimator:  tokens.NewSimpleEstimator(tokens.DefaultConfig()),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

func (p *Pipeline) begin(ctx context.Context, req Request, streaming bool) (context.Context, *RequestContext, trace.Span) {
	rc := &RequestContext{
		ID:              uuid.New().String(),
		Origin:          req.Origin,
		SessionID:       req.SessionID,
		Provider:        req.Provider,
		Model:           req.Model,
		Streaming:       streaming,
		ThinkingEnabled: req.Thinking,
		StartTime:       p.now(),
	}
	if rc.Model == "" {
		rc.Model = p.dispatcher.DefaultModel(req.Provider)
	}

	ctx, span := p.tracer.Start(ctx, "switchboard.request", trace.WithSpanKind(trace.SpanKindClient))
	tracing.SetRequestAttributes(span, rc.ID, rc.Origin, rc.SessionID, streaming, req.Thinking)

	ctx = logging.WithRequestID(ctx, rc.ID)
	if req.SessionID != "" {
		ctx = logging.WithSession(ctx, req.SessionID)
	}
	return ctx, rc, span
}

// Call sends a non-streaming request. Usage the provider did not report is
// estimated from the prompt and the answer text.
//
// The returned error is the dispatch error, also recorded in the context.
func (p *Pipeline) Call(ctx context.Context, req Request) (*RequestContext, error) {
	ctx, rc, span := p.begin(ctx, req, false)

	resp, err := p.dispatcher.CallWithRetry(ctx, req.Request)
	rc.Elapsed = p.now().Sub(rc.StartTime)

	if err != nil {
		p.fail(rc, err)
	} else {
		rc.Model = resp.Model
		rc.Attempts = resp.Attempts
		rc.RetryCount = resp.Retries
		rc.ResponseText = resp.Text
		rc.ReasoningText = resp.Reasoning
		rc.ToolCalls = resp.ToolCalls

		if resp.Usage != nil {
			rc.setUsage(resp.Usage, false)
		} else {
			rc.setUsage(p.estimator.EstimateUsage(req.Messages, resp.Text+resp.Reasoning, rc.Model), true)
		}
	}

	p.finish(ctx, rc, span)
	return rc, err
}

// CallStream sends a streaming request, forwarding every event to emit.
// Token counts are recorded only when the provider reports them.
func (p *Pipeline) CallStream(ctx context.Context, req Request, emit dispatch.Emitter) *RequestContext {
	ctx, rc, span := p.begin(ctx, req, true)

	result := p.dispatcher.CallStreamUnified(ctx, req.Request, func(ev providers.StreamEvent) {
		if emit != nil {
			emit(ev)
		}
	})
	rc.Elapsed = p.now().Sub(rc.StartTime)

	if result.Model != "" {
		rc.Model = result.Model
	}
	rc.Attempts = result.Attempts
	rc.RetryCount = result.Retries
	rc.setUsage(result.Usage, false)
	if result.Err != nil {
		rc.PartialText = result.Text
		p.fail(rc, result.Err)
	} else {
		rc.ResponseText = result.Text
		rc.ReasoningText = result.Reasoning
		rc.ToolCalls = result.ToolCalls
	}

	p.finish(ctx, rc, span)
	return rc
}

func (p *Pipeline) fail(rc *RequestContext, err error) {
	rc.Err = err
	rc.Error = err.Error()

	var de *dispatch.Error
	if errors.As(err, &de) {
		rc.Attempts = de.Attempts
		rc.RetryCount = de.Retries
	}
}

func (p *Pipeline) finish(ctx context.Context, rc *RequestContext, span trace.Span) {
	status := usage.StatusSuccess
	switch {
	case rc.Err == nil:
	case dispatch.IsCancelled(rc.Err):
		status = usage.StatusCancelled
	default:
		status = usage.StatusError
	}

	tracing.SetProviderAttributes(span, rc.Provider, rc.Model)
	tracing.SetRetryAttributes(span, rc.Attempts, rc.RetryCount)
	if rc.TotalTokens > 0 {
		tracing.SetTokenAttributes(span, rc.InputTokens, rc.OutputTokens, rc.TotalTokens, rc.Estimated)
	}
	if rc.Err != nil {
		tracing.SetErrorAttributes(span, rc.Err, errorKind(rc.Err))
	} else {
		tracing.SetStatus(span, nil)
	}
	span.End()

	if rc.TotalTokens > 0 {
		p.metrics.RecordTokens(rc.Provider, rc.Model, rc.InputTokens, rc.OutputTokens, rc.Estimated)
	}

	p.logger.InfoContext(ctx, "request finished",
		"origin", rc.Origin,
		"provider", rc.Provider,
		"model", rc.Model,
		"streaming", rc.Streaming,
		"status", status,
		"elapsed", rc.Elapsed,
		"retries", rc.RetryCount,
		"input_tokens", rc.InputTokens,
		"output_tokens", rc.OutputTokens,
		"estimated", rc.Estimated,
	)

	if p.store == nil {
		return
	}
	record := &usage.Record{
		ID:               uuid.New().String(),
		RequestID:        rc.ID,
		Time:             rc.StartTime.Add(rc.Elapsed),
		Provider:         rc.Provider,
		Model:            rc.Model,
		Origin:           rc.Origin,
		Streaming:        rc.Streaming,
		Thinking:         rc.ThinkingEnabled,
		PromptTokens:     rc.InputTokens,
		CompletionTokens: rc.OutputTokens,
		TotalTokens:      rc.TotalTokens,
		Estimated:        rc.Estimated,
		Retries:          rc.RetryCount,
		Latency:          rc.Elapsed,
		Status:           status,
		Error:            rc.Error,
	}
	// the ledger write outlives a cancelled request
	if err := p.store.Store(context.WithoutCancel(ctx), record); err != nil {
		p.logger.WarnContext(ctx, "failed to record usage", "error", err)
	}
}

// errorKind is the failure class of a dispatch error.
func errorKind(err error) string {
	var de *dispatch.Error
	if errors.As(err, &de) {
		return de.Kind.String()
	}
	return ""
}
