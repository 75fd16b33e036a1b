package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
)

const bodyPreviewLen = 200

// attemptLoop is the key rotation and retry state shared by the
// non-streaming and streaming paths for one logical request.
type attemptLoop struct {
	e        *Engine
	p        *provider
	model    string
	settings Settings
	logger   *slog.Logger

	maxAttempts int
	attempts    int
	retries     int

	lastKind  providers.Kind
	lastCause error
}

func (e *Engine) newAttemptLoop(p *provider, model string) *attemptLoop {
	settings := e.Settings()
	return &attemptLoop{
		e:           e,
		p:           p,
		model:       model,
		settings:    settings,
		logger:      e.logger.With("provider", p.name, "model", model),
		maxAttempts: settings.MaxAttempts(p.pool.KeyCount()),
	}
}

// begin fails fast on an empty pool and clears marks left behind by earlier
// calls when no key is usable, so every call gets a fresh pass over the keys.
func (l *attemptLoop) begin(ctx context.Context) *Error {
	pool := l.p.pool
	if !pool.HasKeys() {
		l.logger.ErrorContext(ctx, "no API key configured")
		return l.terminal(providers.KindFatal, msgNoKey, nil)
	}
	if !pool.HasMoreKeys() {
		l.logger.InfoContext(ctx, "all keys exhausted at call start, resetting marks")
		pool.ResetExhausted()
	}
	return nil
}

// acquireKey returns the key for the next attempt. A pool emptied by a
// concurrent caller is reset rather than failing this caller.
func (l *attemptLoop) acquireKey(ctx context.Context) (int, string, *Error) {
	idx, key, ok := l.p.pool.Current()
	if !ok && l.p.pool.HasKeys() {
		l.p.pool.ResetExhausted()
		idx, key, ok = l.p.pool.Current()
	}
	if !ok {
		l.logger.ErrorContext(ctx, "no API key available")
		return 0, "", l.terminal(providers.KindFatal, msgNoKey, nil)
	}
	return idx, key, nil
}

// cancelled reports a cancelled context as a terminal error.
func (l *attemptLoop) cancelled(ctx context.Context) *Error {
	if ctx.Err() == nil {
		return nil
	}
	l.logger.InfoContext(ctx, "request cancelled", "attempts", l.attempts)
	return l.terminal(providers.KindNone, msgCancelled, context.Cause(ctx))
}

// fail applies the retry policy to a failed attempt made with the key at
// keyIdx. It returns nil when the loop should continue.
func (l *attemptLoop) fail(ctx context.Context, attempt, keyIdx int, kind providers.Kind, cause error) *Error {
	l.lastKind, l.lastCause = kind, cause
	final := attempt >= l.maxAttempts
	pool := l.p.pool
	delay := l.settings.RetryDelay

	switch kind {
	case providers.KindFatal:
		l.logger.ErrorContext(ctx, "request cannot be sent", "error", cause)
		return l.terminal(kind, cause.Error(), cause)

	case providers.KindInvalidKey, providers.KindInsufficientCredits:
		reason := rotationReason(kind)
		l.logger.WarnContext(ctx, "key rejected",
			"key_number", keyIdx+1,
			"reason", reason,
			"error", cause,
		)
		_, more := pool.RotateFrom(keyIdx, reason)
		l.rotated(reason)
		if !more {
			msg := msgAllInvalid
			if kind == providers.KindInsufficientCredits {
				msg = msgAllNoCredits
			}
			return l.terminal(kind, msg, cause)
		}
		delay = 0

	case providers.KindRateLimited:
		reason := rotationReason(kind)
		l.logger.WarnContext(ctx, "rate limited",
			"key_number", keyIdx+1,
			"retry_after", retryAfter(cause),
		)
		_, more := pool.RotateFrom(keyIdx, reason)
		l.rotated(reason)
		if more {
			delay = min(delay, maxRotationDelay)
		} else {
			delay *= 2
			l.logger.WarnContext(ctx, "all keys rate limited, cooling down",
				"cooldown", delay,
				"key_count", pool.KeyCount(),
			)
			if !final {
				if err := l.pause(ctx, delay); err != nil {
					return err
				}
			}
			pool.ResetExhausted()
			l.e.metrics.RecordCooldown(l.p.name)
			l.e.metrics.SetAvailableKeys(l.p.name, pool.Status().Available)
			delay = 0
		}

	case providers.KindTransient:
		var terr *providers.TransportError
		if errors.As(cause, &terr) && terr.Timeout {
			l.logger.WarnContext(ctx, "request timed out", "attempt", attempt, "timeout", l.settings.RequestTimeout)
		} else {
			l.logger.WarnContext(ctx, "request failed", "attempt", attempt, "error", cause)
		}

	default:
		l.logger.WarnContext(ctx, "attempt failed",
			"attempt", attempt,
			"kind", kind.String(),
			"error", cause,
		)
	}

	if final {
		return nil
	}
	if !kind.RotatesKey() {
		l.retries++
	}
	if delay > 0 {
		return l.pause(ctx, delay)
	}
	return nil
}

func (l *attemptLoop) pause(ctx context.Context, d time.Duration) *Error {
	if err := l.e.sleep(ctx, d); err != nil {
		return l.cancelled(ctx)
	}
	return nil
}

// rotated counts a rotation as a retry, including one that ends the call.
func (l *attemptLoop) rotated(reason string) {
	l.retries++
	l.e.metrics.RecordRotation(l.p.name, reason)
	l.e.metrics.SetAvailableKeys(l.p.name, l.p.pool.Status().Available)
}

// exhausted is the error after every attempt failed.
func (l *attemptLoop) exhausted(ctx context.Context) *Error {
	l.logger.ErrorContext(ctx, "all attempts failed",
		"attempts", l.attempts,
		"last_kind", l.lastKind.String(),
	)
	return l.terminal(l.lastKind, fmt.Sprintf("All %d attempts failed", l.maxAttempts), l.lastCause)
}

func (l *attemptLoop) terminal(kind providers.Kind, msg string, cause error) *Error {
	return &Error{
		Provider: l.p.name,
		Kind:     kind,
		Message:  msg,
		Attempts: l.attempts,
		Retries:  l.retries,
		Cause:    cause,
	}
}

func (l *attemptLoop) call(key string, req Request, stream bool) *providers.Call {
	return &providers.Call{
		Key:      key,
		Model:    l.model,
		Messages: req.Messages,
		Params:   req.Params,
		Thinking: req.Thinking,
		Stream:   stream,
		Timeout:  l.settings.RequestTimeout,
	}
}

// requestStatus is the metrics label for a finished request.
func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsCancelled(err):
		return "cancelled"
	default:
		return "error"
	}
}

func rotationReason(kind providers.Kind) string {
	switch kind {
	case providers.KindInvalidKey:
		return "(invalid key)"
	case providers.KindInsufficientCredits:
		return "(insufficient credits)"
	case providers.KindRateLimited:
		return "(rate limited)"
	default:
		return "(" + kind.String() + ")"
	}
}

func retryAfter(err error) time.Duration {
	var herr *providers.HTTPError
	if errors.As(err, &herr) {
		return herr.RetryAfter
	}
	return 0
}

// responseError turns a non-2xx or contentless response into an error value
// for logs and Error.Cause.
func responseError(provider string, raw *providers.RawResponse) error {
	if raw.OK() {
		return &providers.ParseError{
			Provider:    provider,
			RawResponse: raw.BodyPreview(bodyPreviewLen),
			Cause:       errors.New("response has no extractable content"),
		}
	}
	return &providers.HTTPError{
		Provider:   provider,
		StatusCode: raw.StatusCode,
		Body:       []byte(raw.BodyPreview(bodyPreviewLen)),
		RetryAfter: raw.RetryAfter(),
	}
}

// CallWithRetry sends a request, rotating keys and retrying until a response
// with content arrives or the attempt budget is spent.
//
// At most MaxRetries * max(1, keyCount) HTTP exchanges are made. Invalid keys
// and keys without credit are rotated away immediately; rate limits rotate and
// pause, cooling down for twice the retry delay once every key is limited.
// The returned error is always a *Error.
func (e *Engine) CallWithRetry(ctx context.Context, req Request) (*Response, error) {
	p, model, lerr := e.lookup(req)
	if lerr != nil {
		return nil, lerr
	}
	ctx = logging.WithModel(logging.WithProvider(ctx, p.name), model)

	start := time.Now()
	resp, derr := e.callWithRetry(ctx, p, model, req)
	if derr != nil {
		e.metrics.RecordRequest(p.name, model, requestStatus(derr), time.Since(start), derr.Retries)
		return nil, derr
	}
	e.metrics.RecordRequest(p.name, model, "success", time.Since(start), resp.Retries)
	return resp, nil
}

func (e *Engine) callWithRetry(ctx context.Context, p *provider, model string, req Request) (*Response, *Error) {
	l := e.newAttemptLoop(p, model)
	if err := l.begin(ctx); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := l.cancelled(ctx); err != nil {
			return nil, err
		}
		keyIdx, key, kerr := l.acquireKey(ctx)
		if kerr != nil {
			return nil, kerr
		}

		l.attempts++
		l.logger.DebugContext(ctx, "sending request",
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"key_number", keyIdx+1,
		)

		started := time.Now()
		raw, err := p.adapter.Send(ctx, l.call(key, req, false))
		latency := time.Since(started)

		var (
			kind  providers.Kind
			cause error
		)
		switch {
		case err != nil:
			if cerr := l.cancelled(ctx); cerr != nil {
				return nil, cerr
			}
			kind, cause = providers.ClassifyError(err), err
		case raw.OK():
			if result, ok := p.adapter.ExtractResult(raw); ok {
				e.metrics.RecordAttempt(p.name, model, "success", latency)
				l.logger.InfoContext(ctx, "request succeeded",
					"attempt", attempt,
					"key_number", keyIdx+1,
					"latency", latency,
				)
				return &Response{
					Text:      result.Text,
					Reasoning: result.Reasoning,
					ToolCalls: result.ToolCalls,
					Usage:     result.Usage,
					Provider:  p.name,
					Model:     model,
					Attempts:  l.attempts,
					Retries:   l.retries,
				}, nil
			}
			kind, cause = providers.KindMalformedResponse, responseError(p.name, raw)
		default:
			kind, cause = providers.ClassifyResponse(raw.StatusCode, raw.Body), responseError(p.name, raw)
			l.logger.WarnContext(ctx, "provider returned error status",
				"status", raw.StatusCode,
				"body", raw.BodyPreview(bodyPreviewLen),
			)
		}

		e.metrics.RecordAttempt(p.name, model, kind.String(), latency)
		if ferr := l.fail(ctx, attempt, keyIdx, kind, cause); ferr != nil {
			return nil, ferr
		}
	}

	return nil, l.exhausted(ctx)
}
