package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/telemetry/logging"
)

// terminalGrace is how long a cancelled stream still tries to deliver its
// terminal event to a reader that has not called Close.
const terminalGrace = time.Second

// StreamResult is the aggregate of one streamed request.
//
// Text is the concatenation of every Text event delta and Reasoning the
// concatenation of every Thinking event delta, including when the stream ended
// in an error after partial output.
type StreamResult struct {
	Text      string
	Reasoning string
	ToolCalls []providers.ToolCall

	// Usage is set only when the provider reported it
	Usage *providers.TokenUsage

	Provider string
	Model    string
	Attempts int
	Retries  int

	// Err is the *Error that ended the stream, or nil on success
	Err error
}

// Emitter receives stream events in order. It is called from the goroutine
// running the request.
type Emitter func(providers.StreamEvent)

// CallStreamUnified streams a request through the same rotation and retry
// policy as CallWithRetry, delivering canonical events to emit as they arrive.
//
// A failure before any content was emitted is retried transparently with the
// next key. A failure after content was emitted is never retried, since the
// caller has already seen partial output; the stream ends with an Error event
// naming the cause. Exactly one terminal event (Done or Error) is emitted.
func (e *Engine) CallStreamUnified(ctx context.Context, req Request, emit Emitter) (res *StreamResult) {
	s := &streamRun{emit: emit}
	res = &StreamResult{Provider: req.Provider}

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "stream panicked", "provider", req.Provider, "panic", r)
			err := &Error{
				Provider: req.Provider,
				Kind:     providers.KindFatal,
				Message:  fmt.Sprintf("internal error: %v", r),
			}
			s.fill(res)
			res.Err = err
			s.send(providers.StreamEvent{Type: providers.EventError, Message: err.Message})
		}
	}()

	p, model, lerr := e.lookup(req)
	if lerr != nil {
		res.Err = lerr
		s.send(providers.StreamEvent{Type: providers.EventError, Message: lerr.Error()})
		return res
	}
	ctx = logging.WithModel(logging.WithProvider(ctx, p.name), model)

	start := time.Now()
	l := e.newAttemptLoop(p, model)
	derr := e.streamWithRetry(ctx, l, req, s)

	s.fill(res)
	res.Model = model
	res.Attempts, res.Retries = l.attempts, l.retries

	status := "success"
	if derr != nil {
		res.Err = derr
		status = requestStatus(derr)
		s.send(providers.StreamEvent{Type: providers.EventError, Message: derr.Message})
	} else {
		if res.Usage != nil {
			s.send(providers.StreamEvent{Type: providers.EventUsage, Usage: res.Usage})
		}
		s.send(providers.StreamEvent{Type: providers.EventDone})
	}
	e.metrics.RecordRequest(p.name, model, status, time.Since(start), l.retries)
	return res
}

// streamRun accumulates what was emitted to the caller.
type streamRun struct {
	emit     Emitter
	terminal bool

	text      strings.Builder
	reasoning strings.Builder
	toolCalls []providers.ToolCall
	usage     *providers.TokenUsage

	// committed is set once any content event reached the caller
	committed bool
}

func (s *streamRun) send(ev providers.StreamEvent) {
	if s.terminal {
		return
	}
	if ev.Terminal() {
		s.terminal = true
	}
	if s.emit != nil {
		s.emit(ev)
	}
}

func (s *streamRun) deliver(chunk *providers.Chunk) {
	if chunk.Thinking != "" {
		s.reasoning.WriteString(chunk.Thinking)
		s.committed = true
		s.send(providers.StreamEvent{Type: providers.EventThinking, Delta: chunk.Thinking})
	}
	if chunk.Text != "" {
		s.text.WriteString(chunk.Text)
		s.committed = true
		s.send(providers.StreamEvent{Type: providers.EventText, Delta: chunk.Text})
	}
	if len(chunk.ToolCalls) > 0 {
		s.toolCalls = append(s.toolCalls, chunk.ToolCalls...)
		s.committed = true
		s.send(providers.StreamEvent{Type: providers.EventToolCalls, ToolCalls: chunk.ToolCalls})
	}
	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}
}

func (s *streamRun) fill(res *StreamResult) {
	res.Text = s.text.String()
	res.Reasoning = s.reasoning.String()
	res.ToolCalls = s.toolCalls
	res.Usage = s.usage
}

func (e *Engine) streamWithRetry(ctx context.Context, l *attemptLoop, req Request, s *streamRun) *Error {
	if err := l.begin(ctx); err != nil {
		return err
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := l.cancelled(ctx); err != nil {
			return err
		}
		keyIdx, key, kerr := l.acquireKey(ctx)
		if kerr != nil {
			return kerr
		}

		l.attempts++
		l.logger.DebugContext(ctx, "opening stream",
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"key_number", keyIdx+1,
		)

		started := time.Now()
		kind, cause := e.streamAttempt(ctx, l, key, req, s)
		e.metrics.RecordAttempt(l.p.name, l.model, outcome(kind), time.Since(started))

		if kind == providers.KindNone {
			l.logger.InfoContext(ctx, "stream completed",
				"attempt", attempt,
				"key_number", keyIdx+1,
				"chars", s.text.Len(),
			)
			return nil
		}
		if cerr := l.cancelled(ctx); cerr != nil {
			return cerr
		}

		if s.committed {
			return l.interrupted(ctx, keyIdx, kind, cause)
		}
		if ferr := l.fail(ctx, attempt, keyIdx, kind, cause); ferr != nil {
			return ferr
		}
	}

	return l.exhausted(ctx)
}

// streamAttempt runs one HTTP stream to completion. It returns KindNone when
// the stream ended normally with text or tool calls.
func (e *Engine) streamAttempt(ctx context.Context, l *attemptLoop, key string, req Request, s *streamRun) (providers.Kind, error) {
	reader, err := l.p.adapter.OpenStream(ctx, l.call(key, req, true))
	if err != nil {
		var herr *providers.HTTPError
		if errors.As(err, &herr) {
			l.logger.WarnContext(ctx, "provider returned error status",
				"status", herr.StatusCode,
				"body", providers.Truncate(string(herr.Body), bodyPreviewLen),
			)
		}
		return providers.ClassifyError(err), err
	}
	defer reader.Close()

	// usage from an attempt that produced no content is discarded
	s.usage = nil

	for {
		chunk, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return providers.ClassifyError(err), err
		}
		s.deliver(chunk)
	}

	// reasoning alone is not an answer
	if s.text.Len() == 0 && len(s.toolCalls) == 0 {
		return providers.KindMalformedResponse, &providers.ParseError{
			Provider: l.p.name,
			Cause:    errors.New("stream ended without content"),
		}
	}
	return providers.KindNone, nil
}

// interrupted ends a stream that already delivered content. The failed key is
// still rotated away so the next request does not reuse it.
func (l *attemptLoop) interrupted(ctx context.Context, keyIdx int, kind providers.Kind, cause error) *Error {
	l.lastKind, l.lastCause = kind, cause
	if kind.RotatesKey() {
		reason := rotationReason(kind)
		l.p.pool.RotateFrom(keyIdx, reason)
		l.rotated(reason)
	}
	l.logger.WarnContext(ctx, "stream interrupted after partial output",
		"key_number", keyIdx+1,
		"kind", kind.String(),
		"error", cause,
	)
	return l.terminal(kind, "Stream interrupted: "+describe(kind, cause), cause)
}

func describe(kind providers.Kind, cause error) string {
	switch kind {
	case providers.KindInvalidKey:
		return "invalid API key"
	case providers.KindInsufficientCredits:
		return "insufficient credits"
	case providers.KindRateLimited:
		return "rate limited"
	case providers.KindTransient:
		var terr *providers.TransportError
		if errors.As(cause, &terr) && terr.Timeout {
			return "timed out waiting for data"
		}
		return "connection lost"
	case providers.KindMalformedResponse:
		return "malformed data from provider"
	default:
		if cause != nil {
			return cause.Error()
		}
		return kind.String()
	}
}

func outcome(kind providers.Kind) string {
	if kind == providers.KindNone {
		return "success"
	}
	return kind.String()
}

// Stream is a running streamed request. Events are delivered on a channel
// that is closed after the terminal event. A Stream cannot be restarted.
type Stream struct {
	events chan providers.StreamEvent
	done   chan struct{}
	exited chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	result *StreamResult
}

// Stream starts the request on its own goroutine and returns immediately.
//
// The caller must drain Events until it is closed or call Close. Cancelling
// ctx stops the request; the terminal Error event is still delivered if the
// caller keeps reading.
func (e *Engine) Stream(ctx context.Context, req Request) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan providers.StreamEvent),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.exited)
		defer close(s.events)
		defer cancel()
		s.result = e.CallStreamUnified(ctx, req, func(ev providers.StreamEvent) {
			s.publish(ctx, ev)
		})
	}()
	return s
}

func (s *Stream) publish(ctx context.Context, ev providers.StreamEvent) {
	select {
	case s.events <- ev:
		return
	case <-s.done:
		return
	case <-ctx.Done():
	}
	if !ev.Terminal() {
		return
	}

	timer := time.NewTimer(terminalGrace)
	defer timer.Stop()
	select {
	case s.events <- ev:
	case <-s.done:
	case <-timer.C:
	}
}

// Events returns the event channel.
func (s *Stream) Events() <-chan providers.StreamEvent {
	return s.events
}

// Close stops the request and releases the goroutine. Events not yet read
// are dropped. Close is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// Wait blocks until the request goroutine exits and returns its result.
func (s *Stream) Wait() *StreamResult {
	<-s.exited
	return s.result
}

// Collect drains the stream and returns its result.
func (s *Stream) Collect() *StreamResult {
	for range s.events {
	}
	return s.Wait()
}
