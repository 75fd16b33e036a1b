package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a non-streaming response body is read.
const maxResponseBytes = 16 << 20

var (
	errRequestTimeout = errors.New("request timeout exceeded")
	errIdleTimeout    = errors.New("stream idle timeout exceeded")
)

// HTTPClient is the shared HTTP layer for provider adapters.
// It provides connection pooling, timeout handling and request statistics.
//
// It performs a single exchange per call. Concrete adapters embed it and
// supply the URL, body and headers for their wire format.
type HTTPClient struct {
	// config contains the provider configuration
	config ProviderConfig

	// client is the HTTP client with connection pooling
	client *http.Client

	stats *statsTracker
}

// NewHTTPClient creates a new HTTP client with connection pooling.
func NewHTTPClient(config ProviderConfig) *HTTPClient {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	// No client-level timeout: deadlines are per call and come from the context
	// so that streams can use an idle timeout instead.
	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport},
		stats:  &statsTracker{name: config.Name},
	}
}

// Name returns the provider's configured name.
func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Type returns the provider's adapter type.
func (c *HTTPClient) Type() string {
	return c.config.Type
}

// Config returns the provider's configuration.
func (c *HTTPClient) Config() ProviderConfig {
	return c.config
}

// Stats returns a snapshot of the request counters.
func (c *HTTPClient) Stats() ClientStats {
	return c.stats.snapshot()
}

// Close closes idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	slog.Debug("provider client closed", "provider", c.config.Name)
	return nil
}

// URL joins the configured base URL and a path.
func (c *HTTPClient) URL(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

// PostJSON performs one POST exchange and reads the whole response.
// timeout bounds the exchange when positive.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string, timeout time.Duration) (*RawResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, errRequestTimeout)
		defer cancel()
	}

	resp, err := c.do(ctx, url, body, headers, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		terr := c.transportError(ctx, fmt.Errorf("failed to read response: %w", err))
		c.stats.record(false, terr)
		return nil, terr
	}

	raw := &RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if raw.OK() {
		c.stats.record(true, nil)
	} else {
		c.stats.record(false, fmt.Errorf("status %d", resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				slog.Debug("provider sent retry-after",
					"provider", c.config.Name,
					"retry_after", ra,
				)
			}
		}
	}
	return raw, nil
}

// OpenSSE performs a streaming POST exchange and returns the open body.
// A non-2xx status is returned as *HTTPError. idle bounds the gap between
// received bytes when positive; the returned body must be closed.
func (c *HTTPClient) OpenSSE(ctx context.Context, url string, body []byte, headers map[string]string, idle time.Duration) (io.ReadCloser, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)

	var timer *time.Timer
	if idle > 0 {
		timer = time.AfterFunc(idle, func() { cancel(errIdleTimeout) })
	}
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
		cancel(nil)
	}

	resp, err := c.do(streamCtx, url, body, headers, true)
	if err != nil {
		stop()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		stop()
		herr := &HTTPError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Body:       data,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		c.stats.record(false, herr)
		return nil, herr
	}

	c.stats.record(true, nil)
	return &idleBody{
		ctx:      streamCtx,
		body:     resp.Body,
		timer:    timer,
		idle:     idle,
		stop:     stop,
		provider: c.config.Name,
	}, nil
}

// do sends the request and converts transport failures to *TransportError.
func (c *HTTPClient) do(ctx context.Context, url string, body []byte, headers map[string]string, stream bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: c.config.Name, Cause: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	slog.Debug("sending request to provider",
		"provider", c.config.Name,
		"url", url,
		"stream", stream,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		terr := c.transportError(ctx, err)
		c.stats.record(false, terr)
		return nil, terr
	}
	return resp, nil
}

// transportError wraps err, marking it as a timeout when one of this
// client's deadlines fired. A cancellation by the caller is kept as is
// so that errors.Is(err, context.Canceled) holds.
func (c *HTTPClient) transportError(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	timeout := errors.Is(cause, errRequestTimeout) || errors.Is(cause, errIdleTimeout)
	if !timeout {
		var netErr net.Error
		timeout = errors.As(err, &netErr) && netErr.Timeout()
	}
	return &TransportError{Provider: c.config.Name, Timeout: timeout, Cause: err}
}

// idleBody is a response body whose idle timer is reset on every read.
type idleBody struct {
	ctx      context.Context
	body     io.ReadCloser
	timer    *time.Timer
	idle     time.Duration
	stop     func()
	provider string
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 && b.timer != nil {
		b.timer.Reset(b.idle)
	}
	if err != nil && err != io.EOF {
		if errors.Is(context.Cause(b.ctx), errIdleTimeout) {
			return n, &TransportError{Provider: b.provider, Timeout: true, Cause: errIdleTimeout}
		}
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.stop()
	return b.body.Close()
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	// Try parsing as seconds
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

// RetryAfter returns the Retry-After duration advertised by a response.
func (r *RawResponse) RetryAfter() time.Duration {
	if r == nil || r.Header == nil {
		return 0
	}
	return parseRetryAfter(r.Header.Get("Retry-After"))
}
