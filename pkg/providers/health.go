package providers

import (
	"log/slog"
	"sync"
	"time"
)

// unhealthyThreshold is the number of consecutive failed exchanges after
// which an endpoint is reported as degraded.
const unhealthyThreshold = 3

// ClientStats tracks the outcome of HTTP exchanges with one provider endpoint.
// A failure is a transport error or a non-2xx status.
type ClientStats struct {
	// TotalRequests is the number of exchanges attempted
	TotalRequests int64

	// FailedRequests is the number of exchanges that failed
	FailedRequests int64

	// ConsecutiveFailures resets on the first success
	ConsecutiveFailures int

	// LastError is the most recent failure, if any
	LastError error

	// LastSuccess is the time of the most recent 2xx exchange
	LastSuccess time.Time
}

// Degraded reports whether the endpoint has failed several times in a row.
func (s ClientStats) Degraded() bool {
	return s.ConsecutiveFailures >= unhealthyThreshold
}

// statsTracker is the mutex-guarded owner of a ClientStats value.
type statsTracker struct {
	name  string
	mu    sync.RWMutex
	stats ClientStats
}

func (t *statsTracker) snapshot() ClientStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// record updates counters after an exchange.
func (t *statsTracker) record(success bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalRequests++
	if success {
		t.stats.ConsecutiveFailures = 0
		t.stats.LastError = nil
		t.stats.LastSuccess = time.Now()
		return
	}

	t.stats.FailedRequests++
	t.stats.ConsecutiveFailures++
	t.stats.LastError = err

	if t.stats.ConsecutiveFailures == unhealthyThreshold {
		slog.Warn("provider endpoint degraded",
			"provider", t.name,
			"consecutive_failures", t.stats.ConsecutiveFailures,
			"error", err,
		)
	}
}
