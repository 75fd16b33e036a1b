package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(Config{Enabled: true}, nil)
}

func TestCollector_RecordRequest(t *testing.T) {
	c := newTestCollector()

	c.RecordRequest("openrouter", "gpt-4o", "success", 1500*time.Millisecond, 2)
	c.RecordRequest("openrouter", "gpt-4o", "error", time.Second, 5)

	got := testutil.ToFloat64(c.dispatchMetrics.requests.WithLabelValues("openrouter", "gpt-4o", "success"))
	if got != 1 {
		t.Errorf("expected 1 successful request, got %v", got)
	}
	if n := testutil.CollectAndCount(c.dispatchMetrics.duration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestCollector_RotationsAndCooldowns(t *testing.T) {
	c := newTestCollector()

	c.RecordRotation("google", "rate_limited")
	c.RecordRotation("google", "rate_limited")
	c.RecordRotation("google", "invalid_key")
	c.RecordCooldown("google")

	if got := testutil.ToFloat64(c.dispatchMetrics.rotations.WithLabelValues("google", "rate_limited")); got != 2 {
		t.Errorf("expected 2 rate limit rotations, got %v", got)
	}
	if got := testutil.ToFloat64(c.dispatchMetrics.cooldowns.WithLabelValues("google")); got != 1 {
		t.Errorf("expected 1 cooldown, got %v", got)
	}
}

func TestCollector_Tokens(t *testing.T) {
	c := newTestCollector()

	c.RecordTokens("openrouter", "m", 10, 20, false)
	c.RecordTokens("openrouter", "m", 5, 0, true)

	if got := testutil.ToFloat64(c.dispatchMetrics.tokens.WithLabelValues("openrouter", "m", "prompt", "false")); got != 10 {
		t.Errorf("expected 10 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(c.dispatchMetrics.tokens.WithLabelValues("openrouter", "m", "prompt", "true")); got != 5 {
		t.Errorf("expected 5 estimated prompt tokens, got %v", got)
	}
}

func TestCollector_AttemptsAndKeys(t *testing.T) {
	c := newTestCollector()

	c.RecordAttempt("openrouter", "m", "success", 200*time.Millisecond)
	c.RecordAttempt("openrouter", "m", "invalid_key", 50*time.Millisecond)
	c.SetAvailableKeys("openrouter", 2)

	if got := testutil.ToFloat64(c.providerMetrics.attempts.WithLabelValues("openrouter", "m", "invalid_key")); got != 1 {
		t.Errorf("expected 1 invalid_key attempt, got %v", got)
	}
	if got := testutil.ToFloat64(c.providerMetrics.availableKeys.WithLabelValues("openrouter")); got != 2 {
		t.Errorf("expected 2 available keys, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(Config{Enabled: false}, nil)
	c.RecordRotation("google", "rate_limited")

	if n := testutil.CollectAndCount(c.dispatchMetrics.rotations); n != 0 {
		t.Errorf("expected no series from disabled collector, got %d", n)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordRequest("p", "m", "success", time.Second, 0)
	c.RecordAttempt("p", "m", "success", time.Second)
	c.RecordRotation("p", "x")
	c.RecordCooldown("p")
	c.RecordTokens("p", "m", 1, 1, false)
	c.SetAvailableKeys("p", 1)
	if c.Registry() != nil {
		t.Error("expected nil registry from nil collector")
	}
}

func TestCollector_CardinalityLimit(t *testing.T) {
	c := NewCollector(Config{Enabled: true, MaxCardinality: 1}, nil)

	c.RecordAttempt("p", "model-a", "success", time.Millisecond)
	c.RecordAttempt("p", "model-b", "success", time.Millisecond)

	if got := testutil.ToFloat64(c.providerMetrics.attempts.WithLabelValues("p", "other", "success")); got != 1 {
		t.Errorf("expected overflow model to be recorded as other, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector()
	c.RecordRotation("google", "rate_limited")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "switchboard_dispatch_key_rotations_total") {
		t.Error("expected rotation metric in exposition output")
	}
}
