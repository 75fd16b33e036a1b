package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected time.Duration
	}{
		{"default timeout", 0, DefaultCheckTimeout},
		{"negative timeout", -time.Second, DefaultCheckTimeout},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c := New(tt.timeout); c.timeout != tt.expected {
				t.Errorf("expected timeout %v, got %v", tt.expected, c.timeout)
			}
		})
	}
}

func TestChecker_RegisterUnregister(t *testing.T) {
	c := New(0)
	c.Register("usage", func(ctx context.Context) error { return nil })
	c.Register("keys", func(ctx context.Context) error { return nil })
	c.Register("keys", func(ctx context.Context) error { return errors.New("replaced") })

	names := c.Names()
	if len(names) != 2 || names[0] != "keys" || names[1] != "usage" {
		t.Errorf("expected [keys usage], got %v", names)
	}

	if got := c.Readiness(context.Background()).Checks["keys"].Message; got != "replaced" {
		t.Errorf("expected replaced check, got %q", got)
	}

	c.Unregister("keys")
	if names := c.Names(); len(names) != 1 {
		t.Errorf("expected 1 check, got %v", names)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		status string
	}{
		{
			name:   "no checks",
			checks: nil,
			status: StatusReady,
		},
		{
			name: "all pass",
			checks: map[string]CheckFunc{
				"keys":  func(ctx context.Context) error { return nil },
				"usage": func(ctx context.Context) error { return nil },
			},
			status: StatusReady,
		},
		{
			name: "one fails",
			checks: map[string]CheckFunc{
				"keys":  func(ctx context.Context) error { return errors.New("all keys exhausted: google") },
				"usage": func(ctx context.Context) error { return nil },
			},
			status: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.Register(name, check)
			}

			got := c.Readiness(context.Background())
			if got.Status != tt.status {
				t.Errorf("expected status %q, got %q", tt.status, got.Status)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(got.Checks))
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return nil
	})

	got := c.Readiness(context.Background())
	if got.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", got.Status)
	}
	if msg := got.Checks["slow"].Message; msg != "health check timeout" {
		t.Errorf("expected timeout message, got %q", msg)
	}
}

func TestChecker_Liveness(t *testing.T) {
	c := New(0)
	c.Register("broken", func(ctx context.Context) error { return errors.New("down") })

	if got := c.Liveness(); got.Status != StatusOK || len(got.Checks) != 0 {
		t.Errorf("expected ok without checks, got %+v", got)
	}
}

func TestReadinessHandler(t *testing.T) {
	c := New(time.Second)
	healthy := true
	c.Register("keys", func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("all keys exhausted: openrouter")
	})
	h := c.ReadinessHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Checks["keys"].Status != StatusUnhealthy {
		t.Errorf("expected unhealthy keys check, got %+v", status.Checks["keys"])
	}
}

func TestLivenessHandler_Head(t *testing.T) {
	rec := httptest.NewRecorder()
	New(0).LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for HEAD, got %q", rec.Body.String())
	}
}
