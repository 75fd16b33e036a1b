package keypool

import (
	"context"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestPool_Empty(t *testing.T) {
	p := New("openrouter", nil, nil)

	if p.HasKeys() {
		t.Error("expected HasKeys() false for empty pool")
	}
	if _, ok := p.CurrentKey(); ok {
		t.Error("expected no current key for empty pool")
	}
	if _, ok := p.Rotate("test"); ok {
		t.Error("expected Rotate() to fail on empty pool")
	}
	if p.HasMoreKeys() {
		t.Error("expected HasMoreKeys() false for empty pool")
	}
}

func TestPool_DropsBlankKeys(t *testing.T) {
	p := New("openrouter", []string{"k1", "  ", "", "k2"}, nil)
	if p.KeyCount() != 2 {
		t.Errorf("expected 2 keys, got %d", p.KeyCount())
	}
}

func TestPool_RotateSequence(t *testing.T) {
	p := New("openrouter", []string{"k1", "k2", "k3"}, nil)

	key, ok := p.CurrentKey()
	if !ok || key != "k1" {
		t.Fatalf("expected k1, got %q (ok=%v)", key, ok)
	}

	key, ok = p.Rotate("invalid key")
	if !ok || key != "k2" {
		t.Fatalf("expected k2 after rotate, got %q (ok=%v)", key, ok)
	}
	if p.KeyNumber() != 2 {
		t.Errorf("expected key number 2, got %d", p.KeyNumber())
	}

	key, ok = p.Rotate("invalid key")
	if !ok || key != "k3" {
		t.Fatalf("expected k3 after rotate, got %q (ok=%v)", key, ok)
	}

	if _, ok = p.Rotate("invalid key"); ok {
		t.Fatal("expected rotate to fail once all keys are exhausted")
	}
	if p.HasMoreKeys() {
		t.Error("expected HasMoreKeys() false")
	}
	if _, ok := p.CurrentKey(); ok {
		t.Error("expected no current key when all are exhausted")
	}
}

func TestPool_SingleKeyRotate(t *testing.T) {
	p := New("google", []string{"only"}, nil)

	if _, ok := p.Rotate("rate limited"); ok {
		t.Fatal("expected rotate on a single key pool to report no more keys")
	}
	if p.HasMoreKeys() {
		t.Error("expected HasMoreKeys() false")
	}

	p.ResetExhausted()

	key, ok := p.CurrentKey()
	if !ok || key != "only" {
		t.Errorf("expected key to be usable after reset, got %q (ok=%v)", key, ok)
	}
}

func TestPool_RotateWrapsToEarlierKey(t *testing.T) {
	p := New("openrouter", []string{"k1", "k2", "k3"}, nil)

	p.Rotate("x") // k1 exhausted, current k2
	p.ResetExhausted()
	p.Rotate("x") // k2 exhausted, current k3

	key, ok := p.Rotate("x") // k3 exhausted, wraps to k1
	if !ok || key != "k1" {
		t.Errorf("expected wrap to k1, got %q (ok=%v)", key, ok)
	}
}

func TestPool_ResetKeepsCurrent(t *testing.T) {
	p := New("openrouter", []string{"k1", "k2"}, nil)
	p.Rotate("x")
	p.ResetExhausted()

	if p.KeyNumber() != 2 {
		t.Errorf("expected current key number 2 after reset, got %d", p.KeyNumber())
	}
	if !p.HasMoreKeys() {
		t.Error("expected HasMoreKeys() true after reset")
	}
}

func TestPool_RotateFromStaleIndex(t *testing.T) {
	p := New("openrouter", []string{"k1", "k2", "k3"}, nil)

	idx, _, _ := p.Current()

	// Two callers failed on k1.
	first, ok := p.RotateFrom(idx, "invalid key")
	if !ok || first != "k2" {
		t.Fatalf("expected k2, got %q", first)
	}
	second, ok := p.RotateFrom(idx, "invalid key")
	if !ok || second != "k2" {
		t.Fatalf("expected second rotation to stay on k2, got %q", second)
	}

	status := p.Status()
	if len(status.Exhausted) != 1 || status.Exhausted[0] != 1 {
		t.Errorf("expected only key 1 exhausted, got %v", status.Exhausted)
	}
}

func TestPool_ConcurrentRotation(t *testing.T) {
	p := New("openrouter", []string{"k1", "k2", "k3", "k4"}, nil)
	idx, _, _ := p.Current()

	g, _ := errgroup.WithContext(context.Background())
	var mu sync.Mutex
	landed := make(map[string]int)

	for i := 0; i < 32; i++ {
		g.Go(func() error {
			key, ok := p.RotateFrom(idx, "rate limited")
			if ok {
				mu.Lock()
				landed[key]++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if len(landed) != 1 || landed["k2"] != 32 {
		t.Errorf("expected every caller to land on k2, got %v", landed)
	}
	if got := p.Status().Available; got != 3 {
		t.Errorf("expected 3 available keys, got %d", got)
	}
}

func TestPool_ConcurrentReadersAndRotators(t *testing.T) {
	keys := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"}
	p := New("openrouter", keys, nil)

	g := new(errgroup.Group)
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				idx, _, ok := p.Current()
				if ok {
					p.RotateFrom(idx, "test")
				}
				if !p.HasMoreKeys() {
					p.ResetExhausted()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	s := p.Status()
	if s.CurrentKey < 1 || s.CurrentKey > len(keys) {
		t.Errorf("current key out of range: %d", s.CurrentKey)
	}
}

func TestPool_StatusMasksKeys(t *testing.T) {
	p := New("openrouter", []string{"sk-or-v1-abcdef123456"}, nil)
	s := p.Status()

	if s.Masked[0] == "sk-or-v1-abcdef123456" {
		t.Error("expected key to be masked in status")
	}
	if s.KeyCount != 1 || s.CurrentKey != 1 || s.Available != 1 {
		t.Errorf("unexpected status: %+v", s)
	}
}
