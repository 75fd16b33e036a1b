package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/telemetry/logging"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "switchboard.yaml", yamlConfig)

	w, err := NewWatcher(path, 20*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Watch(ctx, func(cfg *Config) { reloaded <- cfg })

	// let the watcher register before writing
	time.Sleep(50 * time.Millisecond)

	// a broken file is ignored
	if err := os.WriteFile(path, []byte("dispatch: {max_retries: -1}"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	select {
	case cfg := <-reloaded:
		t.Fatalf("expected invalid config to be skipped, got %+v", cfg.Dispatch)
	default:
	}

	updated := strings.Replace(yamlConfig, "max_retries: 5", "max_retries: 8", 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Dispatch.MaxRetries != 8 {
			t.Errorf("expected max retries 8, got %d", cfg.Dispatch.MaxRetries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, "switchboard.yaml", yamlConfig)

	w, err := NewWatcher(path, 10*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	go w.Watch(context.Background(), func(cfg *Config) { reloaded <- cfg })
	time.Sleep(50 * time.Millisecond)

	other := strings.TrimSuffix(path, "switchboard.yaml") + "notes.txt"
	if err := os.WriteFile(other, []byte("hello"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-reloaded:
		t.Error("expected unrelated file to be ignored")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(writeConfig(t, "switchboard.yaml", yamlConfig), 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
