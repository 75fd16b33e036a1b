package keypool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ResetScheduler clears exhausted marks on a cron schedule, per provider.
// Providers whose credits or quotas renew daily use it to bring keys back
// without restarting.
type ResetScheduler struct {
	registry *Registry
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	jobs     map[string]cron.EntryID
}

// NewResetScheduler creates a scheduler for the pools in registry.
func NewResetScheduler(registry *Registry, logger *slog.Logger) *ResetScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetScheduler{
		registry: registry,
		cron:     cron.New(),
		logger:   logger.With("component", "keypool.scheduler"),
		jobs:     make(map[string]cron.EntryID),
	}
}

// Schedule registers a reset for provider using a standard cron expression.
//
// Common cron expressions:
//   - "0 0 * * *"    - Daily at midnight
//   - "0 */6 * * *"  - Every 6 hours
//   - "@hourly"      - Every hour
//
// An empty spec is a no-op.
func (s *ResetScheduler) Schedule(provider, spec string) error {
	if spec == "" {
		return nil
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q for provider %q: %w", spec, provider, err)
	}
	if _, ok := s.registry.Get(provider); !ok {
		return fmt.Errorf("no key pool for provider %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[provider]; ok {
		s.cron.Remove(id)
	}

	id, err := s.cron.AddFunc(spec, func() { s.reset(provider) })
	if err != nil {
		return fmt.Errorf("failed to schedule key reset: %w", err)
	}
	s.jobs[provider] = id

	s.logger.Info("key reset scheduled", "provider", provider, "schedule", spec)
	return nil
}

func (s *ResetScheduler) reset(provider string) {
	pool, ok := s.registry.Get(provider)
	if !ok {
		return
	}
	s.logger.Info("scheduled key reset", "provider", provider)
	pool.ResetExhausted()
}

// Start runs the schedule until ctx is cancelled or Stop is called.
func (s *ResetScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for any running reset to complete.
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("key reset scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *ResetScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled reset for provider.
func (s *ResetScheduler) NextRun(provider string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[provider]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}
