package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes ledger records older than a retention period, either on
// demand or on a cron schedule.
type Pruner struct {
	store         Store
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. retentionDays <= 0 keeps records forever.
func NewPruner(store Store, retentionDays int, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:         store,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With("component", "usage.pruner"),
	}
}

// Prune deletes records older than the retention period.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.now().AddDate(0, 0, -p.retentionDays)
	deleted, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune by age failed: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("pruned usage records",
			"deleted_count", deleted,
			"retention_days", p.retentionDays,
		)
	} else {
		p.logger.Debug("no usage records pruned", "retention_days", p.retentionDays)
	}
	return deleted, nil
}

// Start runs Prune on the cron schedule until ctx is done or Stop is called.
// An empty schedule or disabled retention does nothing.
func (p *Pruner) Start(ctx context.Context, schedule string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if schedule == "" || p.retentionDays <= 0 {
		p.logger.Debug("usage pruning not scheduled")
		return nil
	}
	if p.running {
		return fmt.Errorf("pruner already running")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("usage pruner started", "schedule", schedule, "retention_days", p.retentionDays)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil && p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("usage pruner stopped")
	}
}

// IsRunning returns true if the schedule is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
