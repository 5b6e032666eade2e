package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes aged invocation records on a cron schedule. A per-run
// mutex (TryLock, atomic) keeps a slow prune from stacking up with the
// next tick.
type Pruner struct {
	store    *Store
	logger   *slog.Logger
	schedule string
	keep     time.Duration
	now      func() time.Time

	running sync.Mutex
	cron    *cron.Cron
}

// NewPruner builds a pruner that keeps retentionDays of records and runs
// on the given five-field cron schedule.
func NewPruner(store *Store, schedule string, retentionDays int, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		logger:   logger,
		schedule: schedule,
		keep:     time.Duration(retentionDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Start begins scheduled pruning. Returns an error for an invalid schedule
// expression.
func (p *Pruner) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	p.cron = cron.New(cron.WithParser(parser))

	_, err := p.cron.AddFunc(p.schedule, func() {
		// TryLock is atomic: if the previous run is still going, skip
		// this tick instead of queueing behind it.
		if !p.running.TryLock() {
			p.logger.Warn("audit: prune still running, skipping tick")
			return
		}
		defer p.running.Unlock()
		p.runOnce()
	})
	if err != nil {
		return fmt.Errorf("audit: invalid prune schedule %q: %w", p.schedule, err)
	}

	p.cron.Start()
	p.logger.Info("audit: retention pruning scheduled",
		"schedule", p.schedule, "retention", p.keep)
	return nil
}

// Stop shuts the schedule down, waiting for an in-flight run.
func (p *Pruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *Pruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := p.now().Add(-p.keep)
	removed, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("audit: prune failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Info("audit: pruned invocation records", "removed", removed, "cutoff", cutoff)
	}
}
