package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/prooftamil/ime-gateway/internal/config"
	"github.com/prooftamil/ime-gateway/internal/ratelimit"
	"github.com/prooftamil/ime-gateway/internal/storage"
)

// retentionScheduler prunes the usage ledger on a cron schedule.
type retentionScheduler struct {
	usage  storage.UsageStore
	cfg    config.UsageConfig
	clock  ratelimit.Clock
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

func newRetentionScheduler(usage storage.UsageStore, cfg config.UsageConfig, clock ratelimit.Clock, logger *slog.Logger) *retentionScheduler {
	return &retentionScheduler{
		usage:  usage,
		cfg:    cfg,
		clock:  clock,
		cron:   cron.New(),
		logger: logger.With(slog.String("component", "usage.retention")),
	}
}

// Start schedules pruning until ctx is cancelled. It does nothing when
// retention or the schedule is unset.
func (s *retentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Retention <= 0 || s.cfg.PruneSchedule == "" {
		s.logger.Debug("usage retention disabled")
		return nil
	}

	if _, err := cron.ParseStandard(s.cfg.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.cfg.PruneSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, func() { s.prune(ctx) }); err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("usage retention scheduled",
		slog.String("schedule", s.cfg.PruneSchedule),
		slog.Duration("retention", s.cfg.Retention))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *retentionScheduler) prune(ctx context.Context) int64 {
	cutoff := s.clock.Now().Add(-s.cfg.Retention)
	removed, err := s.usage.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("usage pruning failed", slog.String("error", err.Error()))
		return 0
	}
	if removed > 0 {
		s.logger.Info("usage pruned", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	}
	return removed
}

// Stop halts the schedule and waits for a running prune to finish.
func (s *retentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}
