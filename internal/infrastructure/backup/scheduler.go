package backup

import (
	"context"
	"sync"
	"time"

	"vidtube/pkg/backup"

	"go.uber.org/zap"
)

// Runner is the part of backup.Service the scheduler drives.
type Runner interface {
	Create(ctx context.Context) (string, error)
	Prune(ctx context.Context, retention time.Duration) ([]string, error)
}

var _ Runner = (*backup.Service)(nil)

// Scheduler takes a backup on start and then every interval, pruning old
// backups after each run.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	retention time.Duration
	logger    *zap.SugaredLogger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

func NewScheduler(runner Runner, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		runner:    runner,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scheduler) runBackup(ctx context.Context) {
	start := time.Now()
	name, err := s.runner.Create(ctx)
	if err != nil {
		s.logger.Errorw("scheduled backup failed", "error", err)
		return
	}
	s.logger.Infow("backup created",
		"backup_name", name,
		"duration", time.Since(start),
	)

	if s.retention <= 0 {
		return
	}
	deleted, err := s.runner.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Warnw("failed to prune old backups", "error", err)
	}
	for _, name := range deleted {
		s.logger.Infow("deleted old backup", "backup_name", name)
	}
}
