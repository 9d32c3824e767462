package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type sessionPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionJanitor periodically deletes expired and revoked refresh tokens.
type SessionJanitor struct {
	repo     sessionPurger
	metrics  *MetricsService
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSessionJanitor builds a janitor running on the given cron schedule
// (for example "@every 1h").
func NewSessionJanitor(repo sessionPurger, metrics *MetricsService, logger *zap.Logger, schedule string) *SessionJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@every 1h"
	}
	return &SessionJanitor{
		repo:     repo,
		metrics:  metrics,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the purge job and starts the scheduler.
func (j *SessionJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(runCtx); err != nil {
			j.logger.Warn("session purge failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule session janitor: %w", err)
	}

	j.cancel = cancel
	j.cron.Start()
	j.logger.Info("session janitor started", zap.String("schedule", j.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish.
func (j *SessionJanitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	<-j.cron.Stop().Done()
	cancel()
}

// RunOnce purges tokens that expired before now.
func (j *SessionJanitor) RunOnce(ctx context.Context) (int64, error) {
	removed, err := j.repo.PurgeExpiredRefreshTokens(ctx, j.now())
	if err != nil {
		return 0, err
	}
	j.metrics.RecordSessionsPurged(removed)
	if removed > 0 {
		j.logger.Info("expired sessions purged", zap.Int64("count", removed))
	}
	return removed, nil
}
