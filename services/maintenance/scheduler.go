package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/config"
)

const (
	// DefaultRetentionDays keeps request history for a month when the
	// configuration carries no usable horizon
	DefaultRetentionDays = 30

	// jobTimeout bounds one maintenance run
	jobTimeout = time.Minute
)

// RequestPruner deletes request rows older than a cutoff
type RequestPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheSweeper drops expired cached state, reporting whether it did
type CacheSweeper interface {
	SweepCache() bool
}

// Scheduler runs the gateway's periodic maintenance jobs: request
// retention and the provider load cache sweep.
type Scheduler struct {
	cron    *cron.Cron
	pruner  RequestPruner
	sweeper CacheSweeper
	cfg     config.MaintenanceConfig
	logger  *zap.Logger
}

// NewScheduler wires the retention and cache sweep jobs. Fails when a
// schedule expression does not parse.
func NewScheduler(cfg config.MaintenanceConfig, pruner RequestPruner, sweeper CacheSweeper, logger *zap.Logger) (*Scheduler, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}

	s := &Scheduler{
		cron:    cron.New(),
		pruner:  pruner,
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.RetentionSchedule, s.runRetention); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.RetentionSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.CacheSweepEvery, s.runCacheSweep); err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", cfg.CacheSweepEvery, err)
	}

	return s, nil
}

// Start begins running the scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started",
		zap.String("retention_schedule", s.cfg.RetentionSchedule),
		zap.Int("retention_days", s.cfg.RetentionDays),
		zap.String("cache_sweep", s.cfg.CacheSweepEvery))
}

// Stop halts scheduling and waits for any running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("request retention failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("old requests deleted",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}

func (s *Scheduler) runCacheSweep() {
	if s.sweeper.SweepCache() {
		s.logger.Debug("provider load cache swept")
	}
}
