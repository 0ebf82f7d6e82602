package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/config"
)

// SyncTicker starts a background drain when conditions allow.
type SyncTicker interface {
	Tick()
}

// ReferenceRefresher refreshes cached reference configuration.
type ReferenceRefresher interface {
	RefreshAll(ctx context.Context, businessIDs []string)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	ticker    SyncTicker
	reference ReferenceRefresher
	cfg       config.SyncConfig
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance. reference may be nil.
func NewScheduler(cfg config.SyncConfig, ticker SyncTicker, reference ReferenceRefresher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standard 5-field cron: min, hour, dom, month, dow.
	c := cron.New()

	return &Scheduler{
		cron:      c,
		ticker:    ticker,
		reference: reference,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("sync_schedule", s.cfg.CronSchedule),
		zap.String("reference_schedule", s.cfg.ReferenceCronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.tickSync); err != nil {
		return err
	}

	if s.reference != nil && len(s.cfg.BusinessIDs) > 0 {
		if _, err := s.cron.AddFunc(s.cfg.ReferenceCronSchedule, s.refreshReference); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tickSync() {
	s.logger.Debug("periodic sync tick")
	s.ticker.Tick()
}

func (s *Scheduler) refreshReference() {
	s.logger.Info("refreshing reference config", zap.Int("businesses", len(s.cfg.BusinessIDs)))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.reference.RefreshAll(ctx, s.cfg.BusinessIDs)
}
