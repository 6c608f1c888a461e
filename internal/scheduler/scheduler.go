package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/config"
	"github.com/vibework/reportbot/internal/repository/sheets"
	"github.com/vibework/reportbot/internal/service/reference"
	"github.com/vibework/reportbot/internal/service/syncengine"
)

// Scheduler manages the periodic background tasks: the reference catalog
// refresh and the spreadsheet connectivity probe that drives the sync
// engine's online state.
type Scheduler struct {
	cron      *cron.Cron
	reference *reference.Service
	engine    *syncengine.Engine
	sheets    sheets.Repository
	cfg       config.Config
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance in the configured timezone.
func NewScheduler(cfg config.Config, ref *reference.Service, engine *syncengine.Engine, repo sheets.Repository, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Scheduler.Timezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(location)),
		reference: ref,
		engine:    engine,
		sheets:    repo,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start registers the tasks and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.Duration("refresh_interval", s.cfg.Reference.RefreshInterval),
		zap.String("probe_schedule", s.cfg.Scheduler.ProbeSchedule))

	refreshSpec := fmt.Sprintf("@every %s", s.cfg.Reference.RefreshInterval)
	if _, err := s.cron.AddFunc(refreshSpec, s.refreshReference); err != nil {
		return fmt.Errorf("failed to schedule reference refresh: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Scheduler.ProbeSchedule, s.probeConnectivity); err != nil {
		return fmt.Errorf("failed to schedule connectivity probe: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshReference() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.reference.Refresh(ctx); err != nil {
		s.logger.Warn("reference refresh failed, serving cached snapshot", zap.Error(err))
		return
	}
	s.logger.Info("reference snapshot refreshed")
}

// probeConnectivity performs a cheap spreadsheet read and feeds the result to
// the sync engine. An offline-to-online transition triggers a drain there.
func (s *Scheduler) probeConnectivity() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.sheets.Ping(ctx)
	if err != nil {
		s.logger.Warn("connectivity probe failed", zap.Error(err))
	}
	s.engine.SetOnline(ctx, err == nil)
}
