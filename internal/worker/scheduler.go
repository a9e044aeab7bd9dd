package worker

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/config"
	"eventplace/internal/domain"
	"eventplace/internal/logging"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// sweepGrace keeps the sweep away from sagas that may still be running.
const sweepGrace = 10 * time.Minute

// Backuper is satisfied by database.BackupService.
type Backuper interface {
	Run(ctx context.Context)
}

// RecoveryScheduler runs periodic jobs: the stuck-saga sweep and database backups.
type RecoveryScheduler struct {
	scheduler gocron.Scheduler
	bookings  domain.BookingStore
	enqueuer  domain.RecoveryEnqueuer
	backup    Backuper
	cfg       config.RecoveryConfig
	backupCfg config.BackupConfig
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewRecoveryScheduler(
	bookings domain.BookingStore,
	enqueuer domain.RecoveryEnqueuer,
	backup Backuper,
	cfg config.RecoveryConfig,
	backupCfg config.BackupConfig,
	logger *zerolog.Logger,
) (*RecoveryScheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &RecoveryScheduler{
		scheduler: s,
		bookings:  bookings,
		enqueuer:  enqueuer,
		backup:    backup,
		cfg:       cfg,
		backupCfg: backupCfg,
		logger:    logging.Component(logger, "scheduler"),
		now:       time.Now,
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs stop when ctx is done or Shutdown is called.
func (s *RecoveryScheduler) Start(ctx context.Context) error {
	if s.cfg.Enabled {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.cfg.Interval),
			gocron.NewTask(func() { s.Sweep(ctx) }),
			gocron.WithName("recovery_sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule recovery sweep: %w", err)
		}
	}

	if s.backup != nil && s.backupCfg.Enabled {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.backupCfg.Interval),
			gocron.NewTask(func() { s.backup.Run(ctx) }),
			gocron.WithName("database_backup"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
	}

	s.scheduler.Start()
	s.logger.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("scheduler started")
	return nil
}

func (s *RecoveryScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// Sweep queues a saga retry for every confirmed booking that has no workflow yet.
func (s *RecoveryScheduler) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-sweepGrace)
	bookings, err := s.bookings.GetConfirmedBookingsWithoutWorkflow(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: list confirmed bookings without workflow")
		return 0
	}

	queued := 0
	for _, b := range bookings {
		if err := s.enqueuer.EnqueueTask(ctx, TaskRetrySaga, b.ID, nil); err != nil {
			s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("sweep: enqueue retry")
			continue
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info().Int("queued", queued).Msg("sweep queued saga retries")
	}
	return queued
}
