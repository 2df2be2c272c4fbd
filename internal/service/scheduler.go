package service

import (
	"context"
	"time"

	"wagate/internal/constants"

	"github.com/sirupsen/logrus"
)

// RetentionStore is the cleanup slice of the persistence gateway.
type RetentionStore interface {
	CleanupOldQRArtifacts(ctx context.Context, retentionDays int) error
	CleanupOldMessageLogs(ctx context.Context, retentionDays int) error
}

// Scheduler periodically prunes expired QR artifacts and message logs.
type Scheduler struct {
	store         RetentionStore
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(store RetentionStore, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		store:         store,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting retention scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retentionDays", s.retentionDays).Info("Running scheduled cleanup")

	if err := s.store.CleanupOldQRArtifacts(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old QR artifacts")
	}
	if err := s.store.CleanupOldMessageLogs(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old message logs")
	}

	s.logger.Info("Completed retention cleanup")
}
