// Package retention prunes old compression job records on a schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/system"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// schedule is how often expired records are purged.
const schedule = "@hourly"

var _ system.Service = (*Service)(nil)

// Service deletes job records older than the configured retention window.
type Service struct {
	store     storage.JobStore
	retention time.Duration
	log       *logger.Logger
	cron      *cron.Cron
}

// New creates a retention service. Retention must be positive.
func New(store storage.JobStore, retention time.Duration, log *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if log == nil {
		log = logger.NewDefault("retention")
	}
	return &Service{
		store:     store,
		retention: retention,
		log:       log,
	}, nil
}

func (s *Service) Name() string { return "job-retention" }

// Start schedules the hourly purge.
func (s *Service) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, func() {
		s.Purge(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule retention purge: %w", err)
	}
	s.cron.Start()
	s.log.WithField("retention", s.retention.String()).Info("job retention started")
	return nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Purge deletes records older than the retention window and returns how many
// were removed.
func (s *Service) Purge(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.retention)
	purged, err := s.store.PurgeJobsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("job retention purge failed")
		return 0
	}
	if purged > 0 {
		s.log.WithField("purged", purged).Info("expired job records removed")
	}
	return purged
}
