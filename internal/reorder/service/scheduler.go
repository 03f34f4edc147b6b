package service

import (
	"context"
	"time"

	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// SweepScheduler runs the reorder sweep periodically. There is exactly one
// schedule; overlapping runs are already safe because the sweep is
// idempotent, but a single ticker keeps the log noise down.
type SweepScheduler struct {
	service  *ReorderService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(svc *ReorderService, interval time.Duration, log *logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		service:  svc,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. It runs one sweep
// immediately so a freshly started server catches existing low stock.
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("reorder sweep scheduler started")

		s.runSweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("reorder sweep scheduler stopped")
				return
			case <-ticker.C:
				s.runSweep(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *SweepScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *SweepScheduler) runSweep(ctx context.Context) {
	start := time.Now()

	created, err := s.service.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reorder sweep failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("created", created).
		Msg("reorder sweep completed")
}
