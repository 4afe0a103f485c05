// Package scheduler runs the background loops of the marketplace. There is a
// single loop today: periodic reconciliation, which rebuilds the browse
// projection from the listing store and replays unfinished bid cascades, so
// that events lost by the in-process bus (which guarantees neither delivery
// nor ordering) only bound staleness to the reconcile interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/unibazaar/marketplace/internal/config"
	"github.com/unibazaar/marketplace/internal/service"
)

// Scheduler owns the background goroutines. Call Start(ctx) once from main();
// cancel the context to shut it down gracefully.
type Scheduler struct {
	feedSvc *service.FeedService
	syncer  *service.Synchronizer
	cfg     *config.Config
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(feedSvc *service.FeedService, syncer *service.Synchronizer, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		feedSvc: feedSvc,
		syncer:  syncer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the background goroutines. It returns immediately; all loops
// run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.reconcileLoop(ctx)
	s.logger.Info("scheduler started", "reconcile_interval", s.cfg.Feed.ReconcileInterval)
}

// reconcileLoop re-derives the feed from the source of truth and sweeps
// unfinished bid cascades on a fixed interval. One run also executes shortly
// after startup so a fresh deploy begins with a converged projection.
func (s *Scheduler) reconcileLoop(ctx context.Context) {
	// First pass soon after boot, then steady-state interval.
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if err := s.feedSvc.Reconcile(runCtx); err != nil {
			s.logger.Error("feed reconcile failed", "err", err)
		}
		if err := s.syncer.Sweep(runCtx); err != nil {
			s.logger.Error("bid cascade sweep failed", "err", err)
		}
		cancel()

		timer.Reset(s.cfg.Feed.ReconcileInterval)
	}
}
