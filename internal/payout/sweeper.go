package payout

import (
	"context"
	"time"

	"github.com/payrail/payrail/pkg/logger"
)

// Sweeper periodically re-enqueues payouts the dispatcher lost track of:
// Pending rows whose enqueue was dropped, and Processing rows untouched for
// longer than the stale age (a worker died mid-flight). Together with
// idempotent processing this gives crash recovery without a durable queue.
type Sweeper struct {
	repo     Repository
	enqueuer Enqueuer
	interval time.Duration
	staleAge time.Duration
	logger   *logger.Logger
}

// NewSweeper creates a new payout sweeper
func NewSweeper(repo Repository, enqueuer Enqueuer, interval, staleAge time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if staleAge <= 0 {
		staleAge = 5 * time.Minute
	}
	return &Sweeper{
		repo:     repo,
		enqueuer: enqueuer,
		interval: interval,
		staleAge: staleAge,
		logger:   log.WithField("component", "sweeper"),
	}
}

// Run sweeps until ctx is cancelled. Blocking; call in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started", "interval", s.interval.String(), "stale_age", s.staleAge.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	stalled, err := s.repo.ListStalled(ctx, s.staleAge, 100)
	if err != nil {
		s.logger.Error("sweep query failed", "error", err)
		return
	}
	if len(stalled) == 0 {
		return
	}

	requeued := 0
	for _, p := range stalled {
		if err := s.enqueuer.EnqueueProcess(p.ID); err != nil {
			s.logger.Warn("failed to requeue payout", "payout_id", p.ID, "error", err)
			continue
		}
		requeued++
	}
	s.logger.Info("sweep requeued stalled payouts", "found", len(stalled), "requeued", requeued)
}
