package app

import (
	"context"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

type ExpiryRepository interface {
	// ReleaseExpired releases up to limit lapsed holds and returns their ids.
	ReleaseExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	// ReleaseExpiredByID releases the given ids that are held and lapsed.
	ReleaseExpiredByID(ctx context.Context, ids []string, now time.Time) ([]string, error)
}

const defaultReaperBatchSize = 500

// ExpiryReaper periodically releases held reservations whose TTL has passed.
// Every transition is a compare-and-swap on status, so several reapers and
// concurrent finalizes can safely overlap.
type ExpiryReaper struct {
	repo      ExpiryRepository
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	logger    *logrus.Logger
}

type ExpiryReaperOption func(*ExpiryReaper)

func WithReaperBatchSize(n int) ExpiryReaperOption {
	return func(r *ExpiryReaper) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithReaperLogger(logger *logrus.Logger) ExpiryReaperOption {
	return func(r *ExpiryReaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewExpiryReaper(repo ExpiryRepository, clk clock.Clock, interval time.Duration, opts ...ExpiryReaperOption) (*ExpiryReaper, error) {
	if interval <= 0 {
		return nil, domain.ErrInvalidInterval
	}
	r := &ExpiryReaper{
		repo:      repo,
		clock:     clk,
		interval:  interval,
		batchSize: defaultReaperBatchSize,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (r *ExpiryReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sweepAndLog(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *ExpiryReaper) sweepAndLog(ctx context.Context) {
	released, err := r.Sweep(ctx)
	entry := r.logger.WithContext(ctx).WithField("released", released)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		entry.WithError(err).Error("reaper sweep failed")
		return
	}
	if released > 0 {
		entry.Info("released expired reservations")
	}
}

// Sweep releases every currently lapsed hold, one batch at a time.
func (r *ExpiryReaper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := r.repo.ReleaseExpired(ctx, r.clock.Now(), r.batchSize)
		if err != nil {
			return total, err
		}
		total += len(ids)
		if len(ids) < r.batchSize {
			return total, nil
		}
	}
}

// ExpireReservations releases the given reservations if their hold has lapsed.
// Rows that were sold, released, or are still within their TTL are skipped.
func (r *ExpiryReaper) ExpireReservations(ctx context.Context, reservationIDs []string) (int, error) {
	ids := dedupeIDs(reservationIDs)
	if len(ids) == 0 {
		return 0, domain.ErrNoReservations
	}
	released, err := r.repo.ReleaseExpiredByID(ctx, ids, r.clock.Now())
	if err != nil {
		return 0, err
	}
	return len(released), nil
}
