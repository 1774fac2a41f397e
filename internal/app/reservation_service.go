package app

import (
	"context"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUnitForUpdate(ctx context.Context, unitID string) (domain.SellableUnit, error)
	CountReservations(ctx context.Context, unitID string, now time.Time) (domain.ReservationCounts, error)
	FindByRequestKey(ctx context.Context, unitID, key string) ([]domain.Reservation, error)
	InsertReservations(ctx context.Context, reservations []domain.Reservation) error
}

// ExpiryScheduler arranges for a batch of reservations to be expired at a
// given time. It is an optimisation on top of the reaper, never a replacement.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, reservationIDs []string, at time.Time) error
}

type ReservationManager struct {
	repo      ReservationRepository
	clock     clock.Clock
	ttl       time.Duration
	scheduler ExpiryScheduler
	logger    *logrus.Logger
}

type ReservationManagerOption func(*ReservationManager)

// WithExpiryScheduler registers a per-batch expiry callback.
func WithExpiryScheduler(s ExpiryScheduler) ReservationManagerOption {
	return func(m *ReservationManager) {
		m.scheduler = s
	}
}

func WithReservationLogger(logger *logrus.Logger) ReservationManagerOption {
	return func(m *ReservationManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewReservationManager requires an explicit hold TTL; there is no default.
func NewReservationManager(repo ReservationRepository, clk clock.Clock, ttl time.Duration, opts ...ReservationManagerOption) (*ReservationManager, error) {
	if ttl <= 0 {
		return nil, domain.ErrInvalidTTL
	}
	m := &ReservationManager{
		repo:   repo,
		clock:  clk,
		ttl:    ttl,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type ReserveInput struct {
	UnitID   string
	Quantity int
	// RequestKey is optional. Retrying with the same key returns the
	// reservations created by the first call while they are still held.
	RequestKey string
}

type ReserveResult struct {
	ReservationIDs []string
	Status         domain.ReservationStatus
	ExpiresAt      time.Time
	Replayed       bool
}

// Reserve creates exactly in.Quantity held reservations or none. The stock
// check and the insert run under the unit's row lock.
func (m *ReservationManager) Reserve(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	if in.Quantity < 1 {
		return ReserveResult{}, domain.ErrInvalidQuantity
	}
	if in.Quantity > domain.MaxBatchSize {
		return ReserveResult{}, domain.ErrBatchTooLarge
	}
	if in.UnitID == "" {
		return ReserveResult{}, domain.ErrInvalidID
	}

	var result ReserveResult
	err := m.repo.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := m.repo.GetUnitForUpdate(txCtx, in.UnitID)
		if err != nil {
			return err
		}
		now := m.clock.Now()

		if in.RequestKey != "" {
			existing, err := m.repo.FindByRequestKey(txCtx, in.UnitID, in.RequestKey)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				if len(existing) != in.Quantity {
					return domain.ErrIdempotencyConflict
				}
				// Replay only while every row is still a live hold.
				for _, r := range existing {
					if !r.HeldAt(now) {
						return domain.ErrRequestKeySpent
					}
				}
				result = replayResult(existing)
				return nil
			}
		}

		counts, err := m.repo.CountReservations(txCtx, in.UnitID, now)
		if err != nil {
			return err
		}
		remaining := unit.Capacity - counts.Sold - counts.Held
		if in.Quantity > remaining {
			if remaining < 0 {
				remaining = 0
			}
			return &domain.InsufficientStockError{Requested: in.Quantity, Remaining: remaining}
		}

		expiresAt := now.Add(m.ttl)
		rows := make([]domain.Reservation, in.Quantity)
		ids := make([]string, in.Quantity)
		for i := range rows {
			ids[i] = newUUID()
			rows[i] = domain.Reservation{
				ID:             ids[i],
				SellableUnitID: unit.ID,
				Status:         domain.ReservationStatusHeld,
				RequestKey:     in.RequestKey,
				CreatedAt:      now,
				ExpiresAt:      expiresAt,
			}
		}
		if err := m.repo.InsertReservations(txCtx, rows); err != nil {
			return err
		}

		result = ReserveResult{ReservationIDs: ids, Status: domain.ReservationStatusHeld, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return ReserveResult{}, err
	}

	if !result.Replayed && m.scheduler != nil {
		if err := m.scheduler.ScheduleExpiry(ctx, result.ReservationIDs, result.ExpiresAt); err != nil {
			m.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
				"unit_id":      in.UnitID,
				"reservations": len(result.ReservationIDs),
			}).Warn("schedule reservation expiry")
		}
	}
	return result, nil
}

func replayResult(existing []domain.Reservation) ReserveResult {
	ids := make([]string, len(existing))
	for i, r := range existing {
		ids[i] = r.ID
	}
	return ReserveResult{
		ReservationIDs: ids,
		Status:         existing[0].Status,
		ExpiresAt:      existing[0].ExpiresAt,
		Replayed:       true,
	}
}
