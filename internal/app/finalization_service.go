package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

type SettlementRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindByPaymentReference(ctx context.Context, ref string) ([]domain.Reservation, error)
	GetReservationsForUpdate(ctx context.Context, ids []string) ([]domain.Reservation, error)
	LockUnit(ctx context.Context, unitID string) error
	// MarkSold and MarkReleased only touch rows that are still held.
	MarkSold(ctx context.Context, ids []string, sale domain.Sale, now time.Time) (int, error)
	MarkReleased(ctx context.Context, ids []string, now time.Time) ([]string, error)
}

// FinalizationCoordinator turns held reservations into sold ones when a payment
// succeeds, or releases them when it fails or is abandoned.
type FinalizationCoordinator struct {
	repo   SettlementRepository
	clock  clock.Clock
	logger *logrus.Logger
}

func NewFinalizationCoordinator(repo SettlementRepository, clk clock.Clock, logger *logrus.Logger) *FinalizationCoordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FinalizationCoordinator{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

type FinalizeInput struct {
	PaymentReference string
	ReservationIDs   []string
	BuyerReference   string
	Attributes       map[string]string
}

type FinalizeResult struct {
	ReservationIDs []string
	// Replayed is set when the payment reference had already been applied.
	Replayed bool
}

// Finalize sells every reservation in the batch or none of them. Calls are
// idempotent per payment reference.
func (c *FinalizationCoordinator) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.PaymentReference == "" {
		return FinalizeResult{}, domain.ErrPaymentReferenceRequired
	}
	ids := dedupeIDs(in.ReservationIDs)
	if len(ids) == 0 {
		return FinalizeResult{}, domain.ErrNoReservations
	}
	if len(ids) > domain.MaxBatchSize {
		return FinalizeResult{}, domain.ErrBatchTooLarge
	}

	var result FinalizeResult
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		prior, err := c.repo.FindByPaymentReference(txCtx, in.PaymentReference)
		if err != nil {
			return err
		}
		if len(prior) > 0 {
			if !sameReservations(prior, ids) {
				return domain.ErrPaymentReferenceConflict
			}
			result = FinalizeResult{ReservationIDs: ids, Replayed: true}
			return nil
		}

		rows, err := c.repo.GetReservationsForUpdate(txCtx, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return domain.ErrReservationNotFound
		}
		unitID := rows[0].SellableUnitID
		for _, r := range rows[1:] {
			if r.SellableUnitID != unitID {
				return domain.ErrMixedUnits
			}
		}
		if err := c.repo.LockUnit(txCtx, unitID); err != nil {
			return err
		}

		// A concurrent delivery of the same payment may have sold the rows
		// while this call waited on the row locks.
		if soldTo(rows, in.PaymentReference) {
			result = FinalizeResult{ReservationIDs: ids, Replayed: true}
			return nil
		}

		now := c.clock.Now()
		var lost []string
		for _, r := range rows {
			if !r.HeldAt(now) {
				lost = append(lost, r.ID)
			}
		}
		if len(lost) > 0 {
			return &domain.PartialReservationLostError{PaymentReference: in.PaymentReference, Lost: lost}
		}

		sold, err := c.repo.MarkSold(txCtx, ids, domain.Sale{
			PaymentReference: in.PaymentReference,
			BuyerReference:   in.BuyerReference,
			Attributes:       in.Attributes,
		}, now)
		if err != nil {
			return err
		}
		if sold != len(ids) {
			return fmt.Errorf("finalize: sold %d of %d locked reservations", sold, len(ids))
		}

		result = FinalizeResult{ReservationIDs: ids}
		return nil
	})
	if err != nil {
		var lost *domain.PartialReservationLostError
		if errors.As(err, &lost) {
			c.logger.WithContext(ctx).WithFields(logrus.Fields{
				"payment_reference": in.PaymentReference,
				"buyer_reference":   in.BuyerReference,
				"requested":         len(ids),
				"lost":              lost.Lost,
			}).Error("paid reservations lost before finalize, manual reconciliation required")
		}
		return FinalizeResult{}, err
	}
	return result, nil
}

type ReleaseResult struct {
	Released []string
	// Skipped counts reservations that were already sold or released.
	Skipped int
}

// Release returns held reservations to the pool. Sold and already released
// reservations are left untouched, so repeated calls are harmless.
func (c *FinalizationCoordinator) Release(ctx context.Context, reservationIDs []string) (ReleaseResult, error) {
	ids := dedupeIDs(reservationIDs)
	if len(ids) == 0 {
		return ReleaseResult{}, domain.ErrNoReservations
	}

	var result ReleaseResult
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := c.repo.GetReservationsForUpdate(txCtx, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return domain.ErrReservationNotFound
		}

		released, err := c.repo.MarkReleased(txCtx, ids, c.clock.Now())
		if err != nil {
			return err
		}
		result = ReleaseResult{Released: released, Skipped: len(ids) - len(released)}
		return nil
	})
	if err != nil {
		return ReleaseResult{}, err
	}

	c.logger.WithContext(ctx).WithFields(logrus.Fields{
		"released": len(result.Released),
		"skipped":  result.Skipped,
	}).Debug("release reservations")
	return result, nil
}

func soldTo(rows []domain.Reservation, ref string) bool {
	for _, r := range rows {
		if r.Status != domain.ReservationStatusSold || r.PaymentReference == nil || *r.PaymentReference != ref {
			return false
		}
	}
	return true
}

func sameReservations(rows []domain.Reservation, ids []string) bool {
	if len(rows) != len(ids) {
		return false
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, r := range rows {
		if _, ok := want[r.ID]; !ok {
			return false
		}
	}
	return true
}
