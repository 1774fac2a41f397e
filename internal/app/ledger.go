package app

import (
	"context"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

type LedgerRepository interface {
	GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error)
	CountReservations(ctx context.Context, unitID string, now time.Time) (domain.ReservationCounts, error)
	// CountReservationsByUnit omits units with no sold or live held rows.
	CountReservationsByUnit(ctx context.Context, unitIDs []string, now time.Time) (map[string]domain.ReservationCounts, error)
}

// UnitLister is satisfied by CatalogService.
type UnitLister interface {
	ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error)
}

// StockLedger computes remaining capacity from sold and live held reservations.
// Lapsed holds are excluded at read time even if the reaper has not run yet.
type StockLedger struct {
	repo  LedgerRepository
	units UnitLister
	clock clock.Clock
}

func NewStockLedger(repo LedgerRepository, units UnitLister, clk clock.Clock) *StockLedger {
	return &StockLedger{
		repo:  repo,
		units: units,
		clock: clk,
	}
}

func (l *StockLedger) Snapshot(ctx context.Context, unitID string) (domain.StockSnapshot, error) {
	if unitID == "" {
		return domain.StockSnapshot{}, domain.ErrInvalidID
	}

	unit, err := l.repo.GetUnit(ctx, unitID)
	if err != nil {
		return domain.StockSnapshot{}, err
	}
	counts, err := l.repo.CountReservations(ctx, unitID, l.clock.Now())
	if err != nil {
		return domain.StockSnapshot{}, err
	}
	return domain.NewStockSnapshot(unit, counts), nil
}

func (l *StockLedger) Remaining(ctx context.Context, unitID string) (int, error) {
	snap, err := l.Snapshot(ctx, unitID)
	if err != nil {
		return 0, err
	}
	return snap.Remaining, nil
}

// EventStock reports every unit of an event with its remaining stock, in the
// catalog's order. All units are counted against the same instant.
func (l *StockLedger) EventStock(ctx context.Context, eventID string) ([]domain.StockSnapshot, error) {
	units, err := l.units.ListUnits(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockSnapshot, 0, len(units))
	if len(units) == 0 {
		return out, nil
	}

	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	counts, err := l.repo.CountReservationsByUnit(ctx, ids, l.clock.Now())
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		out = append(out, domain.NewStockSnapshot(u, counts[u.ID]))
	}
	return out, nil
}
