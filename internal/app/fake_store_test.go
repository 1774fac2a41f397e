package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/namdorg/engage-upgrades/internal/domain"
)

// fakeStore is an in-memory reservation store. WithTx serialises whole
// transactions, standing in for the unit row lock taken by Postgres.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	units map[string]domain.SellableUnit
	rows  []domain.Reservation

	insertErr error
	countErr  error
	inserts   int
}

func newFakeStore(units ...domain.SellableUnit) *fakeStore {
	m := make(map[string]domain.SellableUnit, len(units))
	for _, u := range units {
		m[u.ID] = u
	}
	return &fakeStore{units: m}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snapshot := append([]domain.Reservation(nil), f.rows...)
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.rows = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) GetUnit(_ context.Context, unitID string) (domain.SellableUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[unitID]
	if !ok {
		return domain.SellableUnit{}, domain.ErrUnitNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUnitForUpdate(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	return f.GetUnit(ctx, unitID)
}

func (f *fakeStore) LockUnit(ctx context.Context, unitID string) error {
	_, err := f.GetUnit(ctx, unitID)
	return err
}

func (f *fakeStore) CountReservations(_ context.Context, unitID string, now time.Time) (domain.ReservationCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return domain.ReservationCounts{}, f.countErr
	}
	var c domain.ReservationCounts
	for _, r := range f.rows {
		if r.SellableUnitID != unitID {
			continue
		}
		switch {
		case r.Status == domain.ReservationStatusSold:
			c.Sold++
		case r.HeldAt(now):
			c.Held++
		}
	}
	return c, nil
}

func (f *fakeStore) CountReservationsByUnit(ctx context.Context, unitIDs []string, now time.Time) (map[string]domain.ReservationCounts, error) {
	out := make(map[string]domain.ReservationCounts, len(unitIDs))
	for _, id := range unitIDs {
		c, err := f.CountReservations(ctx, id, now)
		if err != nil {
			return nil, err
		}
		if c.Sold > 0 || c.Held > 0 {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeStore) FindByRequestKey(_ context.Context, unitID, key string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.rows {
		if r.SellableUnitID == unitID && r.RequestKey == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertReservations(_ context.Context, reservations []domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.rows = append(f.rows, reservations...)
	return nil
}

func (f *fakeStore) FindByPaymentReference(_ context.Context, ref string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.rows {
		if r.PaymentReference != nil && *r.PaymentReference == ref {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetReservationsForUpdate(_ context.Context, ids []string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := toSet(ids)
	var out []domain.Reservation
	for _, r := range f.rows {
		if _, ok := want[r.ID]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) MarkSold(_ context.Context, ids []string, sale domain.Sale, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := toSet(ids)
	n := 0
	for i := range f.rows {
		r := &f.rows[i]
		if _, ok := want[r.ID]; !ok || !r.HeldAt(now) {
			continue
		}
		ref, buyer, at := sale.PaymentReference, sale.BuyerReference, now
		r.Status = domain.ReservationStatusSold
		r.PaymentReference = &ref
		r.BuyerReference = &buyer
		r.Attributes = sale.Attributes
		r.SettledAt = &at
		n++
	}
	return n, nil
}

func (f *fakeStore) MarkReleased(_ context.Context, ids []string, now time.Time) ([]string, error) {
	return f.release(func(r domain.Reservation) bool {
		_, ok := toSet(ids)[r.ID]
		return ok
	}, now, 0), nil
}

func (f *fakeStore) ReleaseExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	return f.release(func(r domain.Reservation) bool {
		return !r.ExpiresAt.After(now)
	}, now, limit), nil
}

func (f *fakeStore) ReleaseExpiredByID(_ context.Context, ids []string, now time.Time) ([]string, error) {
	want := toSet(ids)
	return f.release(func(r domain.Reservation) bool {
		_, ok := want[r.ID]
		return ok && !r.ExpiresAt.After(now)
	}, now, 0), nil
}

func (f *fakeStore) release(match func(domain.Reservation) bool, now time.Time, limit int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i := range f.rows {
		r := &f.rows[i]
		if r.Status != domain.ReservationStatusHeld || !match(*r) {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		at := now
		r.Status = domain.ReservationStatusReleased
		r.SettledAt = &at
		out = append(out, r.ID)
	}
	return out
}

func (f *fakeStore) reservation(id string) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return domain.Reservation{}
}

func (f *fakeStore) countStatus(unitID string, status domain.ReservationStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.SellableUnitID == unitID && r.Status == status {
			n++
		}
	}
	return n
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
