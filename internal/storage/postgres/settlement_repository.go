package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

// SettlementRepository moves reservations out of the held state: sold by a
// payment, released by a cancellation or by the expiry reaper.
type SettlementRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool, q: querier{pool: pool}}
}

func (r *SettlementRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *SettlementRepository) FindByPaymentReference(ctx context.Context, ref string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE payment_reference = $1
ORDER BY id`

	rows, err := r.q.query(ctx, query, ref)
	if err != nil {
		return nil, storeError("find by payment reference", err)
	}
	out, err := collectReservations(rows)
	if err != nil {
		return nil, storeError("find by payment reference", err)
	}
	return out, nil
}

// GetReservationsForUpdate locks the rows in id order so concurrent callers
// never deadlock against each other. Unknown ids are simply absent.
func (r *SettlementRepository) GetReservationsForUpdate(ctx context.Context, ids []string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE id = ANY($1::text[]::uuid[])
ORDER BY id
FOR UPDATE`

	rows, err := r.q.query(ctx, query, ids)
	if err != nil {
		return nil, storeError("lock reservations", err)
	}
	out, err := collectReservations(rows)
	if err != nil {
		return nil, storeError("lock reservations", err)
	}
	return out, nil
}

func (r *SettlementRepository) LockUnit(ctx context.Context, unitID string) error {
	var id string
	err := r.q.queryRow(ctx, `SELECT id::text FROM sellable_units WHERE id = $1 FOR UPDATE`, unitID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUnitNotFound
		}
		return storeError("lock unit", err)
	}
	return nil
}

func (r *SettlementRepository) MarkSold(ctx context.Context, ids []string, sale domain.Sale, now time.Time) (int, error) {
	const stmt = `
UPDATE reservations
SET status = 'sold', settled_at = $2, payment_reference = $3, buyer_reference = $4, attributes = $5
WHERE id = ANY($1::text[]::uuid[]) AND status = 'held'`

	attrs := sale.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	var buyer *string
	if sale.BuyerReference != "" {
		buyer = &sale.BuyerReference
	}

	tag, err := r.q.exec(ctx, stmt, ids, now, sale.PaymentReference, buyer, attrs)
	if err != nil {
		return 0, storeError("mark sold", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *SettlementRepository) MarkReleased(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', settled_at = $2
WHERE id = ANY($1::text[]::uuid[]) AND status = 'held'
RETURNING id::text`

	return r.releaseReturning(ctx, "mark released", stmt, ids, now)
}

// ReleaseExpired releases up to limit lapsed holds. Rows locked by an
// in-flight finalize are skipped and picked up by a later sweep.
func (r *SettlementRepository) ReleaseExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', settled_at = $1
WHERE id IN (
	SELECT id FROM reservations
	WHERE status = 'held' AND expires_at <= $1
	ORDER BY expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
AND status = 'held'
RETURNING id::text`

	return r.releaseReturning(ctx, "release expired", stmt, now, limit)
}

func (r *SettlementRepository) ReleaseExpiredByID(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', settled_at = $2
WHERE id = ANY($1::text[]::uuid[]) AND status = 'held' AND expires_at <= $2
RETURNING id::text`

	return r.releaseReturning(ctx, "release expired by id", stmt, ids, now)
}

func (r *SettlementRepository) releaseReturning(ctx context.Context, op, stmt string, args ...any) ([]string, error) {
	rows, err := r.q.query(ctx, stmt, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, storeError(op, err)
	}
	return ids, nil
}
