package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

// ReservationRepository backs Reserve and the stock ledger.
type ReservationRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool, q: querier{pool: pool}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const unitColumns = `id::text, event_id::text, name, capacity, created_at`

func (r *ReservationRepository) GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	return r.getUnit(ctx, `SELECT `+unitColumns+` FROM sellable_units WHERE id = $1`, unitID)
}

// GetUnitForUpdate locks the unit row until the surrounding transaction ends.
// Every capacity decision for the unit is serialised behind this lock.
func (r *ReservationRepository) GetUnitForUpdate(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	return r.getUnit(ctx, `SELECT `+unitColumns+` FROM sellable_units WHERE id = $1 FOR UPDATE`, unitID)
}

func (r *ReservationRepository) getUnit(ctx context.Context, query, unitID string) (domain.SellableUnit, error) {
	var u domain.SellableUnit
	err := r.q.queryRow(ctx, query, unitID).Scan(&u.ID, &u.EventID, &u.Name, &u.Capacity, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellableUnit{}, domain.ErrUnitNotFound
		}
		return domain.SellableUnit{}, storeError("get unit", err)
	}
	return u, nil
}

func (r *ReservationRepository) CountReservations(ctx context.Context, unitID string, now time.Time) (domain.ReservationCounts, error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE status = 'sold'),
	COUNT(*) FILTER (WHERE status = 'held' AND expires_at > $2)
FROM reservations
WHERE sellable_unit_id = $1 AND status IN ('sold', 'held')`

	var c domain.ReservationCounts
	if err := r.q.queryRow(ctx, query, unitID, now).Scan(&c.Sold, &c.Held); err != nil {
		return domain.ReservationCounts{}, storeError("count reservations", err)
	}
	return c, nil
}

// CountReservationsByUnit applies the same filter as CountReservations to many
// units in one query. Units with nothing sold or held are absent from the map.
func (r *ReservationRepository) CountReservationsByUnit(ctx context.Context, unitIDs []string, now time.Time) (map[string]domain.ReservationCounts, error) {
	out := make(map[string]domain.ReservationCounts, len(unitIDs))
	if len(unitIDs) == 0 {
		return out, nil
	}

	const query = `
SELECT
	sellable_unit_id::text,
	COUNT(*) FILTER (WHERE status = 'sold'),
	COUNT(*) FILTER (WHERE status = 'held' AND expires_at > $2)
FROM reservations
WHERE sellable_unit_id = ANY($1::text[]::uuid[]) AND status IN ('sold', 'held')
GROUP BY sellable_unit_id`

	rows, err := r.q.query(ctx, query, unitIDs, now)
	if err != nil {
		return nil, storeError("count reservations by unit", err)
	}
	var (
		unitID string
		c      domain.ReservationCounts
	)
	_, err = pgx.ForEachRow(rows, []any{&unitID, &c.Sold, &c.Held}, func() error {
		if c.Sold > 0 || c.Held > 0 {
			out[unitID] = c
		}
		return nil
	})
	if err != nil {
		return nil, storeError("count reservations by unit", err)
	}
	return out, nil
}

func (r *ReservationRepository) FindByRequestKey(ctx context.Context, unitID, key string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE sellable_unit_id = $1 AND request_key = $2
ORDER BY created_at, id`

	rows, err := r.q.query(ctx, query, unitID, key)
	if err != nil {
		return nil, storeError("find by request key", err)
	}
	out, err := collectReservations(rows)
	if err != nil {
		return nil, storeError("find by request key", err)
	}
	return out, nil
}

// InsertReservations writes the whole batch in one statement.
func (r *ReservationRepository) InsertReservations(ctx context.Context, reservations []domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, sellable_unit_id, status, request_key, created_at, expires_at)
SELECT b.id::uuid, b.unit_id::uuid, b.status, b.request_key, b.created_at, b.expires_at
FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::timestamptz[], $6::timestamptz[])
	AS b(id, unit_id, status, request_key, created_at, expires_at)`

	n := len(reservations)
	ids := make([]string, n)
	unitIDs := make([]string, n)
	statuses := make([]string, n)
	keys := make([]*string, n)
	created := make([]time.Time, n)
	expires := make([]time.Time, n)
	for i, res := range reservations {
		ids[i] = res.ID
		unitIDs[i] = res.SellableUnitID
		statuses[i] = string(res.Status)
		if res.RequestKey != "" {
			key := res.RequestKey
			keys[i] = &key
		}
		created[i] = res.CreatedAt
		expires[i] = res.ExpiresAt
	}

	tag, err := r.q.exec(ctx, stmt, ids, unitIDs, statuses, keys, created, expires)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUnitNotFound
		}
		return storeError("insert reservations", err)
	}
	if int(tag.RowsAffected()) != n {
		return storeError("insert reservations", errors.New("short insert"))
	}
	return nil
}
