package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

type CatalogRepository struct {
	q querier
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{q: querier{pool: pool}}
}

func (r *CatalogRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	_, err := r.q.exec(ctx, `
INSERT INTO events (id, name, starts_at)
VALUES ($1, $2, $3)`,
		event.ID,
		event.Name,
		event.StartsAt,
	)
	if err != nil {
		return storeError("create event", err)
	}
	return nil
}

func (r *CatalogRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.q.query(ctx, `
SELECT id::text, name, starts_at
FROM events
ORDER BY starts_at, id`)
	if err != nil {
		return nil, storeError("list events", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		var e domain.Event
		err := row.Scan(&e.ID, &e.Name, &e.StartsAt)
		return e, err
	})
	if err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

func (r *CatalogRepository) CreateUnit(ctx context.Context, unit domain.SellableUnit) error {
	_, err := r.q.exec(ctx, `
INSERT INTO sellable_units (id, event_id, name, capacity, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		unit.ID,
		unit.EventID,
		unit.Name,
		unit.Capacity,
		unit.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrUnitAlreadyExists
		}
		return storeError("create unit", err)
	}
	return nil
}

func (r *CatalogRepository) ListUnitsByEvent(ctx context.Context, eventID string) ([]domain.SellableUnit, error) {
	rows, err := r.q.query(ctx, `
SELECT `+unitColumns+`
FROM sellable_units
WHERE event_id = $1
ORDER BY name, id`, eventID)
	if err != nil {
		return nil, storeError("list units", err)
	}
	units, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SellableUnit, error) {
		var u domain.SellableUnit
		err := row.Scan(&u.ID, &u.EventID, &u.Name, &u.Capacity, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, storeError("list units", err)
	}
	return units, nil
}
