package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

const reservationColumns = `id::text, sellable_unit_id::text, status, COALESCE(request_key, ''), created_at,
	expires_at, settled_at, payment_reference, buyer_reference, attributes`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res    domain.Reservation
		status string
	)
	err := row.Scan(
		&res.ID,
		&res.SellableUnitID,
		&status,
		&res.RequestKey,
		&res.CreatedAt,
		&res.ExpiresAt,
		&res.SettledAt,
		&res.PaymentReference,
		&res.BuyerReference,
		&res.Attributes,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Status = domain.ReservationStatus(status)
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Reservation, error) {
		return scanReservation(row)
	})
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
