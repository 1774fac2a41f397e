package domain

import "time"

type ReservationStatus string

// MaxBatchSize caps how many reservations one Reserve call creates, and so
// how many one Finalize call must be able to settle.
const MaxBatchSize = 100

const (
	ReservationStatusHeld     ReservationStatus = "held"
	ReservationStatusSold     ReservationStatus = "sold"
	ReservationStatusReleased ReservationStatus = "released"
)

// Reservation is a single unit of inventory (one ticket upgrade).
// Sold and Released are terminal.
type Reservation struct {
	ID             string
	SellableUnitID string
	Status         ReservationStatus
	// RequestKey is shared by every row created by one Reserve call.
	RequestKey string
	CreatedAt  time.Time
	// ExpiresAt only matters while the reservation is held.
	ExpiresAt        time.Time
	SettledAt        *time.Time
	PaymentReference *string
	BuyerReference   *string
	Attributes       map[string]string
}

// HeldAt reports whether the reservation still counts against capacity at now.
func (r Reservation) HeldAt(now time.Time) bool {
	return r.Status == ReservationStatusHeld && r.ExpiresAt.After(now)
}

func (r Reservation) Terminal() bool {
	return r.Status == ReservationStatusSold || r.Status == ReservationStatusReleased
}

// Sale is what a payment attaches to reservations when they are sold.
type Sale struct {
	PaymentReference string
	BuyerReference   string
	Attributes       map[string]string
}
