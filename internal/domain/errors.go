package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnitNotFound             = errors.New("sellable unit not found")
	ErrEventNotFound            = errors.New("event not found")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrIdempotencyConflict      = errors.New("idempotency conflict")
	ErrRequestKeySpent          = errors.New("request key belongs to reservations that are no longer held")
	ErrBatchTooLarge            = errors.New("too many reservations in one request")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrNoReservations           = errors.New("no reservations given")
	ErrMixedUnits               = errors.New("reservations belong to more than one sellable unit")
	ErrPartialReservationLost   = errors.New("reservation no longer held")
	ErrPaymentReferenceRequired = errors.New("payment reference required")
	ErrPaymentReferenceConflict = errors.New("payment reference already used for other reservations")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrInvalidID                = errors.New("invalid id")
	ErrInvalidTTL               = errors.New("reservation ttl must be positive")
	ErrInvalidInterval          = errors.New("reaper interval must be positive")
	ErrEventNameRequired        = errors.New("event name required")
	ErrUnitNameRequired         = errors.New("unit name required")
	ErrInvalidCapacity          = errors.New("invalid capacity")
	ErrUnitAlreadyExists        = errors.New("unit already exists")
)

// InsufficientStockError reports how much stock was left when a Reserve was
// rejected. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, remaining %d", e.Requested, e.Remaining)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PartialReservationLostError means a paid batch can no longer be honoured in
// full because some reservations expired or were released first. It is not
// retryable and needs manual reconciliation.
type PartialReservationLostError struct {
	PaymentReference string
	Lost             []string
}

func (e *PartialReservationLostError) Error() string {
	return fmt.Sprintf("payment %s: %d reservation(s) no longer held: %s",
		e.PaymentReference, len(e.Lost), strings.Join(e.Lost, ","))
}

func (e *PartialReservationLostError) Is(target error) bool {
	return target == ErrPartialReservationLost
}
