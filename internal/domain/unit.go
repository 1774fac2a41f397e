package domain

import "time"

// SellableUnit is an upgrade product offered for one event. Capacity is the
// total number of units that may ever be held or sold.
type SellableUnit struct {
	ID        string
	EventID   string
	Name      string
	Capacity  int
	CreatedAt time.Time
}
