package domain

import "time"

// Event represents a ticketed event whose upgrades are sold as sellable units.
type Event struct {
	ID       string
	Name     string
	StartsAt time.Time
}
