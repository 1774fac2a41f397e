package domain

// ReservationCounts are the raw per-unit counts read from the store.
// Held excludes reservations whose hold has already lapsed.
type ReservationCounts struct {
	Sold int
	Held int
}

// StockSnapshot is the derived stock position of a sellable unit.
type StockSnapshot struct {
	UnitID    string
	Name      string
	Capacity  int
	Sold      int
	Held      int
	Remaining int
}

func NewStockSnapshot(unit SellableUnit, counts ReservationCounts) StockSnapshot {
	remaining := unit.Capacity - counts.Sold - counts.Held
	if remaining < 0 {
		remaining = 0
	}
	return StockSnapshot{
		UnitID:    unit.ID,
		Name:      unit.Name,
		Capacity:  unit.Capacity,
		Sold:      counts.Sold,
		Held:      counts.Held,
		Remaining: remaining,
	}
}
