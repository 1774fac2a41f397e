package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/namdorg/engage-upgrades/internal/app"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

// Reserver is the minimal interface needed to reserve stock.
type Reserver interface {
	Reserve(ctx context.Context, in app.ReserveInput) (app.ReserveResult, error)
}

// StockReader is the minimal interface needed to report stock.
type StockReader interface {
	Snapshot(ctx context.Context, unitID string) (domain.StockSnapshot, error)
	EventStock(ctx context.Context, eventID string) ([]domain.StockSnapshot, error)
}

// HandleReserve returns an HTTP handler that holds stock on a unit.
func HandleReserve(svc Reserver, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			UnitID:     mux.Vars(r)["unitID"],
			Quantity:   req.Quantity,
			RequestKey: req.RequestKey,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, reserveResponse{
			ReservationIDs: res.ReservationIDs,
			Status:         string(res.Status),
			ExpiresAt:      res.ExpiresAt,
			Replayed:       res.Replayed,
		})
	}
}

// HandleStock returns an HTTP handler reporting remaining stock for a unit.
func HandleStock(svc StockReader, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), mux.Vars(r)["unitID"])
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toStockResponse(snap))
	}
}

// HandleEventStock returns an HTTP handler listing every unit of an event
// with its remaining stock.
func HandleEventStock(svc StockReader, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := mux.Vars(r)["eventID"]
		snaps, err := svc.EventStock(r.Context(), eventID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		units := make([]stockResponse, 0, len(snaps))
		for _, s := range snaps {
			units = append(units, toStockResponse(s))
		}
		writeJSON(w, http.StatusOK, eventStockResponse{EventID: eventID, Units: units})
	}
}

func toStockResponse(s domain.StockSnapshot) stockResponse {
	return stockResponse{
		UnitID:    s.UnitID,
		Name:      s.Name,
		Capacity:  s.Capacity,
		Sold:      s.Sold,
		Held:      s.Held,
		Remaining: s.Remaining,
	}
}

type reserveRequest struct {
	Quantity   int    `json:"quantity" validate:"required,gt=0,maxbatch"`
	RequestKey string `json:"request_key" validate:"omitempty,max=200"`
}

type reserveResponse struct {
	ReservationIDs []string  `json:"reservation_ids"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at"`
	Replayed       bool      `json:"replayed"`
}

type stockResponse struct {
	UnitID    string `json:"unit_id"`
	Name      string `json:"name,omitempty"`
	Capacity  int    `json:"capacity"`
	Sold      int    `json:"sold"`
	Held      int    `json:"held"`
	Remaining int    `json:"remaining"`
}

type eventStockResponse struct {
	EventID string          `json:"event_id"`
	Units   []stockResponse `json:"units"`
}
