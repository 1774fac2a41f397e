package http

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/namdorg/engage-upgrades/internal/app"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

// Settler finalizes or releases reservations.
type Settler interface {
	Finalize(ctx context.Context, in app.FinalizeInput) (app.FinalizeResult, error)
	Release(ctx context.Context, reservationIDs []string) (app.ReleaseResult, error)
}

// Expirer releases specific reservations once their hold has lapsed.
type Expirer interface {
	ExpireReservations(ctx context.Context, reservationIDs []string) (int, error)
}

// HandleFinalize returns 201 when the reservations were sold by this call and
// 200 when the payment reference had already been applied.
func HandleFinalize(svc Settler, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		res, err := svc.Finalize(r.Context(), app.FinalizeInput{
			PaymentReference: req.PaymentReference,
			ReservationIDs:   req.ReservationIDs,
			BuyerReference:   req.BuyerReference,
			Attributes:       req.Attributes,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		writeJSON(w, status, finalizeResponse{
			ReservationIDs: res.ReservationIDs,
			Status:         string(domain.ReservationStatusSold),
			Replayed:       res.Replayed,
		})
	}
}

func HandleRelease(svc Settler, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reservationIDsRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		res, err := svc.Release(r.Context(), req.ReservationIDs)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		released := res.Released
		if released == nil {
			released = []string{}
		}
		writeJSON(w, http.StatusOK, releaseResponse{Released: released, Skipped: res.Skipped})
	}
}

// HandleExpire is the Cloud Tasks callback for scheduled expiries.
func HandleExpire(svc Expirer, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reservationIDsRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		n, err := svc.ExpireReservations(r.Context(), req.ReservationIDs)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, expireResponse{Released: n})
	}
}

type finalizeRequest struct {
	PaymentReference string            `json:"payment_reference" validate:"required,max=255"`
	ReservationIDs   []string          `json:"reservation_ids" validate:"required,min=1,maxbatch,dive,required"`
	BuyerReference   string            `json:"buyer_reference" validate:"omitempty,max=255"`
	Attributes       map[string]string `json:"attributes" validate:"omitempty,max=50"`
}

type reservationIDsRequest struct {
	ReservationIDs []string `json:"reservation_ids" validate:"required,min=1,max=500,dive,required"`
}

type finalizeResponse struct {
	ReservationIDs []string `json:"reservation_ids"`
	Status         string   `json:"status"`
	Replayed       bool     `json:"replayed"`
}

type releaseResponse struct {
	Released []string `json:"released"`
	Skipped  int      `json:"skipped"`
}

type expireResponse struct {
	Released int `json:"released"`
}
