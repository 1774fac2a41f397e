package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	codeMethodNotAllowed         = "method_not_allowed"
	codeNotFound                 = "not_found"
	codeInvalidRequestBody       = "invalid_request_body"
	codeValidationFailed         = "validation_failed"
	codeInvalidStartsAt          = "invalid_starts_at"
	codeInvalidID                = "invalid_id"
	codeEventNameRequired        = "event_name_required"
	codeUnitNameRequired         = "unit_name_required"
	codeInvalidQuantity          = "invalid_quantity"
	codeInvalidCapacity          = "invalid_capacity"
	codeNoReservations           = "no_reservations"
	codeMixedUnits               = "mixed_units"
	codePaymentReferenceRequired = "payment_reference_required"
	codePaymentReferenceConflict = "payment_reference_conflict"
	codeIdempotencyConflict      = "idempotency_conflict"
	codeRequestKeySpent          = "request_key_spent"
	codeBatchTooLarge            = "batch_too_large"
	codeInsufficientStock        = "insufficient_stock"
	codePartialReservationLost   = "partial_reservation_lost"
	codeUnitNotFound             = "unit_not_found"
	codeEventNotFound            = "event_not_found"
	codeReservationNotFound      = "reservation_not_found"
	codeUnitAlreadyExists        = "unit_already_exists"
	codeUnauthorized             = "unauthorized"
	codeInvalidSignature         = "invalid_signature"
	codeStoreUnavailable         = "store_unavailable"
	codeInternalError            = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorDetails(w, status, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error:   msg,
		Code:    code,
		Details: details,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type insufficientStockDetails struct {
	Requested int `json:"requested"`
	Remaining int `json:"remaining"`
}

type reservationLostDetails struct {
	PaymentReference string   `json:"payment_reference"`
	Lost             []string `json:"lost"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrNoReservations, http.StatusBadRequest, codeNoReservations},
	{domain.ErrMixedUnits, http.StatusBadRequest, codeMixedUnits},
	{domain.ErrBatchTooLarge, http.StatusBadRequest, codeBatchTooLarge},
	{domain.ErrPaymentReferenceRequired, http.StatusBadRequest, codePaymentReferenceRequired},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrUnitNameRequired, http.StatusBadRequest, codeUnitNameRequired},
	{domain.ErrInvalidCapacity, http.StatusBadRequest, codeInvalidCapacity},
	{domain.ErrUnitNotFound, http.StatusNotFound, codeUnitNotFound},
	{domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{domain.ErrReservationNotFound, http.StatusNotFound, codeReservationNotFound},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrRequestKeySpent, http.StatusConflict, codeRequestKeySpent},
	{domain.ErrPaymentReferenceConflict, http.StatusConflict, codePaymentReferenceConflict},
	{domain.ErrUnitAlreadyExists, http.StatusConflict, codeUnitAlreadyExists},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable},
}

// writeServiceError maps an error returned by the app layer onto the JSON
// error envelope. Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeErrorDetails(w, http.StatusConflict, codeInsufficientStock, stockErr.Error(), insufficientStockDetails{
			Requested: stockErr.Requested,
			Remaining: stockErr.Remaining,
		})
		return
	}
	var lostErr *domain.PartialReservationLostError
	if errors.As(err, &lostErr) {
		writeErrorDetails(w, http.StatusConflict, codePartialReservationLost, lostErr.Error(), reservationLostDetails{
			PaymentReference: lostErr.PaymentReference,
			Lost:             lostErr.Lost,
		})
		return
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.status == http.StatusServiceUnavailable {
				logger.WithContext(r.Context()).WithError(err).Warn("store unavailable")
			}
			writeError(w, e.status, e.code, msg)
			return
		}
	}

	logger.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("unhandled error")
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
