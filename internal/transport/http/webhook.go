package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/namdorg/engage-upgrades/internal/app"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	maxWebhookBody = 64 << 10

	metadataReservationIDs  = "reservation_ids"
	metadataBuyerReference  = "buyer_reference"
	metadataAttributePrefix = "attr_"
)

// HandleStripeWebhook settles reservations from Stripe payment intent events.
// Only a store outage or an unexpected failure is answered with a 5xx, since
// those are the cases a redelivery can fix.
func HandleStripeWebhook(svc Settler, secret string, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			logger.WithContext(r.Context()).WithError(err).Warn("stripe webhook rejected")
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "invalid signature")
			return
		}

		log := logger.WithContext(r.Context()).WithFields(logrus.Fields{
			"stripe_event_id": event.ID,
			"stripe_event":    string(event.Type),
		})

		var handle func(pi stripe.PaymentIntent, ids []string) error
		switch string(event.Type) {
		case "payment_intent.succeeded":
			handle = func(pi stripe.PaymentIntent, ids []string) error {
				_, err := svc.Finalize(r.Context(), app.FinalizeInput{
					PaymentReference: pi.ID,
					ReservationIDs:   ids,
					BuyerReference:   pi.Metadata[metadataBuyerReference],
					Attributes:       metadataAttributes(pi.Metadata),
				})
				return err
			}
		case "payment_intent.payment_failed", "payment_intent.canceled":
			handle = func(_ stripe.PaymentIntent, ids []string) error {
				_, err := svc.Release(r.Context(), ids)
				return err
			}
		default:
			log.Debug("stripe event ignored")
			writeJSON(w, http.StatusOK, webhookResponse{Received: true})
			return
		}

		var pi stripe.PaymentIntent
		if event.Data == nil {
			log.Error("stripe event has no data")
			writeJSON(w, http.StatusOK, webhookResponse{Received: true})
			return
		}
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.WithError(err).Error("stripe payment intent payload unreadable")
			writeJSON(w, http.StatusOK, webhookResponse{Received: true})
			return
		}
		log = log.WithField("payment_intent", pi.ID)

		ids := splitIDs(pi.Metadata[metadataReservationIDs])
		if len(ids) == 0 {
			log.Error("payment intent carries no reservation ids")
			writeJSON(w, http.StatusOK, webhookResponse{Received: true})
			return
		}

		if err := handle(pi, ids); err != nil {
			switch {
			case errors.Is(err, domain.ErrStoreUnavailable):
				log.WithError(err).Warn("store unavailable, asking stripe to retry")
				writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "store unavailable")
				return
			case isPermanentSettlementError(err):
				// Redelivery cannot change the outcome; reconciliation is manual.
				log.WithError(err).Error("payment could not be settled")
				writeJSON(w, http.StatusOK, webhookResponse{Received: true})
				return
			default:
				log.WithError(err).Error("stripe webhook failed")
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
		}

		writeJSON(w, http.StatusOK, webhookResponse{Received: true})
	}
}

func isPermanentSettlementError(err error) bool {
	for _, target := range []error{
		domain.ErrPartialReservationLost,
		domain.ErrPaymentReferenceConflict,
		domain.ErrReservationNotFound,
		domain.ErrMixedUnits,
		domain.ErrInvalidID,
		domain.ErrNoReservations,
		domain.ErrBatchTooLarge,
		domain.ErrUnitNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func metadataAttributes(md map[string]string) map[string]string {
	var attrs map[string]string
	for k, v := range md {
		name, ok := strings.CutPrefix(k, metadataAttributePrefix)
		if !ok || name == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[name] = v
	}
	return attrs
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type webhookResponse struct {
	Received bool `json:"received"`
}
