package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Services bundles what the router dispatches to. Catalog and Expiry may be
// nil, in which case their routes are not mounted.
type Services struct {
	Stock        StockReader
	Reservations Reserver
	Settlement   Settler
	Expiry       Expirer
	Catalog      CatalogService
}

type RouterOptions struct {
	ServiceName string
	Logger      *logrus.Logger
	CORSOrigins []string
	// InternalToken guards /internal and /admin. Both are left unmounted when
	// it is empty.
	InternalToken string
	// StripeWebhookSecret enables /webhooks/stripe when set.
	StripeWebhookSecret string
	// Ready backs /ready. Nil leaves the route unmounted.
	Ready Pinger
}

// NewRouter wires every route and wraps the result in the CORS policy.
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	v := NewValidator()

	router := mux.NewRouter()
	router.NotFoundHandler = NotFoundHandler()
	router.MethodNotAllowedHandler = MethodNotAllowedHandler()
	router.Use(
		otelmux.Middleware(opts.ServiceName),
		RequestLogger(logger),
	)

	router.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	if opts.Ready != nil {
		router.Handle("/ready", HandleReady(opts.Ready, logger)).Methods(http.MethodGet)
	}
	router.Handle("/units/{unitID}/stock", HandleStock(svc.Stock, logger)).Methods(http.MethodGet)
	router.Handle("/events/{eventID}/units", HandleEventStock(svc.Stock, logger)).Methods(http.MethodGet)
	router.Handle("/units/{unitID}/reservations", HandleReserve(svc.Reservations, v, logger)).Methods(http.MethodPost)

	if opts.StripeWebhookSecret != "" {
		router.Handle("/webhooks/stripe", HandleStripeWebhook(svc.Settlement, opts.StripeWebhookSecret, logger)).Methods(http.MethodPost)
	}

	if opts.InternalToken != "" {
		internal := router.PathPrefix("/internal/reservations").Subrouter()
		internal.Use(RequireBearer(opts.InternalToken))
		internal.Handle("/finalize", HandleFinalize(svc.Settlement, v, logger)).Methods(http.MethodPost)
		internal.Handle("/release", HandleRelease(svc.Settlement, v, logger)).Methods(http.MethodPost)
		if svc.Expiry != nil {
			internal.Handle("/expire", HandleExpire(svc.Expiry, v, logger)).Methods(http.MethodPost)
		}

		if svc.Catalog != nil {
			admin := router.PathPrefix("/admin").Subrouter()
			admin.Use(RequireBearer(opts.InternalToken))
			admin.Handle("/events", HandleListEvents(svc.Catalog, logger)).Methods(http.MethodGet)
			admin.Handle("/events", HandleCreateEvent(svc.Catalog, v, logger)).Methods(http.MethodPost)
			admin.Handle("/events/{eventID}/units", HandleListUnits(svc.Catalog, logger)).Methods(http.MethodGet)
			admin.Handle("/events/{eventID}/units", HandleCreateUnit(svc.Catalog, v, logger)).Methods(http.MethodPost)
		}
	}

	return CORS(opts.CORSOrigins, router)
}
