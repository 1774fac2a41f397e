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

// CatalogService is the minimal interface needed for the admin catalog endpoints.
type CatalogService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateUnit(ctx context.Context, in app.CreateUnitInput) (domain.SellableUnit, error)
	ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error)
}

func HandleListEvents(svc CatalogService, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		resp := make([]eventResponse, 0, len(events))
		for _, event := range events {
			resp = append(resp, toEventResponse(event))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateEvent(svc CatalogService, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEventRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		var startsAt *time.Time
		if req.StartsAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.StartsAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidStartsAt, "invalid starts_at format")
				return
			}
			startsAt = &parsed
		}

		event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
			Name:     req.Name,
			StartsAt: startsAt,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEventResponse(event))
	}
}

func HandleListUnits(svc CatalogService, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		units, err := svc.ListUnits(r.Context(), mux.Vars(r)["eventID"])
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		resp := make([]unitResponse, 0, len(units))
		for _, unit := range units {
			resp = append(resp, toUnitResponse(unit))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateUnit(svc CatalogService, v *validator.Validate, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUnitRequest
		if !decodeRequest(w, r, v, &req) {
			return
		}

		unit, err := svc.CreateUnit(r.Context(), app.CreateUnitInput{
			EventID:  mux.Vars(r)["eventID"],
			Name:     req.Name,
			Capacity: req.Capacity,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUnitResponse(unit))
	}
}

type createEventRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	StartsAt string `json:"starts_at,omitempty"`
}

type eventResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{ID: e.ID, Name: e.Name, StartsAt: e.StartsAt}
}

type createUnitRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

type unitResponse struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func toUnitResponse(u domain.SellableUnit) unitResponse {
	return unitResponse{ID: u.ID, EventID: u.EventID, Name: u.Name, Capacity: u.Capacity}
}
