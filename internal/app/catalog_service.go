package app

import (
	"context"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
)

type CatalogRepository interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateUnit(ctx context.Context, unit domain.SellableUnit) error
	ListUnitsByEvent(ctx context.Context, eventID string) ([]domain.SellableUnit, error)
}

// CatalogService registers events and the upgrade units sold for them.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateEventInput struct {
	Name     string
	StartsAt *time.Time
}

func (s *CatalogService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	if in.Name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	startsAt := s.clock.Now()
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}

	event := domain.Event{
		ID:       newUUID(),
		Name:     in.Name,
		StartsAt: startsAt,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *CatalogService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

type CreateUnitInput struct {
	EventID  string
	Name     string
	Capacity int
}

func (s *CatalogService) CreateUnit(ctx context.Context, in CreateUnitInput) (domain.SellableUnit, error) {
	if in.EventID == "" {
		return domain.SellableUnit{}, domain.ErrInvalidID
	}
	if in.Name == "" {
		return domain.SellableUnit{}, domain.ErrUnitNameRequired
	}
	if in.Capacity <= 0 {
		return domain.SellableUnit{}, domain.ErrInvalidCapacity
	}

	unit := domain.SellableUnit{
		ID:        newUUID(),
		EventID:   in.EventID,
		Name:      in.Name,
		Capacity:  in.Capacity,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateUnit(ctx, unit); err != nil {
		return domain.SellableUnit{}, err
	}
	return unit, nil
}

func (s *CatalogService) ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListUnitsByEvent(ctx, eventID)
}
