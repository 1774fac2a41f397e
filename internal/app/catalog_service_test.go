package app

import (
	"context"
	"testing"
	"time"

	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogRepo struct {
	createdEvent domain.Event
	createdUnit  domain.SellableUnit

	createEventErr error
	createUnitErr  error
}

func (f *fakeCatalogRepo) CreateEvent(_ context.Context, event domain.Event) error {
	f.createdEvent = event
	return f.createEventErr
}

func (f *fakeCatalogRepo) ListEvents(_ context.Context) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) CreateUnit(_ context.Context, unit domain.SellableUnit) error {
	f.createdUnit = unit
	return f.createUnitErr
}

func (f *fakeCatalogRepo) ListUnitsByEvent(_ context.Context, _ string) ([]domain.SellableUnit, error) {
	return nil, nil
}

func TestCatalogService_CreateEvent_DefaultStartsAt(t *testing.T) {
	repo := &fakeCatalogRepo{}
	now := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	svc := NewCatalogService(repo, clock.NewFixed(now))

	got, err := svc.CreateEvent(context.Background(), CreateEventInput{Name: "Arena Night"})
	require.NoError(t, err)
	assert.Equal(t, "Arena Night", got.Name)
	assert.Equal(t, now, got.StartsAt)
	assert.NotEmpty(t, repo.createdEvent.ID)
}

func TestCatalogService_CreateEvent_ValidatesName(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogRepo{}, clock.NewFixed(time.Now()))

	_, err := svc.CreateEvent(context.Background(), CreateEventInput{Name: ""})
	assert.ErrorIs(t, err, domain.ErrEventNameRequired)
}

func TestCatalogService_CreateUnit(t *testing.T) {
	repo := &fakeCatalogRepo{}
	svc := NewCatalogService(repo, clock.NewFixed(time.Now()))
	ctx := context.Background()

	unit, err := svc.CreateUnit(ctx, CreateUnitInput{EventID: "event", Name: "VIP soundcheck", Capacity: 25})
	require.NoError(t, err)
	assert.Equal(t, 25, unit.Capacity)
	assert.Equal(t, unit.ID, repo.createdUnit.ID)

	_, err = svc.CreateUnit(ctx, CreateUnitInput{EventID: "", Name: "VIP", Capacity: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.CreateUnit(ctx, CreateUnitInput{EventID: "event", Name: "", Capacity: 10})
	assert.ErrorIs(t, err, domain.ErrUnitNameRequired)

	_, err = svc.CreateUnit(ctx, CreateUnitInput{EventID: "event", Name: "VIP", Capacity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	repo.createUnitErr = domain.ErrEventNotFound
	_, err = svc.CreateUnit(ctx, CreateUnitInput{EventID: "event", Name: "VIP", Capacity: 10})
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}
