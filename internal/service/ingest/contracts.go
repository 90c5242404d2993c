package ingest

import (
	"context"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/ports/trackingtx"
)

type sampleStore interface {
	trackingtx.Runner
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	InsertSample(ctx context.Context, s *domain.LocationSample) (bool, error)
}

type laneRunner interface {
	Do(ctx context.Context, key string, fn func() error) error
}

type routeTracker interface {
	Track(ctx context.Context, tx trackingtx.Repository, sh *domain.Shipment, pos domain.Position) (bool, error)
}

type publisher interface {
	Publish(ev domain.Event)
}
