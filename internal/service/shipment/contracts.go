package shipment

import (
	"context"
	"time"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/ports/trackingtx"
)

type shipmentStore interface {
	trackingtx.Runner
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	GetShipmentByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error)
	ListShipments(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error)
	ListEvents(ctx context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error)
}

type laneRunner interface {
	Do(ctx context.Context, key string, fn func() error) error
}

type routeFinalizer interface {
	Finalize(ctx context.Context, tx trackingtx.Repository, shipmentID string, end time.Time) error
}

type codeAssigner interface {
	NewShipmentCode() (string, error)
	MaxAttempts() int
	AssignTx(ctx context.Context, tx trackingtx.Repository, shipmentID string, items []domain.LineItem) (int, error)
}

type publisher interface {
	Publish(ev domain.Event)
}
