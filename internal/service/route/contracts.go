package route

import (
	"context"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/ports/trackingtx"
)

// routeStore is the storage surface the recorder needs outside of other services' transactions.
type routeStore interface {
	trackingtx.Runner
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	ListRoutes(ctx context.Context, shipmentID string) ([]domain.RouteRecord, error)
}
