package trackingtx

import (
	"context"
	"time"

	"shipment-tracker/internal/domain"
)

// Repository is the set of operations available inside a shipment transaction.
type Repository interface {
	CreateShipment(ctx context.Context, s *domain.Shipment) error
	InsertTrackingCode(ctx context.Context, tc *domain.TrackingCode) (bool, error)
	GetShipmentForUpdate(ctx context.Context, id string) (*domain.Shipment, error)
	UpdateStatus(ctx context.Context, s *domain.Shipment) error
	UpdatePosition(ctx context.Context, id string, pos domain.Position, receivedAt time.Time) error
	AppendEvent(ctx context.Context, ev *domain.Event) error
	LastWaypoint(ctx context.Context, shipmentID string, t domain.RouteType) (*domain.Waypoint, error)
	AppendWaypoint(ctx context.Context, shipmentID string, t domain.RouteType, wp domain.Waypoint) error
	GetRoute(ctx context.Context, shipmentID string, t domain.RouteType) (*domain.RouteRecord, error)
	SaveRoute(ctx context.Context, r *domain.RouteRecord) error
	ReplaceWaypoints(ctx context.Context, shipmentID string, t domain.RouteType, wps []domain.Waypoint) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// Store is the full storage surface: transactional operations through
// WithTx plus the order-insensitive reads and appends that need no lane.
type Store interface {
	Runner

	CreateShipment(ctx context.Context, s *domain.Shipment) error
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	GetShipmentByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error)
	ListShipments(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error)

	InsertSample(ctx context.Context, s *domain.LocationSample) (bool, error)
	ListSamples(ctx context.Context, shipmentID string) ([]domain.LocationSample, error)

	InsertTrackingCode(ctx context.Context, tc *domain.TrackingCode) (bool, error)
	GetTrackingCode(ctx context.Context, code string) (*domain.TrackingCode, error)
	ListTrackingCodes(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error)

	ListEvents(ctx context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error)
	ListRoutes(ctx context.Context, shipmentID string) ([]domain.RouteRecord, error)
}
