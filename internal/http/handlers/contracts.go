package handlers

import (
	"context"

	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/service/ingest"
	"shipment-tracker/internal/service/route"
	"shipment-tracker/internal/service/shipment"
	"shipment-tracker/internal/service/trackingcode"
)

type shipmentUsecase interface {
	Create(ctx context.Context, in domain.NewShipment, actor string) (*domain.Shipment, error)
	Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Shipment, error)
	List(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error)
	Events(ctx context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error)
}

// NewShipmentUsecase wires a shipment Service into a shipmentUsecase.
func NewShipmentUsecase(svc *shipment.Service) shipmentUsecase {
	return svc
}

// ShipmentReader serves shipment snapshots, possibly from a cache.
type ShipmentReader interface {
	Get(ctx context.Context, id string) (*domain.Shipment, error)
	GetByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error)
}

// snapshotReader reads shipments from the system of record, bypassing caches.
type snapshotReader interface {
	Get(ctx context.Context, id string) (*domain.Shipment, error)
}

// NewSnapshotReader wires a shipment Service into a snapshotReader.
func NewSnapshotReader(svc *shipment.Service) snapshotReader {
	return svc
}

type ingestUsecase interface {
	Ingest(ctx context.Context, sample domain.LocationSample) (domain.IngestResult, error)
}

// NewIngestUsecase wires an ingest Pipeline into an ingestUsecase.
func NewIngestUsecase(p *ingest.Pipeline) ingestUsecase {
	return p
}

type trackingCodeUsecase interface {
	Assign(ctx context.Context, orderID, shipmentID string, items []domain.LineItem) ([]domain.TrackingCode, error)
	ListForShipment(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error)
	ResolveForVendor(ctx context.Context, vendorID, code string) (*domain.VendorTracking, error)
}

// NewTrackingCodeUsecase wires a tracking code Registry into a trackingCodeUsecase.
func NewTrackingCodeUsecase(r *trackingcode.Registry) trackingCodeUsecase {
	return r
}

type routeUsecase interface {
	Plan(ctx context.Context, shipmentID string, points []domain.Waypoint, estimatedMinutes *int) (*domain.RouteRecord, error)
	Get(ctx context.Context, shipmentID string) ([]domain.RouteRecord, error)
}

// NewRouteUsecase wires a route Recorder into a routeUsecase.
func NewRouteUsecase(r *route.Recorder) routeUsecase {
	return r
}

type subscriber interface {
	Subscribe(scope distributor.Scope) (*distributor.Subscription, error)
}

// NewSubscriber wires the event Hub into a subscriber.
func NewSubscriber(h *distributor.Hub) subscriber {
	return h
}
