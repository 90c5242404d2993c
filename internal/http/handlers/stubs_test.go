package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shipment-tracker/internal/domain"
)

type stubShipmentUsecase struct {
	createFn     func(ctx context.Context, in domain.NewShipment, actor string) (*domain.Shipment, error)
	transitionFn func(ctx context.Context, req domain.TransitionRequest) (*domain.Shipment, error)
	listFn       func(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error)
	eventsFn     func(ctx context.Context, id string, after int64, limit int) ([]domain.Event, error)
}

func (s *stubShipmentUsecase) Create(ctx context.Context, in domain.NewShipment, actor string) (*domain.Shipment, error) {
	if s.createFn == nil {
		panic("Create not expected in this test")
	}
	return s.createFn(ctx, in, actor)
}

func (s *stubShipmentUsecase) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Shipment, error) {
	if s.transitionFn == nil {
		panic("Transition not expected in this test")
	}
	return s.transitionFn(ctx, req)
}

func (s *stubShipmentUsecase) List(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error) {
	if s.listFn == nil {
		panic("List not expected in this test")
	}
	return s.listFn(ctx, f)
}

func (s *stubShipmentUsecase) Events(ctx context.Context, id string, after int64, limit int) ([]domain.Event, error) {
	if s.eventsFn == nil {
		panic("Events not expected in this test")
	}
	return s.eventsFn(ctx, id, after, limit)
}

type stubReader struct {
	getFn    func(ctx context.Context, id string) (*domain.Shipment, error)
	byCodeFn func(ctx context.Context, code string) (*domain.Shipment, error)
}

func (s *stubReader) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	if s.getFn == nil {
		panic("Get not expected in this test")
	}
	return s.getFn(ctx, id)
}

func (s *stubReader) GetByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error) {
	if s.byCodeFn == nil {
		panic("GetByTrackingCode not expected in this test")
	}
	return s.byCodeFn(ctx, code)
}

type stubIngest struct {
	fn func(ctx context.Context, s domain.LocationSample) (domain.IngestResult, error)
}

func (s *stubIngest) Ingest(ctx context.Context, sample domain.LocationSample) (domain.IngestResult, error) {
	return s.fn(ctx, sample)
}

type stubCodes struct {
	assignFn  func(ctx context.Context, orderID, shipmentID string, items []domain.LineItem) ([]domain.TrackingCode, error)
	listFn    func(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error)
	resolveFn func(ctx context.Context, vendorID, code string) (*domain.VendorTracking, error)
}

func (s *stubCodes) Assign(ctx context.Context, orderID, shipmentID string, items []domain.LineItem) ([]domain.TrackingCode, error) {
	return s.assignFn(ctx, orderID, shipmentID, items)
}

func (s *stubCodes) ListForShipment(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error) {
	return s.listFn(ctx, shipmentID)
}

func (s *stubCodes) ResolveForVendor(ctx context.Context, vendorID, code string) (*domain.VendorTracking, error) {
	return s.resolveFn(ctx, vendorID, code)
}

type stubRoutes struct {
	planFn func(ctx context.Context, id string, points []domain.Waypoint, est *int) (*domain.RouteRecord, error)
	getFn  func(ctx context.Context, id string) ([]domain.RouteRecord, error)
}

func (s *stubRoutes) Plan(ctx context.Context, id string, points []domain.Waypoint, est *int) (*domain.RouteRecord, error) {
	return s.planFn(ctx, id, points, est)
}

func (s *stubRoutes) Get(ctx context.Context, id string) ([]domain.RouteRecord, error) {
	return s.getFn(ctx, id)
}

// withParams attaches chi URL params to r.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
