package memstore

import (
	"context"
	"fmt"
	"time"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
)

// snapshot is the pre-transaction state of one shipment.
type snapshot struct {
	shipment *domain.Shipment
	events   int
	routes   map[domain.RouteType]*domain.RouteRecord
}

type txRepo struct {
	s     *Store
	undo  map[string]*snapshot
	codes []string
}

// touch records the state of a shipment before its first change in the tx.
func (t *txRepo) touch(id string) {
	if _, ok := t.undo[id]; ok {
		return
	}
	snap := &snapshot{events: len(t.s.events[id]), routes: make(map[domain.RouteType]*domain.RouteRecord)}
	if sh, ok := t.s.shipments[id]; ok {
		snap.shipment = cloneShipment(sh)
	}
	for _, rt := range []domain.RouteType{domain.RoutePlanned, domain.RouteActual} {
		if r, ok := t.s.routes[routeKey{id, rt}]; ok {
			snap.routes[rt] = cloneRoute(r)
		}
	}
	t.undo[id] = snap
}

func (t *txRepo) rollback() {
	for _, code := range t.codes {
		tc := t.s.codes[code]
		delete(t.s.codesByKey, [3]string{tc.ShipmentID, tc.ProductID, tc.VendorID})
		delete(t.s.codes, code)
	}
	for id, snap := range t.undo {
		if snap.shipment != nil {
			t.s.shipments[id] = snap.shipment
		} else if sh, ok := t.s.shipments[id]; ok {
			delete(t.s.byCode, sh.TrackingCode)
			delete(t.s.shipments, id)
		}
		t.s.events[id] = t.s.events[id][:snap.events]
		for _, rt := range []domain.RouteType{domain.RoutePlanned, domain.RouteActual} {
			if r, ok := snap.routes[rt]; ok {
				t.s.routes[routeKey{id, rt}] = r
			} else {
				delete(t.s.routes, routeKey{id, rt})
			}
		}
	}
}

func (t *txRepo) shipment(id string) (*domain.Shipment, error) {
	sh, ok := t.s.shipments[id]
	if !ok {
		return nil, fmt.Errorf("shipment %q: %w", id, apperr.ErrNotFound)
	}
	return sh, nil
}

func (t *txRepo) CreateShipment(_ context.Context, sh *domain.Shipment) error {
	if _, ok := t.s.shipments[sh.ID]; ok {
		return apperr.ErrConflict
	}
	t.touch(sh.ID)
	return t.s.createShipment(sh)
}

func (t *txRepo) InsertTrackingCode(_ context.Context, tc *domain.TrackingCode) (bool, error) {
	ok, err := t.s.insertTrackingCode(tc)
	if ok {
		t.codes = append(t.codes, tc.Code)
	}
	return ok, err
}

func (t *txRepo) GetShipmentForUpdate(_ context.Context, id string) (*domain.Shipment, error) {
	return t.s.view(id), nil
}

func (t *txRepo) UpdateStatus(_ context.Context, in *domain.Shipment) error {
	sh, err := t.shipment(in.ID)
	if err != nil {
		return err
	}
	if (in.Status == domain.StatusDelivered) != (in.ActualDelivery != nil) {
		return fmt.Errorf("shipment %q: actual delivery must be set exactly when delivered: %w", in.ID, apperr.ErrInvalid)
	}
	t.touch(in.ID)
	sh.Status = in.Status
	sh.ActualDelivery = cloneTime(in.ActualDelivery)
	sh.DeliveryNotes = in.DeliveryNotes
	sh.SignatureReference = in.SignatureReference
	sh.UpdatedAt = in.UpdatedAt
	return nil
}

func (t *txRepo) UpdatePosition(_ context.Context, id string, pos domain.Position, receivedAt time.Time) error {
	sh, err := t.shipment(id)
	if err != nil {
		return err
	}
	t.touch(id)
	sh.CurrentPosition = clonePosition(&pos)
	sh.LastLocationUpdate = &receivedAt
	sh.UpdatedAt = receivedAt
	return nil
}

func (t *txRepo) AppendEvent(_ context.Context, ev *domain.Event) error {
	sh, err := t.shipment(ev.ShipmentID)
	if err != nil {
		return err
	}
	t.touch(ev.ShipmentID)
	sh.EventSeq++
	ev.Seq = sh.EventSeq
	t.s.events[ev.ShipmentID] = append(t.s.events[ev.ShipmentID], cloneEvent(*ev))
	return nil
}

func (t *txRepo) route(shipmentID string, rt domain.RouteType) (*domain.RouteRecord, error) {
	if _, err := t.shipment(shipmentID); err != nil {
		return nil, err
	}
	t.touch(shipmentID)
	k := routeKey{shipmentID, rt}
	r, ok := t.s.routes[k]
	if !ok {
		r = &domain.RouteRecord{ShipmentID: shipmentID, Type: rt}
		t.s.routes[k] = r
	}
	return r, nil
}

func (t *txRepo) LastWaypoint(_ context.Context, shipmentID string, rt domain.RouteType) (*domain.Waypoint, error) {
	r, ok := t.s.routes[routeKey{shipmentID, rt}]
	if !ok || len(r.Waypoints) == 0 {
		return nil, nil
	}
	wp := r.Waypoints[len(r.Waypoints)-1]
	return &wp, nil
}

func (t *txRepo) AppendWaypoint(_ context.Context, shipmentID string, rt domain.RouteType, wp domain.Waypoint) error {
	r, err := t.route(shipmentID, rt)
	if err != nil {
		return err
	}
	r.Waypoints = append(r.Waypoints, wp)
	return nil
}

func (t *txRepo) GetRoute(_ context.Context, shipmentID string, rt domain.RouteType) (*domain.RouteRecord, error) {
	r, ok := t.s.routes[routeKey{shipmentID, rt}]
	if !ok {
		return nil, nil
	}
	return cloneRoute(r), nil
}

func (t *txRepo) SaveRoute(_ context.Context, in *domain.RouteRecord) error {
	r, err := t.route(in.ShipmentID, in.Type)
	if err != nil {
		return err
	}
	saved := cloneRoute(in)
	r.DistanceKm = saved.DistanceKm
	r.EstimatedDurationMinutes = saved.EstimatedDurationMinutes
	r.ActualDurationMinutes = saved.ActualDurationMinutes
	r.FinalizedAt = saved.FinalizedAt
	return nil
}

func (t *txRepo) ReplaceWaypoints(_ context.Context, shipmentID string, rt domain.RouteType, wps []domain.Waypoint) error {
	r, err := t.route(shipmentID, rt)
	if err != nil {
		return err
	}
	r.Waypoints = append([]domain.Waypoint(nil), wps...)
	return nil
}
