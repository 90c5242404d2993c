// Package memstore keeps tracking data in process memory. It follows the
// semantics of the PostgreSQL store and is used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/ports/trackingtx"
)

type sampleKey struct {
	shipmentID string
	deviceID   string
	recordedAt int64
	lat, lon   string
}

type routeKey struct {
	shipmentID string
	routeType  domain.RouteType
}

// Store is an in-memory trackingtx.Store. Transactions are serialized.
type Store struct {
	mu sync.RWMutex

	shipments map[string]*domain.Shipment
	byCode    map[string]string

	samples      map[string][]domain.LocationSample
	sampleKeys   map[sampleKey]struct{}
	nextSampleID int64

	codes      map[string]domain.TrackingCode
	codesByKey map[[3]string]string

	events map[string][]domain.Event
	routes map[routeKey]*domain.RouteRecord
}

var _ trackingtx.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		shipments:  make(map[string]*domain.Shipment),
		byCode:     make(map[string]string),
		samples:    make(map[string][]domain.LocationSample),
		sampleKeys: make(map[sampleKey]struct{}),
		codes:      make(map[string]domain.TrackingCode),
		codesByKey: make(map[[3]string]string),
		events:     make(map[string][]domain.Event),
		routes:     make(map[routeKey]*domain.RouteRecord),
	}
}

// WithTx runs fn with exclusive access. Changes made through tx are undone
// when fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(tx trackingtx.Repository) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txRepo{s: s, undo: make(map[string]*snapshot)}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// CreateShipment stores a new shipment. A taken id or tracking code is apperr.ErrConflict.
func (s *Store) CreateShipment(_ context.Context, sh *domain.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createShipment(sh)
}

func (s *Store) createShipment(sh *domain.Shipment) error {
	if _, ok := s.shipments[sh.ID]; ok {
		return apperr.ErrConflict
	}
	if _, ok := s.byCode[sh.TrackingCode]; ok {
		return apperr.ErrConflict
	}
	cp := cloneShipment(sh)
	cp.VendorIDs = nil
	s.shipments[sh.ID] = cp
	s.byCode[sh.TrackingCode] = sh.ID
	return nil
}

// GetShipment returns a copy of the shipment, or nil.
func (s *Store) GetShipment(_ context.Context, id string) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(id), nil
}

// GetShipmentByTrackingCode returns a copy of the shipment with the given order-level code, or nil.
func (s *Store) GetShipmentByTrackingCode(_ context.Context, code string) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	return s.view(id), nil
}

// ListShipments returns shipments matching f, most recently updated first.
func (s *Store) ListShipments(_ context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Shipment, 0)
	for id, sh := range s.shipments {
		if f.Status != nil && sh.Status != *f.Status {
			continue
		}
		v := s.view(id)
		if f.VendorID != "" && !v.HasVendor(f.VendorID) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Shipment{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// InsertSample appends a sample. Exact duplicates are ignored and reported as false.
func (s *Store) InsertSample(_ context.Context, sample *domain.LocationSample) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[sample.ShipmentID]; !ok {
		return false, apperr.ErrNotFound
	}
	k := sampleKey{
		shipmentID: sample.ShipmentID,
		deviceID:   sample.DeviceID,
		recordedAt: sample.RecordedAt.UnixNano(),
		lat:        sample.Lat.String(),
		lon:        sample.Lon.String(),
	}
	if _, ok := s.sampleKeys[k]; ok {
		return false, nil
	}
	s.nextSampleID++
	sample.ID = s.nextSampleID
	s.sampleKeys[k] = struct{}{}
	s.samples[sample.ShipmentID] = append(s.samples[sample.ShipmentID], *sample)
	return true, nil
}

// ListSamples returns the samples of a shipment ordered by device time.
func (s *Store) ListSamples(_ context.Context, shipmentID string) ([]domain.LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.LocationSample(nil), s.samples[shipmentID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InsertTrackingCode stores a code. It returns false if the triple already
// has one and apperr.ErrConflict if the code is taken.
func (s *Store) InsertTrackingCode(_ context.Context, tc *domain.TrackingCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTrackingCode(tc)
}

func (s *Store) insertTrackingCode(tc *domain.TrackingCode) (bool, error) {
	if _, ok := s.shipments[tc.ShipmentID]; !ok {
		return false, apperr.ErrNotFound
	}
	key := [3]string{tc.ShipmentID, tc.ProductID, tc.VendorID}
	if _, ok := s.codesByKey[key]; ok {
		return false, nil
	}
	if _, ok := s.codes[tc.Code]; ok {
		return false, apperr.ErrConflict
	}
	s.codes[tc.Code] = *tc
	s.codesByKey[key] = tc.Code
	return true, nil
}

// GetTrackingCode returns a code by value, or nil.
func (s *Store) GetTrackingCode(_ context.Context, code string) (*domain.TrackingCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	return &tc, nil
}

// ListTrackingCodes returns the codes of a shipment ordered by vendor and product.
func (s *Store) ListTrackingCodes(_ context.Context, shipmentID string) ([]domain.TrackingCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codesOf(shipmentID), nil
}

// ListEvents returns events of a shipment with seq > afterSeq.
func (s *Store) ListEvents(_ context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0)
	for _, ev := range s.events[shipmentID] {
		if ev.Seq <= afterSeq {
			continue
		}
		out = append(out, cloneEvent(ev))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListRoutes returns the existing planned and actual routes of a shipment.
func (s *Store) ListRoutes(_ context.Context, shipmentID string) ([]domain.RouteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.RouteRecord
	for _, t := range []domain.RouteType{domain.RoutePlanned, domain.RouteActual} {
		if r, ok := s.routes[routeKey{shipmentID, t}]; ok {
			out = append(out, *cloneRoute(r))
		}
	}
	return out, nil
}

func (s *Store) codesOf(shipmentID string) []domain.TrackingCode {
	var out []domain.TrackingCode
	for _, tc := range s.codes {
		if tc.ShipmentID == shipmentID {
			out = append(out, tc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VendorID != out[j].VendorID {
			return out[i].VendorID < out[j].VendorID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// view returns a detached copy of a shipment with vendor ids filled in. Callers hold mu.
func (s *Store) view(id string) *domain.Shipment {
	sh, ok := s.shipments[id]
	if !ok {
		return nil
	}
	cp := cloneShipment(sh)
	var vendors []string
	for _, tc := range s.codesOf(id) {
		if len(vendors) == 0 || vendors[len(vendors)-1] != tc.VendorID {
			vendors = append(vendors, tc.VendorID)
		}
	}
	cp.VendorIDs = vendors
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePosition(p *domain.Position) *domain.Position {
	if p == nil {
		return nil
	}
	v := *p
	v.Accuracy = cloneFloat(p.Accuracy)
	v.Heading = cloneFloat(p.Heading)
	v.Speed = cloneFloat(p.Speed)
	v.Altitude = cloneFloat(p.Altitude)
	v.BatteryLevel = cloneFloat(p.BatteryLevel)
	return &v
}

func cloneShipment(sh *domain.Shipment) *domain.Shipment {
	v := *sh
	v.CarrierID = cloneString(sh.CarrierID)
	v.DeliveryPersonID = cloneString(sh.DeliveryPersonID)
	v.CurrentPosition = clonePosition(sh.CurrentPosition)
	v.LastLocationUpdate = cloneTime(sh.LastLocationUpdate)
	v.EstimatedDelivery = cloneTime(sh.EstimatedDelivery)
	v.ActualDelivery = cloneTime(sh.ActualDelivery)
	v.VendorIDs = append([]string(nil), sh.VendorIDs...)
	return &v
}

func cloneEvent(ev domain.Event) domain.Event {
	ev.Position = clonePosition(ev.Position)
	ev.VendorIDs = append([]string(nil), ev.VendorIDs...)
	return ev
}

func cloneRoute(r *domain.RouteRecord) *domain.RouteRecord {
	v := *r
	v.Waypoints = append([]domain.Waypoint(nil), r.Waypoints...)
	v.DistanceKm = cloneFloat(r.DistanceKm)
	if r.EstimatedDurationMinutes != nil {
		m := *r.EstimatedDurationMinutes
		v.EstimatedDurationMinutes = &m
	}
	if r.ActualDurationMinutes != nil {
		m := *r.ActualDurationMinutes
		v.ActualDurationMinutes = &m
	}
	v.FinalizedAt = cloneTime(r.FinalizedAt)
	return &v
}
