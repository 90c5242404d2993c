package route

import (
	"context"
	"fmt"
	"math"
	"time"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/ports/trackingtx"
)

// Config holds waypoint compression thresholds.
type Config struct {
	MinDistanceMeters float64
	MinInterval       time.Duration
}

// Recorder keeps planned and actual routes of shipments.
type Recorder struct {
	store            routeStore
	cfg              Config
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(store routeStore, cfg Config, timeout time.Duration, logger logx.Logger) *Recorder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if cfg.MinDistanceMeters <= 0 {
		cfg.MinDistanceMeters = 50
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Recorder{
		store:            store,
		cfg:              cfg,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.operationTimeout)
}

// Track appends pos to the actual route when it is the first point, far
// enough from the previous one, or late enough after it. It runs inside the
// caller's transaction and reports whether a waypoint was added.
func (r *Recorder) Track(ctx context.Context, tx trackingtx.Repository, sh *domain.Shipment, pos domain.Position) (bool, error) {
	last, err := tx.LastWaypoint(ctx, sh.ID, domain.RouteActual)
	if err != nil {
		return false, err
	}
	if last != nil && !r.significant(*last, pos) {
		return false, nil
	}
	wp := domain.Waypoint{Lat: pos.Lat, Lon: pos.Lon, Status: sh.Status, RecordedAt: pos.RecordedAt}
	if err := tx.AppendWaypoint(ctx, sh.ID, domain.RouteActual, wp); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Recorder) significant(last domain.Waypoint, pos domain.Position) bool {
	if pos.RecordedAt.Sub(last.RecordedAt) >= r.cfg.MinInterval {
		return true
	}
	meters := domain.HaversineKm(last.Lat, last.Lon, pos.Lat, pos.Lon) * 1000
	return meters >= r.cfg.MinDistanceMeters
}

// Finalize derives distance and duration of the actual route once the
// shipment reached a terminal status. A finalized route is left as is.
func (r *Recorder) Finalize(ctx context.Context, tx trackingtx.Repository, shipmentID string, end time.Time) error {
	rec, err := tx.GetRoute(ctx, shipmentID, domain.RouteActual)
	if err != nil {
		return err
	}
	if rec.Finalized() {
		return nil
	}
	if rec == nil {
		rec = &domain.RouteRecord{ShipmentID: shipmentID, Type: domain.RouteActual}
	}

	dist := domain.PathDistanceKm(rec.Waypoints)
	rec.DistanceKm = &dist
	if start, ok := travelStart(rec.Waypoints); ok {
		minutes := int(math.Round(end.Sub(start).Minutes()))
		if minutes < 0 {
			minutes = 0
		}
		rec.ActualDurationMinutes = &minutes
	}
	at := end
	rec.FinalizedAt = &at

	if err := tx.SaveRoute(ctx, rec); err != nil {
		return err
	}
	r.logger.Info("route finalized",
		logx.String("event", "route_finalized"),
		logx.String("shipment_id", shipmentID),
		logx.Int("waypoints", len(rec.Waypoints)),
		logx.Float64("distance_km", dist),
	)
	return nil
}

// travelStart is the first point recorded while moving, or the first point at all.
func travelStart(wps []domain.Waypoint) (time.Time, bool) {
	if len(wps) == 0 {
		return time.Time{}, false
	}
	for _, wp := range wps {
		if wp.Status == domain.StatusInTransit || wp.Status == domain.StatusOutForDelivery {
			return wp.RecordedAt, true
		}
	}
	return wps[0].RecordedAt, true
}

// Plan replaces the planned route of a shipment that is still open.
func (r *Recorder) Plan(ctx context.Context, shipmentID string, points []domain.Waypoint, estimatedMinutes *int) (*domain.RouteRecord, error) {
	if shipmentID == "" || len(points) == 0 {
		return nil, apperr.ErrInvalid
	}
	if estimatedMinutes != nil && *estimatedMinutes < 0 {
		return nil, apperr.ErrInvalid
	}
	now := r.now()
	wps := make([]domain.Waypoint, 0, len(points))
	for _, p := range points {
		if !domain.ValidCoordinates(p.Lat, p.Lon) {
			return nil, apperr.ErrInvalid
		}
		at := p.RecordedAt
		if at.IsZero() {
			at = now
		}
		wps = append(wps, domain.Waypoint{
			Lat:        p.Lat.Round(domain.LatPrecision),
			Lon:        p.Lon.Round(domain.LonPrecision),
			RecordedAt: at.UTC(),
		})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	dist := domain.PathDistanceKm(wps)
	rec := &domain.RouteRecord{
		ShipmentID:               shipmentID,
		Type:                     domain.RoutePlanned,
		Waypoints:                wps,
		DistanceKm:               &dist,
		EstimatedDurationMinutes: estimatedMinutes,
	}
	err := r.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		sh, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh == nil {
			return apperr.ErrNotFound
		}
		if sh.Status.Terminal() {
			return apperr.ErrTerminalState
		}
		if err := tx.SaveRoute(ctx, rec); err != nil {
			return err
		}
		return tx.ReplaceWaypoints(ctx, shipmentID, domain.RoutePlanned, wps)
	})
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}
	return rec, nil
}

// Get returns the existing routes of a shipment.
func (r *Recorder) Get(ctx context.Context, shipmentID string) ([]domain.RouteRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sh, err := r.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return r.store.ListRoutes(ctx, shipmentID)
}
