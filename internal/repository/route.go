package repository

import (
	"context"
	"fmt"

	"shipment-tracker/internal/domain"
)

func ensureRoute(ctx context.Context, q querier, shipmentID string, t domain.RouteType) error {
	_, err := q.Exec(ctx, `
        INSERT INTO routes (shipment_id, route_type) VALUES ($1, $2)
        ON CONFLICT (shipment_id, route_type) DO NOTHING
    `, shipmentID, string(t))
	if err != nil {
		return fmt.Errorf("ensure route %q/%s: %w", shipmentID, t, err)
	}
	return nil
}

func listWaypoints(ctx context.Context, q querier, shipmentID string, t domain.RouteType) ([]domain.Waypoint, error) {
	rows, err := q.Query(ctx, `
        SELECT lat, lon, status, recorded_at
        FROM route_waypoints
        WHERE shipment_id = $1 AND route_type = $2
        ORDER BY seq
    `, shipmentID, string(t))
	if err != nil {
		return nil, fmt.Errorf("list waypoints %q/%s: %w", shipmentID, t, err)
	}
	defer rows.Close()

	var out []domain.Waypoint
	for rows.Next() {
		var (
			wp     domain.Waypoint
			status string
		)
		if err := rows.Scan(&wp.Lat, &wp.Lon, &status, &wp.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		wp.Status = domain.ShipmentStatus(status)
		wp.RecordedAt = wp.RecordedAt.UTC()
		out = append(out, wp)
	}
	return out, rows.Err()
}

func getRoute(ctx context.Context, q querier, shipmentID string, t domain.RouteType) (*domain.RouteRecord, error) {
	r := domain.RouteRecord{ShipmentID: shipmentID, Type: t}
	err := q.QueryRow(ctx, `
        SELECT distance_km, estimated_duration_minutes, actual_duration_minutes, finalized_at
        FROM routes
        WHERE shipment_id = $1 AND route_type = $2
    `, shipmentID, string(t)).Scan(&r.DistanceKm, &r.EstimatedDurationMinutes, &r.ActualDurationMinutes, &r.FinalizedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get route %q/%s: %w", shipmentID, t, err)
	}
	wps, err := listWaypoints(ctx, q, shipmentID, t)
	if err != nil {
		return nil, err
	}
	r.Waypoints = wps
	return &r, nil
}

// LastWaypoint - returns the newest waypoint of a route, or nil.
func (r *TxRepo) LastWaypoint(ctx context.Context, shipmentID string, t domain.RouteType) (*domain.Waypoint, error) {
	var (
		wp     domain.Waypoint
		status string
	)
	err := r.tx.QueryRow(ctx, `
        SELECT lat, lon, status, recorded_at
        FROM route_waypoints
        WHERE shipment_id = $1 AND route_type = $2
        ORDER BY seq DESC
        LIMIT 1
    `, shipmentID, string(t)).Scan(&wp.Lat, &wp.Lon, &status, &wp.RecordedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last waypoint %q/%s: %w", shipmentID, t, err)
	}
	wp.Status = domain.ShipmentStatus(status)
	wp.RecordedAt = wp.RecordedAt.UTC()
	return &wp, nil
}

// AppendWaypoint - adds a waypoint at the end of a route, creating the route if needed.
func (r *TxRepo) AppendWaypoint(ctx context.Context, shipmentID string, t domain.RouteType, wp domain.Waypoint) error {
	if err := ensureRoute(ctx, r.tx, shipmentID, t); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `
        INSERT INTO route_waypoints (shipment_id, route_type, seq, lat, lon, status, recorded_at)
        SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6
        FROM route_waypoints
        WHERE shipment_id = $1 AND route_type = $2
    `, shipmentID, string(t), wp.Lat, wp.Lon, string(wp.Status), wp.RecordedAt)
	if err != nil {
		return fmt.Errorf("append waypoint %q/%s: %w", shipmentID, t, err)
	}
	return nil
}

// GetRoute - returns a route with its waypoints, or nil.
func (r *TxRepo) GetRoute(ctx context.Context, shipmentID string, t domain.RouteType) (*domain.RouteRecord, error) {
	return getRoute(ctx, r.tx, shipmentID, t)
}

// SaveRoute - upserts the route header. Waypoints are left untouched.
func (r *TxRepo) SaveRoute(ctx context.Context, rec *domain.RouteRecord) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO routes (shipment_id, route_type, distance_km, estimated_duration_minutes,
                            actual_duration_minutes, finalized_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (shipment_id, route_type) DO UPDATE
        SET distance_km = EXCLUDED.distance_km,
            estimated_duration_minutes = EXCLUDED.estimated_duration_minutes,
            actual_duration_minutes = EXCLUDED.actual_duration_minutes,
            finalized_at = EXCLUDED.finalized_at
    `, rec.ShipmentID, string(rec.Type), rec.DistanceKm, rec.EstimatedDurationMinutes,
		rec.ActualDurationMinutes, rec.FinalizedAt)
	if err != nil {
		return fmt.Errorf("save route %q/%s: %w", rec.ShipmentID, rec.Type, err)
	}
	return nil
}

// ReplaceWaypoints - swaps all waypoints of a route for wps.
func (r *TxRepo) ReplaceWaypoints(ctx context.Context, shipmentID string, t domain.RouteType, wps []domain.Waypoint) error {
	if err := ensureRoute(ctx, r.tx, shipmentID, t); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `
        DELETE FROM route_waypoints WHERE shipment_id = $1 AND route_type = $2
    `, shipmentID, string(t)); err != nil {
		return fmt.Errorf("clear waypoints %q/%s: %w", shipmentID, t, err)
	}
	for i, wp := range wps {
		if _, err := r.tx.Exec(ctx, `
            INSERT INTO route_waypoints (shipment_id, route_type, seq, lat, lon, status, recorded_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, shipmentID, string(t), i+1, wp.Lat, wp.Lon, string(wp.Status), wp.RecordedAt); err != nil {
			return fmt.Errorf("insert waypoint %q/%s: %w", shipmentID, t, err)
		}
	}
	return nil
}

// ListRoutes returns the planned and actual routes of a shipment that exist.
func (r *Store) ListRoutes(ctx context.Context, shipmentID string) ([]domain.RouteRecord, error) {
	var out []domain.RouteRecord
	for _, t := range []domain.RouteType{domain.RoutePlanned, domain.RouteActual} {
		rec, err := getRoute(ctx, r.db, shipmentID, t)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
