package repository

import (
	"context"
	"fmt"

	"shipment-tracker/internal/domain"
)

// InsertSample appends a raw sample. It returns false when the exact same
// sample was already stored.
func (r *Store) InsertSample(ctx context.Context, s *domain.LocationSample) (bool, error) {
	err := r.db.QueryRow(ctx, `
        INSERT INTO location_samples (shipment_id, device_id, lat, lon, accuracy, speed, heading, altitude,
                                      battery_level, is_offline_replay, recorded_at, received_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (shipment_id, device_id, recorded_at, lat, lon) DO NOTHING
        RETURNING id
    `, s.ShipmentID, s.DeviceID, s.Lat, s.Lon, s.Accuracy, s.Speed, s.Heading, s.Altitude,
		s.BatteryLevel, s.IsOfflineReplay, s.RecordedAt, s.ReceivedAt).Scan(&s.ID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert sample: %w", err)
	}
	return true, nil
}

// ListSamples returns every stored sample of a shipment ordered by device time.
func (r *Store) ListSamples(ctx context.Context, shipmentID string) ([]domain.LocationSample, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, shipment_id, device_id, lat, lon, accuracy, speed, heading, altitude,
               battery_level, is_offline_replay, recorded_at, received_at
        FROM location_samples
        WHERE shipment_id = $1
        ORDER BY recorded_at, id
    `, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list samples %q: %w", shipmentID, err)
	}
	defer rows.Close()

	var out []domain.LocationSample
	for rows.Next() {
		var s domain.LocationSample
		if err := rows.Scan(&s.ID, &s.ShipmentID, &s.DeviceID, &s.Lat, &s.Lon, &s.Accuracy, &s.Speed,
			&s.Heading, &s.Altitude, &s.BatteryLevel, &s.IsOfflineReplay, &s.RecordedAt, &s.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Normalize()
		out = append(out, s)
	}
	return out, rows.Err()
}
