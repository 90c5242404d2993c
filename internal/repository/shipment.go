package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
)

const shipmentColumns = `
    s.id, s.tracking_code, s.order_id, s.warehouse_id, s.carrier_id, s.delivery_person_id, s.status,
    s.lat, s.lon, s.accuracy, s.heading, s.speed, s.altitude, s.battery_level, s.position_recorded_at,
    s.last_location_update, s.estimated_delivery, s.actual_delivery,
    s.delivery_notes, s.signature_reference, s.event_seq, s.created_at, s.updated_at,
    ARRAY(SELECT DISTINCT tc.vendor_id FROM tracking_codes tc WHERE tc.shipment_id = s.id ORDER BY tc.vendor_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*domain.Shipment, error) {
	var (
		s          domain.Shipment
		status     string
		lat, lon   decimal.NullDecimal
		pos        domain.Position
		recordedAt *time.Time
	)
	err := row.Scan(
		&s.ID, &s.TrackingCode, &s.OrderID, &s.WarehouseID, &s.CarrierID, &s.DeliveryPersonID, &status,
		&lat, &lon, &pos.Accuracy, &pos.Heading, &pos.Speed, &pos.Altitude, &pos.BatteryLevel, &recordedAt,
		&s.LastLocationUpdate, &s.EstimatedDelivery, &s.ActualDelivery,
		&s.DeliveryNotes, &s.SignatureReference, &s.EventSeq, &s.CreatedAt, &s.UpdatedAt,
		&s.VendorIDs,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.ShipmentStatus(status)
	if lat.Valid && lon.Valid && recordedAt != nil {
		pos.Lat, pos.Lon, pos.RecordedAt = lat.Decimal, lon.Decimal, recordedAt.UTC()
		s.CurrentPosition = &pos
	}
	return &s, nil
}

func getShipment(ctx context.Context, q querier, where string, arg any, suffix string) (*domain.Shipment, error) {
	s, err := scanShipment(q.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments s WHERE `+where+suffix, arg))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// CreateShipment inserts a new shipment. A tracking code collision is an apperr.ErrConflict.
func (r *Store) CreateShipment(ctx context.Context, s *domain.Shipment) error {
	return createShipment(ctx, r.db, s)
}

// CreateShipment inserts a new shipment inside the transaction. A collision
// rolls back to a savepoint so the transaction stays usable.
func (r *TxRepo) CreateShipment(ctx context.Context, s *domain.Shipment) error {
	return savepoint(ctx, r.tx, func(q querier) error {
		return createShipment(ctx, q, s)
	})
}

func createShipment(ctx context.Context, q querier, s *domain.Shipment) error {
	_, err := q.Exec(ctx, `
        INSERT INTO shipments (id, tracking_code, order_id, warehouse_id, carrier_id, delivery_person_id,
                               status, estimated_delivery, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, s.ID, s.TrackingCode, s.OrderID, s.WarehouseID, s.CarrierID, s.DeliveryPersonID,
		string(s.Status), s.EstimatedDelivery, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return writeErr("create shipment", err)
	}
	return nil
}

// GetShipment returns a shipment by id, or nil if it does not exist.
func (r *Store) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	s, err := getShipment(ctx, r.db, "s.id = $1", id, "")
	if err != nil {
		return nil, fmt.Errorf("get shipment %q: %w", id, err)
	}
	return s, nil
}

// GetShipmentByTrackingCode returns a shipment by its order-level code, or nil.
func (r *Store) GetShipmentByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error) {
	s, err := getShipment(ctx, r.db, "s.tracking_code = $1", code, "")
	if err != nil {
		return nil, fmt.Errorf("get shipment by tracking code: %w", err)
	}
	return s, nil
}

// ListShipments returns shipments matching f, most recently updated first.
func (r *Store) ListShipments(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if f.VendorID != "" {
		args = append(args, f.VendorID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tracking_codes v WHERE v.shipment_id = s.id AND v.vendor_id = $%d)", len(args)))
	}

	q := `SELECT ` + shipmentColumns + ` FROM shipments s`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY s.updated_at DESC, s.id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Shipment, 0, f.Limit)
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetShipmentForUpdate - locks the shipment row for the rest of the transaction.
func (r *TxRepo) GetShipmentForUpdate(ctx context.Context, id string) (*domain.Shipment, error) {
	s, err := getShipment(ctx, r.tx, "s.id = $1", id, " FOR UPDATE OF s")
	if err != nil {
		return nil, fmt.Errorf("get shipment %q for update: %w", id, err)
	}
	return s, nil
}

// UpdateStatus - writes the lifecycle fields of the shipment.
func (r *TxRepo) UpdateStatus(ctx context.Context, s *domain.Shipment) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE shipments
        SET status = $2,
            actual_delivery = $3,
            delivery_notes = $4,
            signature_reference = $5,
            updated_at = $6
        WHERE id = $1
    `, s.ID, string(s.Status), s.ActualDelivery, s.DeliveryNotes, s.SignatureReference, s.UpdatedAt)
	if err != nil {
		return writeErr(fmt.Sprintf("update shipment status %q", s.ID), err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("shipment %q: %w", s.ID, apperr.ErrNotFound)
	}
	return nil
}

// UpdatePosition - replaces the current position of the shipment.
func (r *TxRepo) UpdatePosition(ctx context.Context, id string, pos domain.Position, receivedAt time.Time) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE shipments
        SET lat = $2, lon = $3, accuracy = $4, heading = $5, speed = $6, altitude = $7,
            battery_level = $8, position_recorded_at = $9,
            last_location_update = $10, updated_at = $10
        WHERE id = $1
    `, id, pos.Lat, pos.Lon, pos.Accuracy, pos.Heading, pos.Speed, pos.Altitude,
		pos.BatteryLevel, pos.RecordedAt, receivedAt)
	if err != nil {
		return fmt.Errorf("update shipment position %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("shipment %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}
