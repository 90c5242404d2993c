package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shipment-tracker/internal/domain"
)

// AppendEvent - bumps the shipment sequence and stores the event in the outbox.
func (r *TxRepo) AppendEvent(ctx context.Context, ev *domain.Event) error {
	err := r.tx.QueryRow(ctx, `
        UPDATE shipments SET event_seq = event_seq + 1 WHERE id = $1 RETURNING event_seq
    `, ev.ShipmentID).Scan(&ev.Seq)
	if err != nil {
		return fmt.Errorf("next event seq %q: %w", ev.ShipmentID, err)
	}

	var (
		lat, lon   decimal.NullDecimal
		recordedAt *time.Time
	)
	if ev.Position != nil {
		lat = decimal.NewNullDecimal(ev.Position.Lat)
		lon = decimal.NewNullDecimal(ev.Position.Lon)
		recordedAt = &ev.Position.RecordedAt
	}

	_, err = r.tx.Exec(ctx, `
        INSERT INTO shipment_events (id, shipment_id, seq, type, status, previous_status,
                                     lat, lon, recorded_at, actor, notes, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, ev.ID, ev.ShipmentID, ev.Seq, string(ev.Type), string(ev.Status), string(ev.PreviousStatus),
		lat, lon, recordedAt, ev.Actor, ev.Notes, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns outbox events of a shipment with seq > afterSeq.
func (r *Store) ListEvents(ctx context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, shipment_id, seq, type, status, previous_status, lat, lon, recorded_at, actor, notes, occurred_at
        FROM shipment_events
        WHERE shipment_id = $1 AND seq > $2
        ORDER BY seq
        LIMIT $3
    `, shipmentID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events %q: %w", shipmentID, err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev                          domain.Event
			typ, status, previousStatus string
			lat, lon                    decimal.NullDecimal
			recordedAt                  *time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.ShipmentID, &ev.Seq, &typ, &status, &previousStatus,
			&lat, &lon, &recordedAt, &ev.Actor, &ev.Notes, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Status = domain.ShipmentStatus(status)
		ev.PreviousStatus = domain.ShipmentStatus(previousStatus)
		if lat.Valid && lon.Valid && recordedAt != nil {
			ev.Position = &domain.Position{Lat: lat.Decimal, Lon: lon.Decimal, RecordedAt: recordedAt.UTC()}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
