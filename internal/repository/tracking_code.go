package repository

import (
	"context"
	"fmt"

	"shipment-tracker/internal/domain"
)

// InsertTrackingCode stores a code for a (shipment, product, vendor) triple.
// It returns false if the triple already has a code and apperr.ErrConflict
// if the code itself is taken.
func (r *Store) InsertTrackingCode(ctx context.Context, tc *domain.TrackingCode) (bool, error) {
	return insertTrackingCode(ctx, r.db, tc)
}

// InsertTrackingCode stores a code inside the transaction behind a savepoint.
func (r *TxRepo) InsertTrackingCode(ctx context.Context, tc *domain.TrackingCode) (bool, error) {
	var inserted bool
	err := savepoint(ctx, r.tx, func(q querier) error {
		var err error
		inserted, err = insertTrackingCode(ctx, q, tc)
		return err
	})
	return inserted, err
}

func insertTrackingCode(ctx context.Context, q querier, tc *domain.TrackingCode) (bool, error) {
	ct, err := q.Exec(ctx, `
        INSERT INTO tracking_codes (shipment_id, product_id, vendor_id, code, quantity, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (shipment_id, product_id, vendor_id) DO NOTHING
    `, tc.ShipmentID, tc.ProductID, tc.VendorID, tc.Code, tc.Quantity, tc.CreatedAt)
	if err != nil {
		return false, writeErr("insert tracking code", err)
	}
	return ct.RowsAffected() > 0, nil
}

// GetTrackingCode returns a code by value, or nil.
func (r *Store) GetTrackingCode(ctx context.Context, code string) (*domain.TrackingCode, error) {
	var tc domain.TrackingCode
	err := r.db.QueryRow(ctx, `
        SELECT shipment_id, product_id, vendor_id, code, quantity, created_at
        FROM tracking_codes
        WHERE code = $1
    `, code).Scan(&tc.ShipmentID, &tc.ProductID, &tc.VendorID, &tc.Code, &tc.Quantity, &tc.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tracking code: %w", err)
	}
	return &tc, nil
}

// ListTrackingCodes returns the codes of a shipment ordered by vendor and product.
func (r *Store) ListTrackingCodes(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error) {
	rows, err := r.db.Query(ctx, `
        SELECT shipment_id, product_id, vendor_id, code, quantity, created_at
        FROM tracking_codes
        WHERE shipment_id = $1
        ORDER BY vendor_id, product_id
    `, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list tracking codes %q: %w", shipmentID, err)
	}
	defer rows.Close()

	var out []domain.TrackingCode
	for rows.Next() {
		var tc domain.TrackingCode
		if err := rows.Scan(&tc.ShipmentID, &tc.ProductID, &tc.VendorID, &tc.Code, &tc.Quantity, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking code: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
