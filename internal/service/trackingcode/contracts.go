package trackingcode

import (
	"context"

	"shipment-tracker/internal/domain"
)

// codeInserter is satisfied by the store and by a shipment transaction.
type codeInserter interface {
	InsertTrackingCode(ctx context.Context, tc *domain.TrackingCode) (bool, error)
}

type codeStore interface {
	codeInserter
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	GetTrackingCode(ctx context.Context, code string) (*domain.TrackingCode, error)
	ListTrackingCodes(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error)
}

// Generator produces a random code with the given prefix and body length.
type Generator func(prefix string, n int) (string, error)
