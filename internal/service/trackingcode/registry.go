package trackingcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/ports/trackingtx"
)

// maxAttempts bounds retries after a code collision.
const maxAttempts = 5

// Registry assigns and resolves vendor tracking codes.
type Registry struct {
	store            codeStore
	gen              Generator
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewRegistry creates a Registry. A nil gen falls back to RandomCode.
func NewRegistry(store codeStore, gen Generator, timeout time.Duration, logger logx.Logger) *Registry {
	if gen == nil {
		gen = RandomCode
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Registry{
		store:            store,
		gen:              gen,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.operationTimeout)
}

// NewShipmentCode returns a fresh order-level code. Uniqueness is enforced by storage.
func (r *Registry) NewShipmentCode() (string, error) {
	return r.gen(ShipmentPrefix, ShipmentLength)
}

// MaxAttempts is how many codes callers should try before giving up on collisions.
func (r *Registry) MaxAttempts() int { return maxAttempts }

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return apperr.ErrInvalid
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.VendorID) == "" || it.Quantity <= 0 {
			return apperr.ErrInvalid
		}
	}
	return nil
}

// Assign creates one code per distinct (product, vendor) pair of the line
// items. Pairs that already have a code keep it, so retries are safe.
func (r *Registry) Assign(ctx context.Context, orderID, shipmentID string, items []domain.LineItem) ([]domain.TrackingCode, error) {
	orderID, shipmentID = strings.TrimSpace(orderID), strings.TrimSpace(shipmentID)
	if orderID == "" || shipmentID == "" {
		return nil, apperr.ErrInvalid
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sh, err := r.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	if sh.OrderID != orderID {
		return nil, fmt.Errorf("shipment %q belongs to another order: %w", shipmentID, apperr.ErrInvalid)
	}

	created, err := r.insertAll(ctx, r.store, shipmentID, items)
	if err != nil {
		return nil, err
	}
	if created > 0 {
		r.logger.Info("tracking codes assigned",
			logx.String("event", "tracking_codes_assigned"),
			logx.String("shipment_id", shipmentID),
			logx.String("order_id", orderID),
			logx.Int("created", created),
		)
	}
	return r.store.ListTrackingCodes(ctx, shipmentID)
}

// AssignTx assigns codes for a shipment created in the same transaction.
// It returns how many codes were created.
func (r *Registry) AssignTx(ctx context.Context, tx trackingtx.Repository, shipmentID string, items []domain.LineItem) (int, error) {
	if err := validateItems(items); err != nil {
		return 0, err
	}
	return r.insertAll(ctx, tx, shipmentID, items)
}

func (r *Registry) insertAll(ctx context.Context, q codeInserter, shipmentID string, items []domain.LineItem) (int, error) {
	created := 0
	for _, it := range domain.GroupLineItems(items) {
		ok, err := r.insert(ctx, q, shipmentID, it)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (r *Registry) insert(ctx context.Context, q codeInserter, shipmentID string, it domain.LineItem) (bool, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := r.gen(VendorPrefix, VendorLength)
		if err != nil {
			return false, err
		}
		ok, err := q.InsertTrackingCode(ctx, &domain.TrackingCode{
			ShipmentID: shipmentID,
			ProductID:  it.ProductID,
			VendorID:   it.VendorID,
			Code:       code,
			Quantity:   it.Quantity,
			CreatedAt:  r.now(),
		})
		if errors.Is(err, apperr.ErrConflict) {
			r.logger.Warn("tracking code collision",
				logx.String("shipment_id", shipmentID),
				logx.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return false, err
		}
		return ok, nil
	}
	return false, fmt.Errorf("tracking code for %s/%s: %d collisions: %w",
		it.VendorID, it.ProductID, maxAttempts, apperr.ErrConflict)
}

// ResolveForVendor returns the shipment behind a vendor code. A code owned by
// another vendor is reported exactly like an unknown code.
func (r *Registry) ResolveForVendor(ctx context.Context, vendorID, code string) (*domain.VendorTracking, error) {
	vendorID, code = strings.TrimSpace(vendorID), strings.TrimSpace(code)
	if vendorID == "" || code == "" {
		return nil, apperr.ErrNotFound
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tc, err := r.store.GetTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tc == nil || tc.VendorID != vendorID {
		return nil, apperr.ErrNotFound
	}
	sh, err := r.store.GetShipment(ctx, tc.ShipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return &domain.VendorTracking{Shipment: *sh, ProductID: tc.ProductID, Code: tc.Code, Quantity: tc.Quantity}, nil
}

// ListForShipment returns every code of a shipment.
func (r *Registry) ListForShipment(ctx context.Context, shipmentID string) ([]domain.TrackingCode, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sh, err := r.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return r.store.ListTrackingCodes(ctx, shipmentID)
}
