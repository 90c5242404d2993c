package domain

import "time"

// Shipment is one order-fulfillment unit.
type Shipment struct {
	ID                 string
	TrackingCode       string
	OrderID            string
	WarehouseID        string
	CarrierID          *string
	DeliveryPersonID   *string
	Status             ShipmentStatus
	CurrentPosition    *Position
	LastLocationUpdate *time.Time
	EstimatedDelivery  *time.Time
	ActualDelivery     *time.Time
	DeliveryNotes      string
	SignatureReference string
	EventSeq           int64
	VendorIDs          []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasVendor reports whether vendorID owns at least one tracking code of the shipment.
func (s *Shipment) HasVendor(vendorID string) bool {
	for _, v := range s.VendorIDs {
		if v == vendorID {
			return true
		}
	}
	return false
}

// FreshFix reports whether the current position was recorded within window of now.
func (s *Shipment) FreshFix(now time.Time, window time.Duration) bool {
	if s.CurrentPosition == nil {
		return false
	}
	return now.Sub(s.CurrentPosition.RecordedAt) <= window
}

// NewShipment carries the facts needed to open a shipment.
type NewShipment struct {
	OrderID           string
	WarehouseID       string
	CarrierID         *string
	DeliveryPersonID  *string
	EstimatedDelivery *time.Time
	LineItems         []LineItem
}

// ShipmentFilter narrows dashboard listings. Zero values mean "any".
type ShipmentFilter struct {
	Status   *ShipmentStatus
	VendorID string
	Limit    int
	Offset   int
}

// TransitionRequest is an operator action on a shipment status.
type TransitionRequest struct {
	ShipmentID         string
	Target             ShipmentStatus
	Actor              string
	Notes              string
	Override           bool
	SignatureReference string
}

// HasOverride reports whether the delivery fix rule can be skipped.
func (r TransitionRequest) HasOverride() bool {
	return r.Override || r.SignatureReference != ""
}
