package domain

// ShipmentStatus represents a step of the fulfillment lifecycle.
type ShipmentStatus string

// List of possible shipment statuses
const (
	StatusPreparing      ShipmentStatus = "preparing"
	StatusReadyToShip    ShipmentStatus = "ready_to_ship"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusFailed         ShipmentStatus = "failed"
	StatusReturned       ShipmentStatus = "returned"
)

var allowedStatuses = [...]ShipmentStatus{
	StatusPreparing, StatusReadyToShip, StatusPickedUp, StatusInTransit,
	StatusOutForDelivery, StatusDelivered, StatusFailed, StatusReturned,
}

// forward holds the single regular successor of each non-terminal status.
// failed and returned are reachable from every non-terminal status on top of it.
var forward = map[ShipmentStatus]ShipmentStatus{
	StatusPreparing:      StatusReadyToShip,
	StatusReadyToShip:    StatusPickedUp,
	StatusPickedUp:       StatusInTransit,
	StatusInTransit:      StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []ShipmentStatus {
	out := make([]ShipmentStatus, len(allowedStatuses))
	copy(out, allowedStatuses[:])
	return out
}

// Valid checks if the ShipmentStatus is valid
func (s ShipmentStatus) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are accepted.
func (s ShipmentStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusReturned
}

// Trackable reports whether location samples are accepted in this status.
func (s ShipmentStatus) Trackable() bool {
	return s == StatusPickedUp || s == StatusInTransit || s == StatusOutForDelivery
}

// Successors returns the allowed targets of s.
func (s ShipmentStatus) Successors() []ShipmentStatus {
	if !s.Valid() || s.Terminal() {
		return nil
	}
	return []ShipmentStatus{forward[s], StatusFailed, StatusReturned}
}

// CanTransitionTo checks the successor table.
func (s ShipmentStatus) CanTransitionTo(target ShipmentStatus) bool {
	for _, next := range s.Successors() {
		if next == target {
			return true
		}
	}
	return false
}
