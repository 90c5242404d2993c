package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of change a shipment event carries.
type EventType string

// Event types
const (
	EventStatusChanged   EventType = "status_changed"
	EventLocationChanged EventType = "location_changed"
)

// Event is a shipment change distributed to observers. Seq is assigned by
// storage and grows by one per shipment, so consumers can spot gaps and
// drop duplicates.
type Event struct {
	ID             string
	ShipmentID     string
	Seq            int64
	Type           EventType
	Status         ShipmentStatus
	PreviousStatus ShipmentStatus
	Position       *Position
	Actor          string
	Notes          string
	VendorIDs      []string
	OccurredAt     time.Time
}

// NewStatusEvent builds the event for a committed status change.
func NewStatusEvent(s *Shipment, from ShipmentStatus, actor, notes string, at time.Time) *Event {
	return &Event{
		ID:             uuid.NewString(),
		ShipmentID:     s.ID,
		Type:           EventStatusChanged,
		Status:         s.Status,
		PreviousStatus: from,
		Position:       s.CurrentPosition,
		Actor:          actor,
		Notes:          notes,
		VendorIDs:      append([]string(nil), s.VendorIDs...),
		OccurredAt:     at,
	}
}

// NewLocationEvent builds the event for a committed position update.
func NewLocationEvent(s *Shipment, pos Position, at time.Time) *Event {
	p := pos
	return &Event{
		ID:         uuid.NewString(),
		ShipmentID: s.ID,
		Type:       EventLocationChanged,
		Status:     s.Status,
		Position:   &p,
		VendorIDs:  append([]string(nil), s.VendorIDs...),
		OccurredAt: at,
	}
}
