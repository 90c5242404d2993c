package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"shipment-tracker/internal/domain"
)

type positionDTO struct {
	Lat          decimal.Decimal `json:"lat"`
	Lon          decimal.Decimal `json:"lon"`
	Accuracy     *float64        `json:"accuracy,omitempty"`
	Heading      *float64        `json:"heading,omitempty"`
	Speed        *float64        `json:"speed,omitempty"`
	Altitude     *float64        `json:"altitude,omitempty"`
	BatteryLevel *float64        `json:"battery_level,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type shipmentDTO struct {
	ID                 string                `json:"id"`
	TrackingCode       string                `json:"tracking_code"`
	OrderID            string                `json:"order_id"`
	WarehouseID        string                `json:"warehouse_id"`
	CarrierID          *string               `json:"carrier_id,omitempty"`
	DeliveryPersonID   *string               `json:"delivery_person_id,omitempty"`
	Status             domain.ShipmentStatus `json:"status"`
	CurrentPosition    *positionDTO          `json:"current_position,omitempty"`
	LastLocationUpdate *time.Time            `json:"last_location_update,omitempty"`
	EstimatedDelivery  *time.Time            `json:"estimated_delivery,omitempty"`
	ActualDelivery     *time.Time            `json:"actual_delivery,omitempty"`
	DeliveryNotes      string                `json:"delivery_notes,omitempty"`
	SignatureReference string                `json:"signature_reference,omitempty"`
	EventSeq           int64                 `json:"event_seq"`
	VendorIDs          []string              `json:"vendor_ids,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type lineItemDTO struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Quantity  int    `json:"quantity"`
}

type createShipmentRequest struct {
	OrderID           string        `json:"order_id"`
	WarehouseID       string        `json:"warehouse_id"`
	CarrierID         *string       `json:"carrier_id,omitempty"`
	DeliveryPersonID  *string       `json:"delivery_person_id,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
	LineItems         []lineItemDTO `json:"line_items"`
}

type transitionRequest struct {
	Status             domain.ShipmentStatus `json:"status"`
	Notes              string                `json:"notes,omitempty"`
	Override           bool                  `json:"override,omitempty"`
	SignatureReference string                `json:"signature_reference,omitempty"`
}

type locationRequest struct {
	DeviceID        string          `json:"device_id"`
	Lat             decimal.Decimal `json:"lat"`
	Lon             decimal.Decimal `json:"lon"`
	Accuracy        *float64        `json:"accuracy,omitempty"`
	Speed           *float64        `json:"speed,omitempty"`
	Heading         *float64        `json:"heading,omitempty"`
	Altitude        *float64        `json:"altitude,omitempty"`
	BatteryLevel    *float64        `json:"battery_level,omitempty"`
	IsOfflineReplay bool            `json:"is_offline_replay,omitempty"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

type ingestResponse struct {
	Stored           bool         `json:"stored"`
	Duplicate        bool         `json:"duplicate"`
	PositionUpdated  bool         `json:"position_updated"`
	WaypointAppended bool         `json:"waypoint_appended"`
	Position         *positionDTO `json:"position,omitempty"`
}

type eventDTO struct {
	ID             string                `json:"id"`
	ShipmentID     string                `json:"shipment_id"`
	Seq            int64                 `json:"seq"`
	Type           domain.EventType      `json:"type"`
	Status         domain.ShipmentStatus `json:"status"`
	PreviousStatus domain.ShipmentStatus `json:"previous_status,omitempty"`
	Position       *positionDTO          `json:"position,omitempty"`
	Actor          string                `json:"actor,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

type assignCodesRequest struct {
	OrderID   string        `json:"order_id"`
	LineItems []lineItemDTO `json:"line_items"`
}

type trackingCodeDTO struct {
	Code      string    `json:"code"`
	ProductID string    `json:"product_id"`
	VendorID  string    `json:"vendor_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type vendorTrackingDTO struct {
	Code      string      `json:"code"`
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Shipment  shipmentDTO `json:"shipment"`
}

type waypointDTO struct {
	Lat        decimal.Decimal       `json:"lat"`
	Lon        decimal.Decimal       `json:"lon"`
	Status     domain.ShipmentStatus `json:"status,omitempty"`
	RecordedAt *time.Time            `json:"recorded_at,omitempty"`
}

type planRouteRequest struct {
	Waypoints                []waypointDTO `json:"waypoints"`
	EstimatedDurationMinutes *int          `json:"estimated_duration_minutes,omitempty"`
}

type routeDTO struct {
	Type                     domain.RouteType `json:"route_type"`
	Waypoints                []waypointDTO    `json:"waypoints"`
	DistanceKm               *float64         `json:"distance_km,omitempty"`
	EstimatedDurationMinutes *int             `json:"estimated_duration_minutes,omitempty"`
	ActualDurationMinutes    *int             `json:"actual_duration_minutes,omitempty"`
	FinalizedAt              *time.Time       `json:"finalized_at,omitempty"`
}

// streamFrame is one WebSocket message.
type streamFrame struct {
	Type     string       `json:"type"`
	Event    *eventDTO    `json:"event,omitempty"`
	Shipment *shipmentDTO `json:"shipment,omitempty"`
	Dropped  int          `json:"dropped,omitempty"`
}
