package kafka

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shipment-tracker/internal/domain"
)

// LocationDTO is a carrier GPS sample as published on the locations topic.
type LocationDTO struct {
	ShipmentID      string          `json:"shipment_id"`
	DeviceID        string          `json:"device_id"`
	Lat             decimal.Decimal `json:"lat"`
	Lon             decimal.Decimal `json:"lon"`
	Accuracy        *float64        `json:"accuracy,omitempty"`
	Speed           *float64        `json:"speed,omitempty"`
	Heading         *float64        `json:"heading,omitempty"`
	Altitude        *float64        `json:"altitude,omitempty"`
	BatteryLevel    *float64        `json:"battery_level,omitempty"`
	IsOfflineReplay bool            `json:"is_offline_replay"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

// ToDomain converts LocationDTO to domain.LocationSample
func ToDomain(dto LocationDTO) domain.LocationSample {
	return domain.LocationSample{
		ShipmentID:      strings.TrimSpace(dto.ShipmentID),
		DeviceID:        strings.TrimSpace(dto.DeviceID),
		Lat:             dto.Lat,
		Lon:             dto.Lon,
		Accuracy:        dto.Accuracy,
		Speed:           dto.Speed,
		Heading:         dto.Heading,
		Altitude:        dto.Altitude,
		BatteryLevel:    dto.BatteryLevel,
		IsOfflineReplay: dto.IsOfflineReplay,
		RecordedAt:      dto.RecordedAt,
	}
}

// PositionDTO is the position carried by an outgoing event.
type PositionDTO struct {
	Lat        decimal.Decimal `json:"lat"`
	Lon        decimal.Decimal `json:"lon"`
	Accuracy   *float64        `json:"accuracy,omitempty"`
	Heading    *float64        `json:"heading,omitempty"`
	Speed      *float64        `json:"speed,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// EventDTO is a shipment event as produced on the events topic.
type EventDTO struct {
	ID             string       `json:"id"`
	ShipmentID     string       `json:"shipment_id"`
	Seq            int64        `json:"seq"`
	Type           string       `json:"type"`
	Status         string       `json:"status"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	Position       *PositionDTO `json:"position,omitempty"`
	Actor          string       `json:"actor,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	VendorIDs      []string     `json:"vendor_ids,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// FromEvent converts domain.Event to EventDTO
func FromEvent(ev domain.Event) EventDTO {
	dto := EventDTO{
		ID:             ev.ID,
		ShipmentID:     ev.ShipmentID,
		Seq:            ev.Seq,
		Type:           string(ev.Type),
		Status:         string(ev.Status),
		PreviousStatus: string(ev.PreviousStatus),
		Actor:          ev.Actor,
		Notes:          ev.Notes,
		VendorIDs:      ev.VendorIDs,
		OccurredAt:     ev.OccurredAt,
	}
	if p := ev.Position; p != nil {
		dto.Position = &PositionDTO{
			Lat:        p.Lat,
			Lon:        p.Lon,
			Accuracy:   p.Accuracy,
			Heading:    p.Heading,
			Speed:      p.Speed,
			RecordedAt: p.RecordedAt,
		}
	}
	return dto
}
