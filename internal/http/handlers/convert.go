package handlers

import (
	"strings"

	"shipment-tracker/internal/domain"
)

func positionToDTO(p *domain.Position) *positionDTO {
	if p == nil {
		return nil
	}
	return &positionDTO{
		Lat:          p.Lat,
		Lon:          p.Lon,
		Accuracy:     p.Accuracy,
		Heading:      p.Heading,
		Speed:        p.Speed,
		Altitude:     p.Altitude,
		BatteryLevel: p.BatteryLevel,
		RecordedAt:   p.RecordedAt,
	}
}

func shipmentToDTO(s domain.Shipment) shipmentDTO {
	return shipmentDTO{
		ID:                 s.ID,
		TrackingCode:       s.TrackingCode,
		OrderID:            s.OrderID,
		WarehouseID:        s.WarehouseID,
		CarrierID:          s.CarrierID,
		DeliveryPersonID:   s.DeliveryPersonID,
		Status:             s.Status,
		CurrentPosition:    positionToDTO(s.CurrentPosition),
		LastLocationUpdate: s.LastLocationUpdate,
		EstimatedDelivery:  s.EstimatedDelivery,
		ActualDelivery:     s.ActualDelivery,
		DeliveryNotes:      s.DeliveryNotes,
		SignatureReference: s.SignatureReference,
		EventSeq:           s.EventSeq,
		VendorIDs:          s.VendorIDs,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// publicShipmentToDTO hides fields that belong to other parties of the order.
func publicShipmentToDTO(s domain.Shipment) shipmentDTO {
	dto := shipmentToDTO(s)
	dto.VendorIDs = nil
	dto.SignatureReference = ""
	dto.DeliveryPersonID = nil
	return dto
}

func shipmentsToDTO(list []domain.Shipment) []shipmentDTO {
	out := make([]shipmentDTO, 0, len(list))
	for _, s := range list {
		out = append(out, shipmentToDTO(s))
	}
	return out
}

func lineItemsToModel(items []lineItemDTO) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{
			ProductID: strings.TrimSpace(it.ProductID),
			VendorID:  strings.TrimSpace(it.VendorID),
			Quantity:  it.Quantity,
		})
	}
	return out
}

func (r createShipmentRequest) toModel() domain.NewShipment {
	return domain.NewShipment{
		OrderID:           strings.TrimSpace(r.OrderID),
		WarehouseID:       strings.TrimSpace(r.WarehouseID),
		CarrierID:         r.CarrierID,
		DeliveryPersonID:  r.DeliveryPersonID,
		EstimatedDelivery: r.EstimatedDelivery,
		LineItems:         lineItemsToModel(r.LineItems),
	}
}

func (r transitionRequest) toModel(shipmentID, actor string) domain.TransitionRequest {
	return domain.TransitionRequest{
		ShipmentID:         shipmentID,
		Target:             r.Status,
		Actor:              actor,
		Notes:              strings.TrimSpace(r.Notes),
		Override:           r.Override,
		SignatureReference: strings.TrimSpace(r.SignatureReference),
	}
}

func (r locationRequest) toModel(shipmentID string) domain.LocationSample {
	return domain.LocationSample{
		ShipmentID:      shipmentID,
		DeviceID:        strings.TrimSpace(r.DeviceID),
		Lat:             r.Lat,
		Lon:             r.Lon,
		Accuracy:        r.Accuracy,
		Speed:           r.Speed,
		Heading:         r.Heading,
		Altitude:        r.Altitude,
		BatteryLevel:    r.BatteryLevel,
		IsOfflineReplay: r.IsOfflineReplay,
		RecordedAt:      r.RecordedAt,
	}
}

func ingestResultToResponse(res domain.IngestResult) ingestResponse {
	return ingestResponse{
		Stored:           res.Stored,
		Duplicate:        res.Duplicate,
		PositionUpdated:  res.PositionUpdated,
		WaypointAppended: res.WaypointAppended,
		Position:         positionToDTO(res.Position),
	}
}

func eventToDTO(ev domain.Event) eventDTO {
	return eventDTO{
		ID:             ev.ID,
		ShipmentID:     ev.ShipmentID,
		Seq:            ev.Seq,
		Type:           ev.Type,
		Status:         ev.Status,
		PreviousStatus: ev.PreviousStatus,
		Position:       positionToDTO(ev.Position),
		Actor:          ev.Actor,
		Notes:          ev.Notes,
		OccurredAt:     ev.OccurredAt,
	}
}

func eventsToDTO(list []domain.Event) []eventDTO {
	out := make([]eventDTO, 0, len(list))
	for _, ev := range list {
		out = append(out, eventToDTO(ev))
	}
	return out
}

func trackingCodesToDTO(list []domain.TrackingCode) []trackingCodeDTO {
	out := make([]trackingCodeDTO, 0, len(list))
	for _, c := range list {
		out = append(out, trackingCodeDTO{
			Code:      c.Code,
			ProductID: c.ProductID,
			VendorID:  c.VendorID,
			Quantity:  c.Quantity,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

func vendorTrackingToDTO(v domain.VendorTracking) vendorTrackingDTO {
	return vendorTrackingDTO{
		Code:      v.Code,
		ProductID: v.ProductID,
		Quantity:  v.Quantity,
		Shipment:  publicShipmentToDTO(v.Shipment),
	}
}

func (r planRouteRequest) toModel() []domain.Waypoint {
	out := make([]domain.Waypoint, 0, len(r.Waypoints))
	for _, w := range r.Waypoints {
		wp := domain.Waypoint{Lat: w.Lat, Lon: w.Lon}
		if w.RecordedAt != nil {
			wp.RecordedAt = *w.RecordedAt
		}
		out = append(out, wp)
	}
	return out
}

func routeToDTO(rec domain.RouteRecord) routeDTO {
	wps := make([]waypointDTO, 0, len(rec.Waypoints))
	for _, w := range rec.Waypoints {
		dto := waypointDTO{Lat: w.Lat, Lon: w.Lon, Status: w.Status}
		if !w.RecordedAt.IsZero() {
			at := w.RecordedAt
			dto.RecordedAt = &at
		}
		wps = append(wps, dto)
	}
	return routeDTO{
		Type:                     rec.Type,
		Waypoints:                wps,
		DistanceKm:               rec.DistanceKm,
		EstimatedDurationMinutes: rec.EstimatedDurationMinutes,
		ActualDurationMinutes:    rec.ActualDurationMinutes,
		FinalizedAt:              rec.FinalizedAt,
	}
}

func routesToDTO(list []domain.RouteRecord) []routeDTO {
	out := make([]routeDTO, 0, len(list))
	for _, r := range list {
		out = append(out, routeToDTO(r))
	}
	return out
}
