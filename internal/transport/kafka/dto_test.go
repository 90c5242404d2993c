package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-tracker/internal/domain"
)

func TestLocationDTO_Decode(t *testing.T) {
	t.Parallel()

	raw := `{"shipment_id":" s1 ","device_id":"d1","lat":"23.8103","lon":90.4125,` +
		`"speed":12.5,"heading":270,"battery_level":88,"is_offline_replay":true,` +
		`"recorded_at":"2026-03-01T10:00:00Z"}`

	var dto LocationDTO
	require.NoError(t, json.Unmarshal([]byte(raw), &dto))
	s := ToDomain(dto)

	assert.Equal(t, "s1", s.ShipmentID)
	assert.Equal(t, "d1", s.DeviceID)
	assert.True(t, s.Lat.Equal(decimal.RequireFromString("23.8103")))
	assert.True(t, s.Lon.Equal(decimal.RequireFromString("90.4125")))
	require.NotNil(t, s.Speed)
	assert.Equal(t, 12.5, *s.Speed)
	require.NotNil(t, s.Heading)
	assert.Equal(t, 270.0, *s.Heading)
	assert.Nil(t, s.Accuracy)
	assert.True(t, s.IsOfflineReplay)
	assert.True(t, s.RecordedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestFromEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := domain.Event{
		ID: "e1", ShipmentID: "s1", Seq: 2, Type: domain.EventLocationChanged,
		Status: domain.StatusInTransit, VendorIDs: []string{"v1"}, OccurredAt: at,
		Position: &domain.Position{Lat: decimal.RequireFromString("1.5"), Lon: decimal.RequireFromString("2.5"), RecordedAt: at},
	}
	dto := FromEvent(ev)
	assert.Equal(t, "location_changed", dto.Type)
	assert.Equal(t, "in_transit", dto.Status)
	assert.Empty(t, dto.PreviousStatus)
	require.NotNil(t, dto.Position)
	assert.True(t, dto.Position.Lat.Equal(decimal.RequireFromString("1.5")))

	dto = FromEvent(domain.Event{ShipmentID: "s1", Type: domain.EventStatusChanged, PreviousStatus: domain.StatusPreparing})
	assert.Nil(t, dto.Position)
	assert.Equal(t, "preparing", dto.PreviousStatus)
}
