package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
)

func TestLocationHandler_Ingest(t *testing.T) {
	t.Parallel()

	var got domain.LocationSample
	uc := &stubIngest{fn: func(_ context.Context, s domain.LocationSample) (domain.IngestResult, error) {
		got = s
		p := s.Position()
		return domain.IngestResult{Stored: true, PositionUpdated: true, WaypointAppended: true, Position: &p}, nil
	}}
	h := NewLocationHandler(nil, uc)

	body := `{"device_id":"dev-1","lat":23.8103,"lon":"90.4125","speed":8.5,"recorded_at":"2026-03-01T10:00:00Z"}`
	rr := httptest.NewRecorder()
	h.Ingest(rr, withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", "s1"))

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "s1", got.ShipmentID)
	assert.Equal(t, "dev-1", got.DeviceID)
	assert.True(t, got.Lat.Equal(decimal.RequireFromString("23.8103")))
	require.NotNil(t, got.Speed)
	assert.JSONEq(t, `{"stored":true,"duplicate":false,"position_updated":true,"waypoint_appended":true,
		"position":{"lat":"23.8103","lon":"90.4125","speed":8.5,"recorded_at":"2026-03-01T10:00:00Z"}}`, rr.Body.String())
}

func TestLocationHandler_Ingest_Duplicate(t *testing.T) {
	t.Parallel()

	uc := &stubIngest{fn: func(context.Context, domain.LocationSample) (domain.IngestResult, error) {
		return domain.IngestResult{Duplicate: true}, nil
	}}
	h := NewLocationHandler(nil, uc)

	rr := httptest.NewRecorder()
	h.Ingest(rr, withParams(httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"device_id":"d","lat":1,"lon":1,"recorded_at":"2026-03-01T10:00:00Z"}`)), "id", "s1"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLocationHandler_Ingest_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrInvalid, http.StatusBadRequest},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrNotTrackable, http.StatusConflict},
		{apperr.ErrInvalidTimestamp, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		uc := &stubIngest{fn: func(context.Context, domain.LocationSample) (domain.IngestResult, error) {
			return domain.IngestResult{}, tt.err
		}}
		rr := httptest.NewRecorder()
		NewLocationHandler(nil, uc).Ingest(rr, withParams(httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"device_id":"d","lat":1,"lon":1,"recorded_at":"2026-03-01T10:00:00Z"}`)), "id", "s1"))
		assert.Equal(t, tt.want, rr.Code, tt.err.Error())
	}

	rr := httptest.NewRecorder()
	NewLocationHandler(nil, nil).Ingest(rr, withParams(httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"lat":"north"}`)), "id", "s1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
