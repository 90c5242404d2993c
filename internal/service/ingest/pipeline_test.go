package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/metrics"
	"shipment-tracker/internal/repository/memstore"
	"shipment-tracker/internal/service/ingest"
	"shipment-tracker/internal/service/lane"
	"shipment-tracker/internal/service/route"
	"shipment-tracker/internal/service/shipment"
	"shipment-tracker/internal/service/trackingcode"
)

type env struct {
	store    *memstore.Store
	hub      *distributor.Hub
	lanes    *lane.Lanes
	metrics  *metrics.Tracking
	pipeline *ingest.Pipeline
	ships    *shipment.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	hub := distributor.NewHub(256, nil, nil)
	lanes := lane.New()
	m := metrics.NewTracking()
	rec := route.NewRecorder(store, route.Config{MinDistanceMeters: 50, MinInterval: 5 * time.Minute}, time.Second, nil)
	return &env{
		store:   store,
		hub:     hub,
		lanes:   lanes,
		metrics: m,
		pipeline: ingest.NewPipeline(ingest.Deps{
			Store: store, Lanes: lanes, Routes: rec, Publisher: hub, Metrics: m,
		}, 2*time.Minute, time.Second),
		ships: shipment.NewService(shipment.Deps{
			Store: store, Lanes: lanes, Routes: rec, Publisher: hub,
			Codes: trackingcode.NewRegistry(store, nil, time.Second, nil),
		}, 15*time.Minute, time.Second),
	}
}

func (e *env) shipment(t *testing.T, statuses ...domain.ShipmentStatus) string {
	t.Helper()
	ctx := context.Background()
	sh, err := e.ships.Create(ctx, domain.NewShipment{
		OrderID: "o1", WarehouseID: "w1",
		LineItems: []domain.LineItem{{ProductID: "p1", VendorID: "v1", Quantity: 1}},
	}, "ops")
	require.NoError(t, err)
	for _, st := range statuses {
		_, err := e.ships.Transition(ctx, domain.TransitionRequest{ShipmentID: sh.ID, Target: st, Actor: "ops"})
		require.NoError(t, err)
	}
	return sh.ID
}

var onTheRoad = []domain.ShipmentStatus{domain.StatusReadyToShip, domain.StatusPickedUp, domain.StatusInTransit}

func sample(id string, at time.Time, lat, lon string) domain.LocationSample {
	return domain.LocationSample{
		ShipmentID: id,
		DeviceID:   "dev-1",
		Lat:        decimal.RequireFromString(lat),
		Lon:        decimal.RequireFromString(lon),
		RecordedAt: at,
	}
}

func current(t *testing.T, e *env, id string) *domain.Position {
	t.Helper()
	sh, err := e.store.GetShipment(context.Background(), id)
	require.NoError(t, err)
	return sh.CurrentPosition
}

func TestIngest_UpdatesPositionAndPublishes(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	sub, err := e.hub.Subscribe(distributor.VendorScope("v1"))
	require.NoError(t, err)

	at := time.Now().UTC().Add(-time.Minute)
	acc := 4.5
	s := sample(id, at, "23.810000001", "90.41")
	s.Accuracy = &acc
	res, err := e.pipeline.Ingest(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.True(t, res.PositionUpdated)
	assert.True(t, res.WaypointAppended)
	require.NotNil(t, res.Position)
	assert.Equal(t, "23.81", res.Position.Lat.String(), "latitude rounded to 8 digits")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventLocationChanged, ev.Type)
	assert.Equal(t, id, ev.ShipmentID)
	require.NotNil(t, ev.Position)
	assert.True(t, ev.Position.RecordedAt.Equal(at))

	sh, err := e.store.GetShipment(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sh.LastLocationUpdate)
	require.NotNil(t, sh.CurrentPosition.Accuracy)
	assert.Equal(t, 4.5, *sh.CurrentPosition.Accuracy)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SamplesTotal.WithLabelValues("accepted")))
}

func TestIngest_OutOfOrderReplay(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	base := time.Now().UTC().Add(-time.Hour)
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)

	for _, at := range []time.Time{t3, t1, t2} {
		s := sample(id, at, "10", "20")
		s.IsOfflineReplay = !at.Equal(t3)
		_, err := e.pipeline.Ingest(context.Background(), s)
		require.NoError(t, err)
	}

	pos := current(t, e, id)
	require.NotNil(t, pos)
	assert.True(t, pos.RecordedAt.Equal(t3))

	stored, err := e.store.ListSamples(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.SamplesTotal.WithLabelValues("stale")))
}

func TestIngest_MonotonicPosition(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	base := time.Now().UTC().Add(-time.Hour)
	offsets := []int{5, 3, 9, 1, 9, 7, 2, 8}

	var latest time.Time
	for i, off := range offsets {
		at := base.Add(time.Duration(off) * time.Second)
		s := sample(id, at, "10", "20")
		s.DeviceID = "dev-" + string(rune('a'+i))
		_, err := e.pipeline.Ingest(context.Background(), s)
		require.NoError(t, err)
		if at.After(latest) {
			latest = at
		}
		assert.True(t, current(t, e, id).RecordedAt.Equal(latest))
	}
}

func TestIngest_ConcurrentSameShipment(t *testing.T) {
	t.Parallel()

	for round := 0; round < 20; round++ {
		e := newEnv(t)
		id := e.shipment(t, onTheRoad...)
		at := time.Now().UTC().Add(-time.Minute)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, ts := range []time.Time{at, at.Add(time.Second)} {
			wg.Add(1)
			go func(ts time.Time) {
				defer wg.Done()
				<-start
				_, err := e.pipeline.Ingest(context.Background(), sample(id, ts, "1", "1"))
				assert.NoError(t, err)
			}(ts)
		}
		close(start)
		wg.Wait()

		require.True(t, current(t, e, id).RecordedAt.Equal(at.Add(time.Second)), "round %d", round)
	}
}

func TestIngest_Duplicate(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	s := sample(id, time.Now().UTC().Add(-time.Minute), "1", "1")

	_, err := e.pipeline.Ingest(context.Background(), s)
	require.NoError(t, err)
	res, err := e.pipeline.Ingest(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Stored)
	assert.False(t, res.PositionUpdated)
	assert.Equal(t, 1, locationEvents(t, e, id))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SamplesTotal.WithLabelValues("duplicate")))
}

func locationEvents(t *testing.T, e *env, id string) int {
	t.Helper()
	events, err := e.store.ListEvents(context.Background(), id, 0, 0)
	require.NoError(t, err)
	n := 0
	for _, ev := range events {
		if ev.Type == domain.EventLocationChanged {
			n++
		}
	}
	return n
}

func TestIngest_RetryAfterLaneTimeout(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	s := sample(id, time.Now().UTC().Add(-time.Minute), "1", "1")

	held, release, done := make(chan struct{}), make(chan struct{}), make(chan struct{})
	go func() {
		defer close(done)
		_ = e.lanes.Do(context.Background(), id, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.pipeline.Ingest(ctx, s)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, current(t, e, id))

	close(release)
	<-done

	res, err := e.pipeline.Ingest(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.True(t, res.PositionUpdated)
	pos := current(t, e, id)
	require.NotNil(t, pos)
	assert.True(t, pos.RecordedAt.Equal(s.RecordedAt))
	assert.Equal(t, 1, locationEvents(t, e, id))

	res, err = e.pipeline.Ingest(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.PositionUpdated)
	assert.Equal(t, 1, locationEvents(t, e, id))
}

func TestIngest_Rejections(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	road := e.shipment(t, onTheRoad...)
	preparing := e.shipment(t)
	now := time.Now().UTC()
	neg := -1.0
	battery := 101.0

	tests := []struct {
		name   string
		mutate func(*domain.LocationSample)
		want   error
	}{
		{"missing device", func(s *domain.LocationSample) { s.DeviceID = "" }, apperr.ErrInvalid},
		{"lat out of range", func(s *domain.LocationSample) { s.Lat = decimal.NewFromInt(91) }, apperr.ErrInvalid},
		{"lon out of range", func(s *domain.LocationSample) { s.Lon = decimal.NewFromInt(-181) }, apperr.ErrInvalid},
		{"zero time", func(s *domain.LocationSample) { s.RecordedAt = time.Time{} }, apperr.ErrInvalid},
		{"negative accuracy", func(s *domain.LocationSample) { s.Accuracy = &neg }, apperr.ErrInvalid},
		{"battery over 100", func(s *domain.LocationSample) { s.BatteryLevel = &battery }, apperr.ErrInvalid},
		{"future", func(s *domain.LocationSample) { s.RecordedAt = now.Add(10 * time.Minute) }, apperr.ErrInvalidTimestamp},
		{"unknown shipment", func(s *domain.LocationSample) { s.ShipmentID = "nope" }, apperr.ErrNotFound},
		{"not trackable", func(s *domain.LocationSample) { s.ShipmentID = preparing }, apperr.ErrNotTrackable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample(road, now.Add(-time.Minute), "1", "1")
			tt.mutate(&s)
			_, err := e.pipeline.Ingest(context.Background(), s)
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.Nil(t, current(t, e, road))
	stored, err := e.store.ListSamples(context.Background(), preparing)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIngest_WithinClockSkew(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	id := e.shipment(t, onTheRoad...)
	res, err := e.pipeline.Ingest(context.Background(), sample(id, time.Now().UTC().Add(time.Minute), "1", "1"))
	require.NoError(t, err)
	assert.True(t, res.PositionUpdated)
}

func TestScenario_FullLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	id := e.shipment(t, domain.StatusReadyToShip, domain.StatusPickedUp)

	base := time.Now().UTC().Add(-200 * time.Second)
	t100 := base.Add(100 * time.Second)
	t90 := base.Add(90 * time.Second)

	res, err := e.pipeline.Ingest(ctx, sample(id, t100, "23.81", "90.41"))
	require.NoError(t, err)
	assert.True(t, res.PositionUpdated)

	res, err = e.pipeline.Ingest(ctx, sample(id, t90, "23.80", "90.40"))
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.False(t, res.PositionUpdated)

	pos := current(t, e, id)
	require.NotNil(t, pos)
	assert.True(t, pos.RecordedAt.Equal(t100))
	assert.True(t, pos.Lat.Equal(decimal.RequireFromString("23.81")))

	for _, st := range []domain.ShipmentStatus{domain.StatusInTransit, domain.StatusOutForDelivery, domain.StatusDelivered} {
		_, err := e.ships.Transition(ctx, domain.TransitionRequest{ShipmentID: id, Target: st, Actor: "driver"})
		require.NoError(t, err, "to %s", st)
	}

	sh, err := e.store.GetShipment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, sh.Status)
	require.NotNil(t, sh.ActualDelivery)

	samples, err := e.store.ListSamples(ctx, id)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	_, err = e.pipeline.Ingest(ctx, sample(id, time.Now().UTC(), "23.82", "90.42"))
	require.ErrorIs(t, err, apperr.ErrNotTrackable)
}
