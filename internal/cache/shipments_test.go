package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	testlog "shipment-tracker/internal/testutil"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type stubReader struct {
	mu      sync.Mutex
	byID    map[string]*domain.Shipment
	gets    int
	byCodes int
}

func (r *stubReader) Get(_ context.Context, id string) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	sh, ok := r.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *sh
	return &cp, nil
}

func (r *stubReader) GetByTrackingCode(_ context.Context, code string) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCodes++
	for _, sh := range r.byID {
		if sh.TrackingCode == code {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *stubReader) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets, r.byCodes
}

func fixture() *stubReader {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &stubReader{byID: map[string]*domain.Shipment{
		"s1": {
			ID: "s1", TrackingCode: "SHP-1", OrderID: "o1", WarehouseID: "w1",
			Status: domain.StatusInTransit, EventSeq: 3, VendorIDs: []string{"v1"},
			CurrentPosition: &domain.Position{
				Lat: decimal.RequireFromString("23.81"), Lon: decimal.RequireFromString("90.41"), RecordedAt: at,
			},
			CreatedAt: at, UpdatedAt: at,
		},
	}}
}

func TestShipments_GetCachesSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb, reader := newFakeRedis(), fixture()
	c := NewShipments(rdb, reader, time.Minute, nil)

	first, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := c.Get(ctx, "s1")
	require.NoError(t, err)

	gets, _ := reader.counts()
	assert.Equal(t, 1, gets)
	assert.Equal(t, time.Minute, rdb.ttl["shipment:s1"])
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, int64(3), second.EventSeq)
	require.NotNil(t, second.CurrentPosition)
	assert.True(t, second.CurrentPosition.Lat.Equal(decimal.RequireFromString("23.81")))
}

func TestShipments_GetByTrackingCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb, reader := newFakeRedis(), fixture()
	c := NewShipments(rdb, reader, 0, nil)

	sh, err := c.GetByTrackingCode(ctx, "SHP-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sh.ID)
	assert.Equal(t, DefaultTTL, rdb.ttl["shipment:s1"])

	sh, err = c.GetByTrackingCode(ctx, "SHP-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sh.ID)

	gets, byCodes := reader.counts()
	assert.Equal(t, 0, gets)
	assert.Equal(t, 1, byCodes)

	_, err = c.GetByTrackingCode(ctx, "SHP-404")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, rdb.has("tracking:SHP-404"))
}

func TestShipments_RedisDownFallsBack(t *testing.T) {
	t.Parallel()

	rdb, reader := newFakeRedis(), fixture()
	rdb.err = errors.New("connection refused")
	rec := testlog.New()
	c := NewShipments(rdb, reader, time.Minute, rec.Logger())

	sh, err := c.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sh.ID)
	assert.NotEmpty(t, rec.Find("cache read failed"))
	assert.NotEmpty(t, rec.Find("cache write failed"))

	_, err = c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestShipments_CorruptEntryIsReloaded(t *testing.T) {
	t.Parallel()

	rdb, reader := newFakeRedis(), fixture()
	rdb.data["shipment:s1"] = "{not json"
	c := NewShipments(rdb, reader, time.Minute, nil)

	sh, err := c.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sh.ID)
	gets, _ := reader.counts()
	assert.Equal(t, 1, gets)
}

func TestShipments_RunInvalidator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb, reader := newFakeRedis(), fixture()
	c := NewShipments(rdb, reader, time.Minute, nil)
	_, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, rdb.has("shipment:s1"))

	hub := distributor.NewHub(8, nil, nil)
	sub, err := hub.Subscribe(distributor.AdminScope())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.RunInvalidator(ctx, sub) }()

	hub.Publish(domain.Event{ShipmentID: "s1", Seq: 4, Type: domain.EventLocationChanged})
	require.Eventually(t, func() bool { return !rdb.has("shipment:s1") }, time.Second, 5*time.Millisecond)

	sub.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("invalidator did not stop")
	}

	_, err = c.Get(ctx, "s1")
	require.NoError(t, err)
	gets, _ := reader.counts()
	assert.Equal(t, 2, gets)
}

func TestShipments_StaleWriteBackIsIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb, reader := newFakeRedis(), fixture()
	c := NewShipments(rdb, reader, time.Minute, nil)

	old, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, int64(3), old.EventSeq)

	require.NoError(t, c.advance(ctx, domain.Event{ShipmentID: "s1", Seq: 4, Type: domain.EventStatusChanged}))
	assert.False(t, rdb.has("shipment:s1"))

	// a read that started before the event lands its snapshot late
	raw, err := json.Marshal(old)
	require.NoError(t, err)
	rdb.data["shipment:s1"] = string(raw)

	reader.mu.Lock()
	reader.byID["s1"].Status = domain.StatusOutForDelivery
	reader.byID["s1"].EventSeq = 4
	reader.mu.Unlock()

	sh, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), sh.EventSeq)
	assert.Equal(t, domain.StatusOutForDelivery, sh.Status)
	gets, _ := reader.counts()
	assert.Equal(t, 2, gets)
}

func TestShipments_DoesNotCacheRowsOlderThanFence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb, reader := newFakeRedis(), fixture()
	c := NewShipments(rdb, reader, time.Minute, nil)
	require.NoError(t, c.advance(ctx, domain.Event{ShipmentID: "s1", Seq: 5}))
	assert.Equal(t, time.Minute+fenceTTL, rdb.ttl["shipment:s1:seq"])

	sh, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), sh.EventSeq)
	assert.False(t, rdb.has("shipment:s1"))
}
