package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
)

// DefaultTTL bounds how long a snapshot may be served after a missed invalidation.
const DefaultTTL = 10 * time.Second

// codeTTL applies to code -> id mappings, which never change.
const codeTTL = 24 * time.Hour

// fenceTTL keeps the last seen event seq past the life of any snapshot
// written by a read that started before the event.
const fenceTTL = time.Minute

func snapshotKey(id string) string { return "shipment:" + id }

func fenceKey(id string) string { return "shipment:" + id + ":seq" }

func codeKey(code string) string { return "tracking:" + code }

// Shipments serves shipment snapshots cache-aside over a ShipmentReader.
// Redis failures degrade to the reader.
type Shipments struct {
	rdb    client
	next   ShipmentReader
	ttl    time.Duration
	logger logx.Logger
}

// NewShipments wraps next with a Redis snapshot cache.
func NewShipments(rdb client, next ShipmentReader, ttl time.Duration, logger logx.Logger) *Shipments {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Shipments{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		logger: logger.With(logx.String("component", "shipment_cache")),
	}
}

// Get returns the shipment snapshot by id.
func (c *Shipments) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	if sh, ok := c.load(ctx, id); ok {
		return sh, nil
	}
	sh, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, sh)
	return sh, nil
}

// GetByTrackingCode returns the shipment snapshot by its order-level tracking code.
func (c *Shipments) GetByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error) {
	id, err := c.rdb.Get(ctx, codeKey(code)).Result()
	switch {
	case err == nil:
		return c.Get(ctx, id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", logx.String("code", code), logx.Err(err))
	}

	sh, err := c.next.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, codeKey(code), sh.ID, codeTTL).Err(); err != nil {
		c.logger.Warn("cache write failed", logx.String("code", code), logx.Err(err))
	}
	c.store(ctx, sh)
	return sh, nil
}

// Invalidate drops the snapshot of a shipment.
func (c *Shipments) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, snapshotKey(id)).Err()
}

// advance raises the fence to ev.Seq and drops the snapshot. A snapshot
// written afterwards by an older read is older than the fence and is ignored.
func (c *Shipments) advance(ctx context.Context, ev domain.Event) error {
	if err := c.rdb.Set(ctx, fenceKey(ev.ShipmentID), ev.Seq, c.ttl+fenceTTL).Err(); err != nil {
		return err
	}
	return c.Invalidate(ctx, ev.ShipmentID)
}

func (c *Shipments) load(ctx context.Context, id string) (*domain.Shipment, bool) {
	raw, err := c.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", logx.String("shipment_id", id), logx.Err(err))
		}
		return nil, false
	}
	var sh domain.Shipment
	if err := json.Unmarshal(raw, &sh); err != nil {
		c.logger.Warn("cache entry corrupt", logx.String("shipment_id", id), logx.Err(err))
		return nil, false
	}
	if fence, ok := c.fence(ctx, id); ok && sh.EventSeq < fence {
		c.logger.Debug("cache entry stale",
			logx.String("shipment_id", id),
			logx.Int64("event_seq", sh.EventSeq),
			logx.Int64("fence", fence),
		)
		return nil, false
	}
	return &sh, true
}

// fence returns the newest event seq the invalidator has seen for id.
func (c *Shipments) fence(ctx context.Context, id string) (int64, bool) {
	seq, err := c.rdb.Get(ctx, fenceKey(id)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", logx.String("shipment_id", id), logx.Err(err))
		}
		return 0, false
	}
	return seq, true
}

func (c *Shipments) store(ctx context.Context, sh *domain.Shipment) {
	if fence, ok := c.fence(ctx, sh.ID); ok && sh.EventSeq < fence {
		return
	}
	raw, err := json.Marshal(sh)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, snapshotKey(sh.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", logx.String("shipment_id", sh.ID), logx.Err(err))
	}
}

// RunInvalidator drops snapshots of every shipment seen on src until ctx is
// done or src is closed. Dropped events are covered by the snapshot TTL.
func (c *Shipments) RunInvalidator(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, distributor.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n := src.TakeDropped(); n > 0 {
			c.logger.Warn("cache invalidator fell behind", logx.Int("dropped", n))
		}
		if err := c.advance(ctx, ev); err != nil {
			c.logger.Warn("cache invalidate failed", logx.String("shipment_id", ev.ShipmentID), logx.Err(err))
		}
	}
}
