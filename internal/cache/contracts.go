package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"shipment-tracker/internal/domain"
)

// client is the subset of redis.Cmdable the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ShipmentReader loads shipment snapshots from the system of record.
type ShipmentReader interface {
	Get(ctx context.Context, id string) (*domain.Shipment, error)
	GetByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error)
}

// EventSource yields events in publish order.
type EventSource interface {
	Next(ctx context.Context) (domain.Event, error)
	TakeDropped() int
}
