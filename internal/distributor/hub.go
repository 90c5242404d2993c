// Package distributor fans shipment events out to live subscribers.
// Publishing never blocks: each subscriber owns a bounded queue that sheds
// its oldest events when the subscriber falls behind.
package distributor

import (
	"context"
	"errors"
	"sync"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/metrics"
)

// DefaultBuffer is the queue size used when none is configured.
const DefaultBuffer = 64

// ErrClosed is returned by Next after the subscription or the hub was closed.
var ErrClosed = errors.New("subscription closed")

// ErrInvalidScope rejects scopes without a target id.
var ErrInvalidScope = errors.New("invalid subscription scope")

// Hub is an in-process event distributor.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	buffer  int
	metrics *metrics.Tracking
	logger  logx.Logger
}

// NewHub creates a Hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, m *metrics.Tracking, logger logx.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Hub{
		subs:    make(map[uint64]*Subscription),
		buffer:  buffer,
		metrics: m,
		logger:  logger,
	}
}

// Subscribe registers a subscriber for scope.
func (h *Hub) Subscribe(scope Scope) (*Subscription, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	h.nextID++
	sub := &Subscription{
		hub:    h,
		id:     h.nextID,
		scope:  scope,
		queue:  make([]domain.Event, h.buffer),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h.subs[sub.id] = sub
	h.metrics.SubscriberDelta(1)
	h.logger.Debug("subscriber added",
		logx.String("scope", scope.Kind.String()),
		logx.String("scope_id", scope.ID),
	)
	return sub, nil
}

// Publish hands ev to every matching subscriber without waiting for any of them.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.scope.Matches(ev) {
			if n := sub.enqueue(ev); n > 0 {
				h.metrics.Dropped(n)
			}
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		h.metrics.SubscriberDelta(-1)
	}
}

// Subscription is one subscriber's view of the hub.
type Subscription struct {
	hub   *Hub
	id    uint64
	scope Scope

	mu      sync.Mutex
	queue   []domain.Event
	head    int
	size    int
	dropped int
	closed  bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Scope returns the subscription filter.
func (s *Subscription) Scope() Scope { return s.scope }

// enqueue appends ev, evicting the oldest event when full. It returns the number of evicted events.
func (s *Subscription) enqueue(ev domain.Event) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	evicted := 0
	if s.size == len(s.queue) {
		s.queue[s.head] = domain.Event{}
		s.head = (s.head + 1) % len(s.queue)
		s.size--
		s.dropped++
		evicted = 1
	}
	s.queue[(s.head+s.size)%len(s.queue)] = ev
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return evicted
}

func (s *Subscription) pop() (domain.Event, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size > 0 {
		ev := s.queue[s.head]
		s.queue[s.head] = domain.Event{}
		s.head = (s.head + 1) % len(s.queue)
		s.size--
		return ev, true, false
	}
	return domain.Event{}, false, s.closed
}

// Next waits for the next event in publish order.
func (s *Subscription) Next(ctx context.Context) (domain.Event, error) {
	for {
		ev, ok, closed := s.pop()
		if ok {
			return ev, nil
		}
		if closed {
			return domain.Event{}, ErrClosed
		}
		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		}
	}
}

// TakeDropped returns how many events were evicted since the last call and resets the count.
func (s *Subscription) TakeDropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.dropped
	s.dropped = 0
	return n
}

// Close unsubscribes. Pending events are discarded.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.size = 0
		s.mu.Unlock()
		close(s.done)
		s.hub.remove(s.id)
	})
}
