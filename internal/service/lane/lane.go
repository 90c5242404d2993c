// Package lane serializes work per key. Work for different keys runs in parallel.
package lane

import (
	"context"
	"sync"
)

type lane struct {
	slot chan struct{}
	refs int
}

// Lanes is a registry of per-key serial lanes. Idle lanes are dropped.
type Lanes struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// New creates an empty registry.
func New() *Lanes {
	return &Lanes{lanes: make(map[string]*lane)}
}

// Do runs fn once no other fn for key is running. It returns ctx.Err()
// without running fn if ctx ends first. The lane is released on every
// return path, panics included.
func (l *Lanes) Do(ctx context.Context, key string, fn func() error) error {
	ln := l.ref(key)
	defer l.unref(key, ln)

	select {
	case ln.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ln.slot }()

	return fn()
}

// Len returns the number of lanes currently held or waited on.
func (l *Lanes) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

func (l *Lanes) ref(key string) *lane {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{slot: make(chan struct{}, 1)}
		l.lanes[key] = ln
	}
	ln.refs++
	return ln
}

func (l *Lanes) unref(key string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, key)
	}
}
