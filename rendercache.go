package prefetch

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of one cache entry.
type State uint8

const (
	// StateEmpty means the identifier was never fetched or its fetch failed.
	StateEmpty State = iota
	// StatePending means a fetch is in flight.
	StatePending
	// StateReady means the payload is cached. It is terminal.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type cacheEntry struct {
	state   State
	payload Payload
	// done is closed when a pending entry settles.
	done chan struct{}
}

// RenderCache maps identifiers to completed render payloads or to an in-flight marker.
// Once an identifier is ready it never changes.
type RenderCache[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]*cacheEntry
	debug   bool
}

// NewRenderCache creates an empty cache. With debug set, contract violations panic.
func NewRenderCache[K comparable](debug bool) *RenderCache[K] {
	return &RenderCache[K]{
		mu:      sync.RWMutex{},
		entries: make(map[K]*cacheEntry),
		debug:   debug,
	}
}

// Get returns the state of id and, when ready, its payload.
func (c *RenderCache[K]) Get(id K) (Payload, State) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return Payload{}, StateEmpty
	}

	return e.payload, e.state
}

// Ready returns the payload of id if it is ready.
func (c *RenderCache[K]) Ready(id K) (Payload, bool) {
	p, st := c.Get(id)
	return p, st == StateReady
}

// MarkPending moves id from empty to pending.
// It returns false and changes nothing if id is already pending or ready.
func (c *RenderCache[K]) MarkPending(id K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return false
	}

	c.entries[id] = &cacheEntry{state: StatePending, done: make(chan struct{})}

	return true
}

// Store moves id from pending to ready with payload.
// Storing for an entry that is not pending returns ErrNotPending and keeps the
// existing entry; in debug mode it panics.
func (c *RenderCache[K]) Store(id K, payload Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.state != StatePending {
		err := fmt.Errorf("store %v: %w", id, ErrNotPending)
		if c.debug {
			panic(err)
		}

		return err
	}

	e.state = StateReady
	e.payload = payload
	close(e.done)

	return nil
}

// Release moves id from pending back to empty so a later trigger may retry it.
// It is a no-op for entries that are not pending.
func (c *RenderCache[K]) Release(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.state != StatePending {
		return
	}

	delete(c.entries, id)
	close(e.done)
}

// Wait blocks while id is pending and returns the settled state.
// An identifier that is not pending returns immediately.
func (c *RenderCache[K]) Wait(ctx context.Context, id K) (Payload, State, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok {
		return Payload{}, StateEmpty, nil
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Payload{}, StatePending, ctx.Err()
	}

	p, st := c.Get(id)

	return p, st, nil
}

// Len returns the number of pending and ready entries.
func (c *RenderCache[K]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
