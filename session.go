package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Stats is a point-in-time snapshot of a session.
type Stats struct {
	Queued        int
	InFlight      int
	Cached        int
	Hits          uint64
	Misses        uint64
	Preloaded     uint64
	PreloadFailed uint64
}

// Session is the prefetch state of one gallery instance: the render cache,
// the preload queue and the set of identifiers being preloaded.
// Triggers and navigators are attached to a session explicitly.
type Session[K comparable] struct {
	op options

	cache    *RenderCache[K]
	loader   ILoader[K]
	failures *failureLog[K]

	// mu guards queue, inflight, idle, closed and closers.
	mu       sync.Mutex
	queue    *preloadQueue[K]
	inflight map[K]struct{}
	sem      *semaphore.Weighted
	// idle is non-nil while there is queued or in-flight work and is closed when it drains.
	idle    chan struct{}
	closed  bool
	closers []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hits          atomic.Uint64
	misses        atomic.Uint64
	preloaded     atomic.Uint64
	preloadFailed atomic.Uint64
}

var _ ISession[string] = (*Session[string])(nil)

// NewSession creates a session whose preloads run until ctx is done or Close is called.
func NewSession[K comparable](ctx context.Context, loader ILoader[K], opts ...Option) (*Session[K], error) {
	if loader == nil {
		return nil, fmt.Errorf("new session: %w", ErrNilTransport)
	}

	o := applyOptions(opts)
	if o.concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, o.concurrency)
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Session[K]{
		op:       o,
		cache:    NewRenderCache[K](o.debug),
		loader:   loader,
		failures: newFailureLog[K](o.failureLogSize),
		queue:    newPreloadQueue[K](),
		inflight: make(map[K]struct{}),
		sem:      semaphore.NewWeighted(int64(o.concurrency)),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Cache returns the render cache shared by preloads and navigation.
func (s *Session[K]) Cache() *RenderCache[K] {
	return s.cache
}

// State returns the cache state of id.
func (s *Session[K]) State(id K) State {
	_, st := s.cache.Get(id)
	return st
}

// IsCached reports whether id is pending or ready.
func (s *Session[K]) IsCached(id K) bool {
	return s.State(id) != StateEmpty
}

// Enqueue adds a preload task without starting it.
// It returns false if id is cached, in flight, or already queued at the same or a higher tier.
// A queued task receiving a higher tier is upgraded in place.
func (s *Session[K]) Enqueue(id K, priority Priority) bool {
	if !priority.Valid() || s.IsCached(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if _, ok := s.inflight[id]; ok {
		return false
	}

	if !s.queue.push(id, priority) {
		return false
	}

	if s.idle == nil {
		s.idle = make(chan struct{})
	}

	s.op.logger.Debug().
		Str("component", "scheduler").
		Str("case_id", fmt.Sprint(id)).
		Str("priority", priority.String()).
		Int("queued", s.queue.len()).
		Msg("preload enqueued")

	return true
}

// Drain starts queued preloads while concurrency slots are free.
// It is re-entrant: every completed preload drains again.
func (s *Session[K]) Drain() {
	for {
		if !s.sem.TryAcquire(1) {
			return
		}

		s.mu.Lock()
		task, ok := s.nextLocked()
		if !ok {
			s.checkIdleLocked()
			s.mu.Unlock()
			s.sem.Release(1)

			return
		}

		s.inflight[task.id] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.run(task)
	}
}

// nextLocked pops the highest priority task that is still empty in the cache and marks it pending.
func (s *Session[K]) nextLocked() (*preloadTask[K], bool) {
	if s.closed {
		return nil, false
	}

	for {
		task, ok := s.queue.pop()
		if !ok {
			return nil, false
		}

		if s.cache.MarkPending(task.id) {
			return task, true
		}

		s.op.logger.Debug().
			Str("component", "scheduler").
			Str("case_id", fmt.Sprint(task.id)).
			Msg("preload skipped, already cached")
	}
}

func (s *Session[K]) run(task *preloadTask[K]) {
	defer s.wg.Done()

	payload, err := s.loader.Load(s.ctx, task.id)
	cancelled := err != nil && s.ctx.Err() != nil && errors.Is(err, context.Canceled)

	switch {
	case cancelled:
		// cancelled by Close: not a backend failure
		s.cache.Release(task.id)
		s.op.logger.Debug().
			Str("component", "scheduler").
			Str("case_id", fmt.Sprint(task.id)).
			Msg("preload cancelled")
	case err != nil:
		s.cache.Release(task.id)
		s.failures.add(Failure[K]{ID: task.id, Priority: task.priority, Err: err, At: time.Now()})
		s.preloadFailed.Add(1)

		s.op.logger.Debug().
			Str("component", "scheduler").
			Str("case_id", fmt.Sprint(task.id)).
			Str("priority", task.priority.String()).
			Err(err).
			Msg("preload failed")
	default:
		if storeErr := s.cache.Store(task.id, payload); storeErr != nil {
			s.op.logger.Warn().
				Str("component", "scheduler").
				Err(storeErr).
				Msg("preload result not stored")
		}

		s.failures.forget(task.id)
		s.preloaded.Add(1)
	}

	if s.op.metrics != nil && !cancelled {
		s.op.metrics.LogPreloadResult(s.ctx, s.op.name, err == nil)
	}

	s.mu.Lock()
	delete(s.inflight, task.id)
	s.mu.Unlock()

	s.sem.Release(1)
	s.Drain()
}

func (s *Session[K]) checkIdleLocked() {
	if s.idle != nil && s.queue.len() == 0 && len(s.inflight) == 0 {
		close(s.idle)
		s.idle = nil
	}
}

// Preload enqueues id and drains immediately.
func (s *Session[K]) Preload(id K, priority Priority) bool {
	ok := s.Enqueue(id, priority)
	s.Drain()

	return ok
}

// Warmup enqueues ids at normal priority, drains, and returns how many were enqueued.
func (s *Session[K]) Warmup(ids ...K) int {
	n := 0
	for _, id := range ids {
		if s.Enqueue(id, PriorityNormal) {
			n++
		}
	}

	s.Drain()

	return n
}

// WaitIdle blocks until the queue and the in-flight set are both empty.
func (s *Session[K]) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Stats returns a snapshot of the session counters.
func (s *Session[K]) Stats() Stats {
	s.mu.Lock()
	queued, inflight := s.queue.len(), len(s.inflight)
	s.mu.Unlock()

	return Stats{
		Queued:        queued,
		InFlight:      inflight,
		Cached:        s.cache.Len(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Preloaded:     s.preloaded.Load(),
		PreloadFailed: s.preloadFailed.Load(),
	}
}

// RecentFailures returns the most recent preload failures, oldest first.
func (s *Session[K]) RecentFailures() []Failure[K] {
	return s.failures.list()
}

// Close stops triggers attached to the session, cancels running preloads and
// waits for them to return. Cached payloads stay readable.
func (s *Session[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, fn := range closers {
		fn()
	}

	s.cancel()
	s.wg.Wait()
}

func (s *Session[K]) onClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closers = append(s.closers, fn)
}

func (s *Session[K]) recordLookup(ctx context.Context, hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}

	if s.op.metrics != nil {
		s.op.metrics.LogCacheHitRatio(ctx, s.op.name, hit)
	}
}

// fetch loads id for a navigation request, bypassing the queue.
// If a preload for id is in flight it waits for that result instead of fetching again.
func (s *Session[K]) fetch(ctx context.Context, id K) (Payload, error) {
	for {
		if s.cache.MarkPending(id) {
			payload, err := s.loader.Load(ctx, id)
			if err != nil {
				s.cache.Release(id)
				return Payload{}, err
			}

			if storeErr := s.cache.Store(id, payload); storeErr != nil {
				s.op.logger.Warn().
					Str("component", "navigator").
					Err(storeErr).
					Msg("navigation result not stored")
			}

			return payload, nil
		}

		payload, st, err := s.cache.Wait(ctx, id)
		if err != nil {
			return Payload{}, err
		}

		if st == StateReady {
			return payload, nil
		}
		// the racing preload failed, load it ourselves
	}
}
