package prefetch

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Failure is one remembered preload failure.
type Failure[K comparable] struct {
	ID       K
	Priority Priority
	Err      error
	At       time.Time
}

// failureLog is a bounded record of recent preload failures, newest kept.
// It is diagnostics only and never consulted by the scheduler.
type failureLog[K comparable] struct {
	mu    sync.Mutex
	cache *lru.Cache[K, Failure[K]]
}

// newFailureLog creates a failure log. A non-positive size disables it.
func newFailureLog[K comparable](size int) *failureLog[K] {
	if size <= 0 {
		return &failureLog[K]{} //nolint:exhaustruct // disabled log
	}

	c, err := lru.New[K, Failure[K]](size)
	if err != nil {
		// we can't recover from this error, so panic
		// in practice, this should never happen due to the size check above
		panic(fmt.Errorf("failed to create failure log: %w", err))
	}

	return &failureLog[K]{mu: sync.Mutex{}, cache: c}
}

func (l *failureLog[K]) add(f Failure[K]) {
	if l.cache == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Add(f.ID, f)
}

// forget drops id once it has been loaded successfully.
func (l *failureLog[K]) forget(id K) {
	if l.cache == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Remove(id)
}

// list returns failures from oldest to newest.
func (l *failureLog[K]) list() []Failure[K] {
	if l.cache == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cache.Values()
}
