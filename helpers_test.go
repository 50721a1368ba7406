//nolint:exhaustruct // tests
package prefetch

import (
	"context"
	"sync"
	"time"
)

// fakeLoader is an ILoader that records calls and can hold loads until released.
type fakeLoader struct {
	mu sync.Mutex

	block bool
	delay time.Duration
	gates map[string]chan struct{}
	fail  map[string]error

	// failOnce errors are returned by the next completed load only.
	failOnce map[string]error

	calls     map[string]int
	order     []string
	active    int
	maxActive int
}

func newFakeLoader(block bool) *fakeLoader {
	return &fakeLoader{
		block:    block,
		gates:    make(map[string]chan struct{}),
		fail:     make(map[string]error),
		failOnce: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeLoader) Load(ctx context.Context, id string) (Payload, error) {
	f.mu.Lock()
	f.calls[id]++
	f.order = append(f.order, id)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}

	var gate chan struct{}
	if f.block {
		gate = f.gateLocked(id)
	}
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Payload{}, ctx.Err()
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	err := f.fail[id]
	if once, ok := f.failOnce[id]; ok {
		err = once
		delete(f.failOnce, id)
	}
	f.mu.Unlock()

	if err != nil {
		return Payload{}, err
	}

	return testPayload(id), nil
}

func (f *fakeLoader) gateLocked(id string) chan struct{} {
	g, ok := f.gates[id]
	if !ok {
		g = make(chan struct{})
		f.gates[id] = g
	}

	return g
}

// release lets every current and future load of id complete.
func (f *fakeLoader) release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := f.gateLocked(id)
	select {
	case <-g:
	default:
		close(g)
	}
}

func (f *fakeLoader) setFail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.fail, id)
		return
	}

	f.fail[id] = err
}

func (f *fakeLoader) setFailOnce(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failOnce[id] = err
}

func (f *fakeLoader) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[id]
}

func (f *fakeLoader) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.order)
}

func (f *fakeLoader) concurrencyPeak() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxActive
}

func testPayload(id string) Payload {
	return Payload{HTML: "<article>" + id + "</article>", Title: "Case " + id}
}

// mockMetrics is a mock implementation of the IMetrics interface for testing purposes.
type mockMetrics struct {
	name string

	cacheHit  int
	cacheMiss int

	preloadOK   int
	preloadFail int

	mu sync.Mutex
}

func (m *mockMetrics) LogCacheHitRatio(_ context.Context, name string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.name = name
	if hit {
		m.cacheHit++
	} else {
		m.cacheMiss++
	}
}

func (m *mockMetrics) LogPreloadResult(_ context.Context, name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.name = name
	if ok {
		m.preloadOK++
	} else {
		m.preloadFail++
	}
}

func (m *mockMetrics) snapshot() mockMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return mockMetrics{
		name:        m.name,
		cacheHit:    m.cacheHit,
		cacheMiss:   m.cacheMiss,
		preloadOK:   m.preloadOK,
		preloadFail: m.preloadFail,
	}
}

// fakeRenderer records what the navigator rendered.
type fakeRenderer struct {
	mu       sync.Mutex
	payloads []Payload
	errs     []error
}

func (r *fakeRenderer) Render(_ context.Context, payload Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payloads = append(r.payloads, payload)
}

func (r *fakeRenderer) RenderError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

func (r *fakeRenderer) rendered() ([]Payload, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Payload(nil), r.payloads...), append([]error(nil), r.errs...)
}

// fakePlaceholder records placeholder calls.
type fakePlaceholder struct {
	mu       sync.Mutex
	shown    int
	progress []float64
}

func (p *fakePlaceholder) ShowPlaceholder(context.Context) PlaceholderHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shown++

	return p.shown
}

func (p *fakePlaceholder) Advance(_ PlaceholderHandle, progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress = append(p.progress, progress)
}

func (p *fakePlaceholder) snapshot() (int, []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.shown, append([]float64(nil), p.progress...)
}

// fakeElement is an Element with fixed bounds.
type fakeElement struct {
	top, bottom float64
}

func (e fakeElement) Bounds() (float64, float64) {
	return e.top, e.bottom
}

const (
	eventuallyWait = 2 * time.Second
	eventuallyTick = 5 * time.Millisecond
)
