package prefetch

import (
	"fmt"
	"sync"
	"time"
)

// Element is a handle to a rendered summary card.
// Bounds returns the card's vertical extent in page coordinates.
type Element interface {
	Bounds() (top, bottom float64)
}

// Card pairs a case identifier with the element that displays its summary.
type Card[K comparable] struct {
	ID      K
	Element Element
}

// CardRegistry is the list of summary cards currently on the page.
// The gallery list renderer adds cards to it, triggers observe it.
type CardRegistry[K comparable] struct {
	mu          sync.RWMutex
	cards       []Card[K]
	index       map[K]int
	subscribers []func(changed []Card[K])
}

// NewCardRegistry creates an empty registry.
func NewCardRegistry[K comparable]() *CardRegistry[K] {
	return &CardRegistry[K]{
		index: make(map[K]int),
	}
}

// Add registers new cards and refreshes the element of cards already known.
// Subscribers are called with every added or refreshed card.
func (r *CardRegistry[K]) Add(cards ...Card[K]) {
	r.mu.Lock()

	changed := make([]Card[K], 0, len(cards))
	for _, c := range cards {
		if i, ok := r.index[c.ID]; ok {
			r.cards[i] = c
		} else {
			r.index[c.ID] = len(r.cards)
			r.cards = append(r.cards, c)
		}

		changed = append(changed, c)
	}

	subscribers := append([]func([]Card[K]){}, r.subscribers...)
	r.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	for _, fn := range subscribers {
		fn(changed)
	}
}

// Cards returns a copy of the registered cards in insertion order.
func (r *CardRegistry[K]) Cards() []Card[K] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Card[K](nil), r.cards...)
}

// Len returns the number of registered cards.
func (r *CardRegistry[K]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.cards)
}

// Subscribe registers fn to be called when cards are added or refreshed.
func (r *CardRegistry[K]) Subscribe(fn func(changed []Card[K])) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers = append(r.subscribers, fn)
}

// Viewport is the visible vertical range of the page.
type Viewport struct {
	Top    float64
	Height float64
}

// ViewportTrigger preloads cards at high priority when they come near the viewport.
type ViewportTrigger[K comparable] struct {
	session  *Session[K]
	registry *CardRegistry[K]
	margin   float64

	mu       sync.Mutex
	viewport *Viewport
	inside   map[K]bool
}

// NewViewportTrigger observes registry on behalf of s, including cards added later.
func NewViewportTrigger[K comparable](s *Session[K], registry *CardRegistry[K]) *ViewportTrigger[K] {
	t := &ViewportTrigger[K]{
		session:  s,
		registry: registry,
		margin:   s.op.viewportMargin,
		inside:   make(map[K]bool),
	}

	registry.Subscribe(t.observe)

	return t
}

// Scroll records the new viewport and enqueues every card that just entered the
// expanded viewport and is not cached. It returns the number of enqueued cards.
func (t *ViewportTrigger[K]) Scroll(v Viewport) int {
	t.mu.Lock()
	t.viewport = &v
	n := t.evaluateLocked(t.registry.Cards())
	t.mu.Unlock()

	if n > 0 {
		t.session.Drain()
	}

	return n
}

func (t *ViewportTrigger[K]) observe(changed []Card[K]) {
	t.mu.Lock()
	if t.viewport == nil {
		t.mu.Unlock()
		return
	}

	n := t.evaluateLocked(changed)
	t.mu.Unlock()

	if n > 0 {
		t.session.Drain()
	}
}

func (t *ViewportTrigger[K]) evaluateLocked(cards []Card[K]) int {
	top := t.viewport.Top - t.margin
	bottom := t.viewport.Top + t.viewport.Height + t.margin

	n := 0
	for _, c := range cards {
		if c.Element == nil {
			continue
		}

		cardTop, cardBottom := c.Element.Bounds()
		in := cardBottom >= top && cardTop <= bottom
		was := t.inside[c.ID]

		if !in {
			delete(t.inside, c.ID)
			continue
		}

		t.inside[c.ID] = true
		if was || t.session.IsCached(c.ID) {
			continue
		}

		if t.session.Enqueue(c.ID, PriorityHigh) {
			n++
		}
	}

	return n
}

type hoverTimer struct {
	timer *time.Timer
	gen   uint64
}

// HoverTrigger preloads a card after the pointer rested on it for the hover delay.
type HoverTrigger[K comparable] struct {
	session *Session[K]
	delay   time.Duration

	mu      sync.Mutex
	timers  map[K]hoverTimer
	gen     uint64
	stopped bool
}

// NewHoverTrigger creates a hover trigger for s. It is stopped when s is closed.
func NewHoverTrigger[K comparable](s *Session[K]) *HoverTrigger[K] {
	t := &HoverTrigger[K]{
		session: s,
		delay:   s.op.hoverDelay,
		timers:  make(map[K]hoverTimer),
	}

	s.onClose(t.Stop)

	return t
}

// PointerEnter starts the hover timer for id.
func (t *HoverTrigger[K]) PointerEnter(id K) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if _, ok := t.timers[id]; ok {
		return
	}

	if t.session.IsCached(id) {
		return
	}

	t.gen++
	gen := t.gen
	t.timers[id] = hoverTimer{
		timer: time.AfterFunc(t.delay, func() { t.fire(id, gen) }),
		gen:   gen,
	}
}

// PointerLeave cancels the hover timer for id if it has not fired yet.
func (t *HoverTrigger[K]) PointerLeave(id K) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.timers[id]; ok {
		h.timer.Stop()
		delete(t.timers, id)
	}
}

// Hovering reports whether a hover timer for id is running.
func (t *HoverTrigger[K]) Hovering(id K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.timers[id]

	return ok
}

// Stop cancels every running hover timer. Later pointer events are ignored.
func (t *HoverTrigger[K]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for id, h := range t.timers {
		h.timer.Stop()
		delete(t.timers, id)
	}
}

func (t *HoverTrigger[K]) fire(id K, gen uint64) {
	t.mu.Lock()
	h, ok := t.timers[id]
	if !ok || h.gen != gen {
		t.mu.Unlock()
		return
	}

	delete(t.timers, id)
	t.mu.Unlock()

	if t.session.IsCached(id) {
		return
	}

	if t.session.Preload(id, PriorityHoverIntent) {
		t.session.op.logger.Debug().
			Str("component", "trigger").
			Str("case_id", fmt.Sprint(id)).
			Msg("hover intent preload")
	}
}
