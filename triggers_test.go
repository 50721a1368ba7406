//nolint:exhaustruct // tests
package prefetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func card(id string, top, bottom float64) Card[string] {
	return Card[string]{ID: id, Element: fakeElement{top: top, bottom: bottom}}
}

func TestCardRegistry(t *testing.T) {
	t.Parallel()

	reg := NewCardRegistry[string]()

	var notified [][]Card[string]
	reg.Subscribe(func(changed []Card[string]) {
		notified = append(notified, changed)
	})

	reg.Add(card("a", 0, 100), card("b", 100, 200))
	require.Equal(t, 2, reg.Len())

	// Refreshing a known card replaces its element without duplicating it
	reg.Add(card("a", 500, 600))
	require.Equal(t, 2, reg.Len())

	cards := reg.Cards()
	require.Equal(t, "a", cards[0].ID)
	top, _ := cards[0].Element.Bounds()
	require.InDelta(t, 500.0, top, 0)

	reg.Add()
	require.Len(t, notified, 2)
	require.Len(t, notified[0], 2)
	require.Len(t, notified[1], 1)
}

func TestViewportTrigger_ExpandedMargin(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	s := newTestSession(t, loader, WithViewportMargin(100))

	reg := NewCardRegistry[string]()
	reg.Add(
		card("visible", 0, 100),
		card("margin", 550, 650),
		card("far", 700, 800),
	)

	vt := NewViewportTrigger(s, reg)

	require.Equal(t, 2, vt.Scroll(Viewport{Top: 0, Height: 500}))
	require.NoError(t, s.WaitIdle(context.Background()))
	require.Equal(t, StateReady, s.State("visible"))
	require.Equal(t, StateReady, s.State("margin"))
	require.Equal(t, StateEmpty, s.State("far"))

	// Only the card that just crossed into the margin is enqueued
	require.Equal(t, 1, vt.Scroll(Viewport{Top: 300, Height: 500}))
	require.NoError(t, s.WaitIdle(context.Background()))
	require.Equal(t, StateReady, s.State("far"))

	require.Equal(t, 0, vt.Scroll(Viewport{Top: 0, Height: 500}))
	require.Equal(t, 3, loader.totalCalls())
}

func TestViewportTrigger_ReattachesNewCards(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	s := newTestSession(t, loader, WithViewportMargin(0))

	reg := NewCardRegistry[string]()
	vt := NewViewportTrigger(s, reg)

	// Cards added before the first scroll wait for a viewport
	reg.Add(card("a", 0, 100))
	require.Equal(t, 0, loader.totalCalls())

	require.Equal(t, 1, vt.Scroll(Viewport{Top: 0, Height: 400}))
	require.NoError(t, s.WaitIdle(context.Background()))

	// Load more: new cards inside the current viewport are preloaded without a scroll
	reg.Add(card("b", 200, 300), card("c", 900, 1000))
	require.Eventually(t, func() bool { return s.State("b") == StateReady }, eventuallyWait, eventuallyTick)
	require.Equal(t, StateEmpty, s.State("c"))
}

func TestViewportTrigger_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	loader.setFailOnce("a", context.DeadlineExceeded)
	s := newTestSession(t, loader, WithViewportMargin(0))

	reg := NewCardRegistry[string]()
	reg.Add(card("a", 0, 100))
	vt := NewViewportTrigger(s, reg)

	require.Equal(t, 1, vt.Scroll(Viewport{Top: 0, Height: 200}))
	require.NoError(t, s.WaitIdle(context.Background()))
	require.Equal(t, StateEmpty, s.State("a"))

	// Scrolling away and back re-triggers the released card
	vt.Scroll(Viewport{Top: 1000, Height: 200})
	require.Equal(t, 1, vt.Scroll(Viewport{Top: 0, Height: 200}))
	require.NoError(t, s.WaitIdle(context.Background()))
	require.Equal(t, StateReady, s.State("a"))
}

func TestHoverTrigger_Fires(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	s := newTestSession(t, loader, WithHoverDelay(10*time.Millisecond))
	ht := NewHoverTrigger(s)

	ht.PointerEnter("a")
	require.True(t, ht.Hovering("a"))

	require.Eventually(t, func() bool { return s.State("a") == StateReady }, eventuallyWait, eventuallyTick)
	require.False(t, ht.Hovering("a"))

	// Hovering a cached card starts no timer
	ht.PointerEnter("a")
	require.False(t, ht.Hovering("a"))
	require.Equal(t, 1, loader.callCount("a"))
}

func TestHoverTrigger_LeaveCancels(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	s := newTestSession(t, loader, WithHoverDelay(30*time.Millisecond))
	ht := NewHoverTrigger(s)

	ht.PointerEnter("a")
	ht.PointerLeave("a")
	require.False(t, ht.Hovering("a"))

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 0, loader.callCount("a"))
	require.Equal(t, StateEmpty, s.State("a"))
}

func TestHoverTrigger_StoppedOnClose(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(false)
	s, err := NewSession[string](context.Background(), loader, WithHoverDelay(20*time.Millisecond))
	require.NoError(t, err)

	ht := NewHoverTrigger(s)
	ht.PointerEnter("a")
	s.Close()

	require.False(t, ht.Hovering("a"))

	ht.PointerEnter("b")
	require.False(t, ht.Hovering("b"))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, loader.totalCalls())
}

func TestTriggers_DedupViewportAndHover(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader(true)
	s := newTestSession(t, loader, WithConcurrency(1), WithHoverDelay(5*time.Millisecond), WithViewportMargin(0))

	// Occupy the only slot so both triggers hit the queue
	require.True(t, s.Preload("busy", PriorityHigh))
	require.Eventually(t, func() bool { return loader.callCount("busy") == 1 }, eventuallyWait, eventuallyTick)

	ht := NewHoverTrigger(s)
	ht.PointerEnter("a")
	require.Eventually(t, func() bool { return s.Stats().Queued == 1 }, eventuallyWait, eventuallyTick)

	reg := NewCardRegistry[string]()
	reg.Add(card("a", 0, 100))
	vt := NewViewportTrigger(s, reg)
	require.Equal(t, 1, vt.Scroll(Viewport{Top: 0, Height: 100}), "viewport upgrades the queued hover task")

	s.mu.Lock()
	task := s.queue.index["a"].Value.(*preloadTask[string]) //nolint:forcetypeassert // test
	require.Equal(t, PriorityHigh, task.priority)
	require.Equal(t, 1, s.queue.len())
	s.mu.Unlock()

	loader.release("busy")
	loader.release("a")
	require.NoError(t, s.WaitIdle(context.Background()))
	require.Equal(t, 1, loader.callCount("a"))
}
