package prefetch

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source is where a navigation request came from. All sources share one guarded path.
type Source uint8

const (
	// SourceClick is a user click on a gallery card.
	SourceClick Source = iota
	// SourceHistory is browser back/forward carrying a previously pushed identifier.
	SourceHistory
	// SourceDeepLink is an identifier detected on initial page load.
	SourceDeepLink
)

func (s Source) String() string {
	switch s {
	case SourceClick:
		return "click"
	case SourceHistory:
		return "history"
	case SourceDeepLink:
		return "deeplink"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// Outcome is how a navigation request was settled.
type Outcome uint8

const (
	// OutcomeDropped means another navigation was in flight and the request was ignored.
	OutcomeDropped Outcome = iota
	// OutcomeCached means the payload was rendered straight from the cache.
	OutcomeCached
	// OutcomeLoaded means the payload was loaded, or awaited from a running preload, then rendered.
	OutcomeLoaded
	// OutcomeFailed means the load failed and the error was rendered.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeCached:
		return "cached"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Navigator displays the detail view for one identifier at a time.
type Navigator[K comparable] struct {
	session     *Session[K]
	renderer    IRenderer
	placeholder IPlaceholder

	busy atomic.Bool
}

// NewNavigator attaches a navigator to s. placeholder may be nil.
func NewNavigator[K comparable](s *Session[K], renderer IRenderer, placeholder IPlaceholder) *Navigator[K] {
	return &Navigator[K]{
		session:     s,
		renderer:    renderer,
		placeholder: placeholder,
	}
}

// Busy reports whether a navigation load is in flight.
func (n *Navigator[K]) Busy() bool {
	return n.busy.Load()
}

// Navigate renders the detail view for id. It blocks until the view is rendered.
// A request arriving while another is in flight is dropped and returns OutcomeDropped.
// A load failure is rendered and returned; it is not retried.
func (n *Navigator[K]) Navigate(ctx context.Context, id K, source Source) (Outcome, error) {
	log := n.session.op.logger.With().
		Str("component", "navigator").
		Str("case_id", fmt.Sprint(id)).
		Str("source", source.String()).
		Logger()

	if !n.busy.CompareAndSwap(false, true) {
		log.Debug().Msg("navigation dropped, another one is in flight")
		return OutcomeDropped, nil
	}
	defer n.busy.Store(false)

	log = log.With().Str("request_id", ulid.Make().String()).Logger()

	if payload, ok := n.session.cache.Ready(id); ok {
		n.session.recordLookup(ctx, true)
		n.renderer.Render(ctx, payload)
		log.Debug().Msg("served from cache")

		return OutcomeCached, nil
	}

	n.session.recordLookup(ctx, false)
	start := time.Now()

	stop := n.showPlaceholder(ctx)
	payload, err := n.session.fetch(ctx, id)
	stop()

	if err != nil {
		log.Warn().
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("navigation load failed")
		n.renderer.RenderError(ctx, err)

		return OutcomeFailed, err
	}

	n.renderer.Render(ctx, payload)
	log.Debug().
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("navigation loaded")

	return OutcomeLoaded, nil
}

// showPlaceholder displays the placeholder and advances it until the returned func is called.
// No Advance call happens after the returned func returns.
func (n *Navigator[K]) showPlaceholder(ctx context.Context) func() {
	if n.placeholder == nil {
		return func() {}
	}

	handle := n.placeholder.ShowPlaceholder(ctx)

	tick := n.session.op.placeholderTick
	if tick <= 0 {
		return func() {}
	}

	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		start := time.Now()
		for {
			select {
			case <-stopCh:
				return
			case now := <-ticker.C:
				n.placeholder.Advance(handle, placeholderProgress(now.Sub(start)))
			}
		}
	}()

	return func() {
		close(stopCh)
		<-done
	}
}

// placeholderProgress approaches defaultPlaceholderLimit asymptotically.
func placeholderProgress(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return defaultPlaceholderLimit * (1 - math.Exp(-float64(elapsed)/float64(defaultPlaceholderTau)))
}
