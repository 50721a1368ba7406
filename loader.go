package prefetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader fetches detail payloads through a primary transport and falls back
// to a secondary transport once. Consumers cannot tell which one answered.
type Loader[K comparable] struct {
	primary   ITransport[K]
	secondary ITransport[K]
	timeout   time.Duration
	logger    zerolog.Logger
	group     singleflight.Group

	// mu guards flights and seq.
	mu      sync.Mutex
	flights map[K]*flight
	seq     uint64
}

// flight is one shared fetch. Its key is unique per flight, so ids that
// print alike never share a singleflight call.
type flight struct {
	key    string
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

// NewLoader creates a loader. Only WithPrimaryTimeout and WithLogger apply.
func NewLoader[K comparable](primary, secondary ITransport[K], opts ...Option) (*Loader[K], error) {
	if primary == nil || secondary == nil {
		return nil, ErrNilTransport
	}

	o := applyOptions(opts)

	return &Loader[K]{
		primary:   primary,
		secondary: secondary,
		timeout:   o.primaryTimeout,
		logger:    o.logger,
		group:     singleflight.Group{},
		flights:   make(map[K]*flight),
	}, nil
}

// Load returns the payload for id. Concurrent calls for the same id share one fetch,
// even across sessions. The shared fetch is detached from any single caller: a caller
// whose ctx ends gets ctx.Err() while the others keep waiting, and the fetch is
// cancelled only when every caller has gone. It never retries beyond the single fallback.
func (l *Loader[K]) Load(ctx context.Context, id K) (Payload, error) {
	f := l.join(ctx, id)
	defer l.leave(id, f)

	ch := l.group.DoChan(f.key, func() (any, error) {
		return l.load(f.ctx, id, fmt.Sprint(id))
	})

	select {
	case res := <-ch:
		if res.Shared {
			l.logger.Debug().
				Str("component", "loader").
				Str("case_id", fmt.Sprint(id)).
				Msg("joined in-flight load")
		}

		if res.Err != nil {
			return Payload{}, res.Err
		}

		return res.Val.(Payload), nil //nolint:forcetypeassert // load only returns Payload
	case <-ctx.Done():
		return Payload{}, fmt.Errorf("load case %v: %w", id, ctx.Err())
	}
}

// join registers a caller on the flight for id, starting a new flight if none is running.
func (l *Loader[K]) join(ctx context.Context, id K) *flight {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.flights[id]
	if !ok {
		l.seq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{key: strconv.FormatUint(l.seq, 10), ctx: fctx, cancel: cancel}
		l.flights[id] = f
	}
	f.refs++

	return f
}

// leave drops a caller; the last one out cancels the fetch if it is still running.
func (l *Loader[K]) leave(id K, f *flight) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f.refs--
	if f.refs > 0 {
		return
	}

	f.cancel()
	if l.flights[id] == f {
		delete(l.flights, id)
	}
}

func (l *Loader[K]) load(ctx context.Context, id K, key string) (Payload, error) {
	start := time.Now()

	payload, primaryErr := l.fetchPrimary(ctx, id)
	if primaryErr == nil {
		l.logger.Debug().
			Str("component", "loader").
			Str("case_id", key).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("loaded via primary transport")

		return payload, nil
	}

	ev := l.logger.Debug()
	if errors.Is(primaryErr, context.DeadlineExceeded) {
		ev = l.logger.Warn().Dur("timeout", l.timeout)
	}
	ev.Str("component", "loader").
		Str("case_id", key).
		Err(primaryErr).
		Msg("primary transport failed, falling back")

	payload, secondaryErr := fetchValid(ctx, l.secondary, "secondary", id)
	if secondaryErr == nil {
		l.logger.Debug().
			Str("component", "loader").
			Str("case_id", key).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("loaded via secondary transport")

		return payload, nil
	}

	return Payload{}, &LoadError{ID: key, Primary: primaryErr, Secondary: secondaryErr}
}

func (l *Loader[K]) fetchPrimary(ctx context.Context, id K) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		payload Payload
		err     error
	}

	// buffered: the send must not block once the timeout fired
	done := make(chan result, 1)
	go func() {
		p, err := fetchValid(ctx, l.primary, "primary", id)
		done <- result{payload: p, err: err}
	}()

	select {
	case r := <-done:
		return r.payload, r.err
	case <-ctx.Done():
		return Payload{}, &TransportError{Transport: "primary", Err: ctx.Err()}
	}
}

func fetchValid[K comparable](ctx context.Context, t ITransport[K], name string, id K) (Payload, error) {
	payload, err := t.FetchDetail(ctx, id)
	if err == nil {
		err = payload.Validate()
	}

	if err != nil {
		return Payload{}, &TransportError{Transport: name, Err: err}
	}

	return payload, nil
}
