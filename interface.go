package prefetch

import "context"

// ISession is an interface for the prefetch session of one gallery instance.
// For convenience of testing and replacing the implementation.
type ISession[K comparable] interface {
	Enqueue(id K, priority Priority) bool
	Drain()
	Preload(id K, priority Priority) bool
	Warmup(ids ...K) int
	IsCached(id K) bool
	State(id K) State
	WaitIdle(ctx context.Context) error
	Stats() Stats
	Close()
}

// ILoader loads the detail payload for one identifier.
type ILoader[K comparable] interface {
	Load(ctx context.Context, id K) (Payload, error)
}

// ITransport is a single call path to the backing data source.
// It returns an error on any failure, including non-success responses.
type ITransport[K comparable] interface {
	FetchDetail(ctx context.Context, id K) (Payload, error)
}

// IRenderer replaces the detail view content.
type IRenderer interface {
	Render(ctx context.Context, payload Payload)
	RenderError(ctx context.Context, err error)
}

// PlaceholderHandle identifies a displayed loading placeholder.
type PlaceholderHandle any

// IPlaceholder displays the skeleton layout shown while a navigation load runs.
// progress passed to Advance increases monotonically and stays below 1.
type IPlaceholder interface {
	ShowPlaceholder(ctx context.Context) PlaceholderHandle
	Advance(handle PlaceholderHandle, progress float64)
}

// IMetrics is an interface for collecting cache hit ratio and preload outcomes.
type IMetrics interface {
	LogCacheHitRatio(ctx context.Context, name string, hit bool)
	LogPreloadResult(ctx context.Context, name string, ok bool)
}
