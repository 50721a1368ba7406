package prefetch

import (
	"time"

	"github.com/rs/zerolog"
)

// Default tunables. They were chosen empirically and are all overridable.
const (
	DefaultConcurrency      = 3
	DefaultHoverDelay       = 300 * time.Millisecond
	DefaultViewportMargin   = 300.0
	DefaultPrimaryTimeout   = 5 * time.Second
	DefaultFailureLogSize   = 64
	DefaultPlaceholderTick  = 100 * time.Millisecond
	defaultPlaceholderTau   = 1500 * time.Millisecond
	defaultPlaceholderLimit = 0.95
)

// Option is a function for configuring a Session or a Loader.
type Option func(*options)

type options struct {
	name    string
	metrics IMetrics
	logger  zerolog.Logger

	concurrency     int
	hoverDelay      time.Duration
	viewportMargin  float64
	primaryTimeout  time.Duration
	failureLogSize  int
	placeholderTick time.Duration
	debug           bool
}

func defaultOptions() options {
	return options{
		name:            "prefetch",
		metrics:         nil,
		logger:          zerolog.Nop(),
		concurrency:     DefaultConcurrency,
		hoverDelay:      DefaultHoverDelay,
		viewportMargin:  DefaultViewportMargin,
		primaryTimeout:  DefaultPrimaryTimeout,
		failureLogSize:  DefaultFailureLogSize,
		placeholderTick: DefaultPlaceholderTick,
		debug:           false,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithMetrics sets a collector for cache hit ratio and preload outcomes.
// By default, metrics are not collected.
func WithMetrics(name string, metrics IMetrics) Option {
	return func(o *options) {
		o.name = name
		o.metrics = metrics
	}
}

// WithLogger sets the structured logger. By default, nothing is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConcurrency sets the maximum number of simultaneous preload fetches.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithHoverDelay sets how long the pointer must rest on a card before a hover preload.
func WithHoverDelay(d time.Duration) Option {
	return func(o *options) {
		o.hoverDelay = d
	}
}

// WithViewportMargin sets how far beyond the visible area cards are considered imminent.
func WithViewportMargin(margin float64) Option {
	return func(o *options) {
		o.viewportMargin = margin
	}
}

// WithPrimaryTimeout sets the hard timeout of the primary transport.
// The primary transport is always bounded: a non-positive d keeps the default.
func WithPrimaryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.primaryTimeout = d
		}
	}
}

// WithFailureLogSize sets how many recent preload failures are remembered.
func WithFailureLogSize(n int) Option {
	return func(o *options) {
		o.failureLogSize = n
	}
}

// WithPlaceholderTick sets the interval between placeholder progress updates.
func WithPlaceholderTick(d time.Duration) Option {
	return func(o *options) {
		o.placeholderTick = d
	}
}

// WithDebug makes cache contract violations panic instead of being ignored.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}
