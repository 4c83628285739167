package hips

import (
	"log/slog"
	"time"
)

// Engine defaults.
const (
	// DefaultCacheCapacity is the capacity of the tile cache in bytes.
	DefaultCacheCapacity = 256 << 20

	// DefaultGracePeriod is the time an eviction candidate is kept before
	// it can be freed.
	DefaultGracePeriod = 2 * time.Second

	// DefaultWorkers is the number of decoding goroutines.
	DefaultWorkers = 2

	// DefaultTileCostOverhead is the cost of a tile record before its
	// payload is decoded.
	DefaultTileCostOverhead = 256
)

// Option configures an Engine.
//
// Example:
//
//	eng := hips.NewEngine(asset.NewClient(),
//	    hips.WithCacheCapacity(64<<20),
//	    hips.WithWorkers(4))
type Option func(*options)

// options holds the configuration of an Engine.
type options struct {
	capacity     int64
	grace        time.Duration
	workers      int
	logger       *slog.Logger
	progress     Progress
	now          func() time.Time
	tileOverhead int64
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		capacity:     DefaultCacheCapacity,
		grace:        DefaultGracePeriod,
		workers:      DefaultWorkers,
		now:          time.Now,
		tileOverhead: DefaultTileCostOverhead,
	}
}

// WithCacheCapacity sets the capacity of the tile cache in bytes.
func WithCacheCapacity(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithGracePeriod sets the minimum time between the moment a tile is first
// selected for eviction and the moment it is freed.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// WithWorkers sets the number of decoding goroutines. Zero decodes tiles
// on the calling goroutine, during the first poll of their loader.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger of the engine instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgress sets the progress facility that Render reports to.
func WithProgress(p Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithClock replaces time.Now for grace period accounting.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTileCostOverhead sets the cost charged for a tile record on top of
// its decoded payload.
func WithTileCostOverhead(n int64) Option {
	return func(o *options) {
		if n >= 0 {
			o.tileOverhead = n
		}
	}
}
