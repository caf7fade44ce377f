package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

const (
	// DefaultTimeout bounds a one-shot fix.
	DefaultTimeout = 10 * time.Second
	// DefaultWatchInterval is how often Watch polls the source.
	DefaultWatchInterval = 30 * time.Second
	// WatchMaxAge is the oldest fix Watch will deliver.
	WatchMaxAge = 60 * time.Second
)

// Adapter turns a Source into one-shot and watch-style location access.
type Adapter struct {
	src           Source
	clock         clock.Clock
	log           zerolog.Logger
	timeout       time.Duration
	watchInterval time.Duration

	mu        sync.Mutex
	stopWatch clock.CancelFunc
	watchGen  int
	last      *prayer.Coordinates
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout overrides the one-shot timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithWatchInterval overrides the watch polling interval.
func WithWatchInterval(d time.Duration) Option {
	return func(a *Adapter) { a.watchInterval = d }
}

// NewAdapter wraps src.
func NewAdapter(src Source, clk clock.Clock, log zerolog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		src:           src,
		clock:         clk,
		log:           log,
		timeout:       DefaultTimeout,
		watchInterval: DefaultWatchInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetCurrentLocation returns a fresh fix. It fails with a *LocationError when
// permission is denied, the source has no capability, the timeout elapses, or
// the source only has a reading older than the request.
func (a *Adapter) GetCurrentLocation(ctx context.Context) (prayer.Coordinates, error) {
	fix, err := a.Locate(ctx)
	if err != nil {
		return prayer.Coordinates{}, err
	}
	return fix.Coordinates, nil
}

// Locate is GetCurrentLocation returning the full Fix.
func (a *Adapter) Locate(ctx context.Context) (Fix, error) {
	start := a.clock.Now()
	fix, err := a.fix(ctx)
	if err != nil {
		return Fix{}, err
	}
	if !fix.Timestamp.IsZero() && fix.Timestamp.Before(start) {
		return Fix{}, newError(Unavailable, "only a cached fix is available", nil)
	}
	return fix, nil
}

// fix calls the source with the timeout applied, even if the source ignores ctx.
func (a *Adapter) fix(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		fix Fix
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := a.src.Fix(ctx)
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Fix{}, classify(r.err)
		}
		if err := r.fix.Coordinates.Validate(); err != nil {
			return Fix{}, err
		}
		return r.fix, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fix{}, newError(Timeout, "timed out after "+a.timeout.String(), ctx.Err())
		}
		return Fix{}, newError(Unavailable, "request cancelled", ctx.Err())
	}
}

func classify(err error) error {
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(Timeout, "location source timed out", err)
	}
	return newError(Unavailable, "location source failed", err)
}

// Watch polls the source every watch interval and calls fn with each new
// position. Readings older than WatchMaxAge are skipped; errors are logged and
// never passed to fn. A second Watch replaces the first.
func (a *Adapter) Watch(fn func(prayer.Coordinates)) {
	a.mu.Lock()
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.watchGen++
	gen := a.watchGen
	a.last = nil
	a.stopWatch = a.clock.Every(a.watchInterval, func() { a.poll(gen, fn) })
	a.mu.Unlock()
}

func (a *Adapter) poll(gen int, fn func(prayer.Coordinates)) {
	fix, err := a.fix(context.Background())
	if err != nil {
		a.log.Warn().Err(err).Msg("location watch update failed")
		return
	}
	if !fix.Timestamp.IsZero() && a.clock.Now().Sub(fix.Timestamp) > WatchMaxAge {
		a.log.Debug().Time("fix_time", fix.Timestamp).Msg("skipping stale location fix")
		return
	}

	a.mu.Lock()
	if gen != a.watchGen {
		a.mu.Unlock()
		return
	}
	if a.last != nil && a.last.Latitude == fix.Coordinates.Latitude && a.last.Longitude == fix.Coordinates.Longitude {
		a.mu.Unlock()
		return
	}
	c := fix.Coordinates
	a.last = &c
	a.mu.Unlock()

	fn(c)
}

// StopWatching stops the current watch. It is safe to call at any time.
func (a *Adapter) StopWatching() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}
	a.watchGen++
}
