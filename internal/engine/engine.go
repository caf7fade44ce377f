// Package engine tracks prayer times over a day: it refreshes snapshots from
// the location source with a cache fallback, derives the current and next
// prayer, ticks a countdown, recomputes at local midnight and schedules
// notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/cache"
	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/notify"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// DefaultTickInterval is the countdown refresh period.
const DefaultTickInterval = time.Second

// DefaultRetryInterval is how long StartWithRetry waits between attempts.
const DefaultRetryInterval = time.Minute

// Locator provides the current device location.
type Locator interface {
	GetCurrentLocation(ctx context.Context) (prayer.Coordinates, error)
}

// Watcher is implemented by locators that can push location changes.
type Watcher interface {
	Watch(fn func(prayer.Coordinates))
	StopWatching()
}

// SettingsSource returns the active calculation settings.
type SettingsSource interface {
	Get() prayer.Settings
}

// SettingsNotifier is implemented by settings sources that report changes.
// The engine subscribes on New and unsubscribes on Close.
type SettingsNotifier interface {
	OnChange(fn func(prayer.Settings)) (unsubscribe func())
}

// SnapshotCache is the offline fallback for computed snapshots.
type SnapshotCache interface {
	Save(ctx context.Context, date time.Time, loc prayer.Coordinates, snap *prayer.Snapshot, method string) bool
	Get(ctx context.Context, date time.Time) *cache.Entry
}

// Calculator computes one day's prayer times.
type Calculator func(coords prayer.Coordinates, date time.Time, s prayer.Settings) (*prayer.Snapshot, error)

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Locator    Locator
	Settings   SettingsSource
	Cache      SnapshotCache
	Clock      clock.Clock
	Sink       notify.Sink
	Permission notify.Permission
	Logger     zerolog.Logger
	Metrics    metrics.Recorder
}

// Options tune an Engine.
type Options struct {
	// TickInterval is the countdown period (DefaultTickInterval when zero).
	TickInterval time.Duration
	// Notifications enables prayer notifications on Start and at midnight.
	Notifications bool
	// WatchLocation re-runs Refresh when a watching Locator reports a move.
	WatchLocation bool
	// Location is the zone "today" and local midnight are taken in
	// (time.Local when nil).
	Location *time.Location
	// Calculator replaces prayer.Calculate.
	Calculator Calculator
}

// state is swapped whole so readers see either the old or the new day.
type state struct {
	snap         *prayer.Snapshot
	tomorrowFajr time.Time // zero when it could not be computed
	degraded     bool
	settings     prayer.Settings
}

// Engine is safe for concurrent use. Timers fire on their own goroutines.
type Engine struct {
	deps Deps
	opts Options
	calc Calculator

	state atomic.Pointer[state]

	mu            sync.Mutex
	closed        bool
	started       bool
	unsubscribe   func()
	countdown     clock.CancelFunc
	midnight      clock.CancelFunc
	retry         clock.CancelFunc
	notifications []clock.CancelFunc
	watching      bool
}

// New builds an Engine.
func New(deps Deps, opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Permission == nil {
		deps.Permission = notify.Denied
	}
	calc := opts.Calculator
	if calc == nil {
		calc = prayer.Calculate
	}
	e := &Engine{deps: deps, opts: opts, calc: calc}
	if n, ok := deps.Settings.(SettingsNotifier); ok {
		e.unsubscribe = n.OnChange(func(prayer.Settings) {
			if _, err := e.ApplySettings(context.Background()); err != nil {
				e.deps.Logger.Error().Err(err).Msg("recalculation after settings change failed")
			}
		})
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.deps.Clock.Now().In(e.opts.Location)
}

// Snapshot returns the current snapshot (nil before the first refresh) and
// whether it came from the cache because the location was unavailable.
func (e *Engine) Snapshot() (*prayer.Snapshot, bool) {
	st := e.state.Load()
	if st == nil {
		return nil, false
	}
	return st.snap, st.degraded
}

// Refresh computes the snapshot for date at loc, or at the current location
// when loc is nil, writes it through to the cache and makes it current.
//
// When the location cannot be obtained, a cached snapshot for date is used
// instead and no error is returned. Without one, the location error is
// returned. Invalid coordinates always fail.
func (e *Engine) Refresh(ctx context.Context, loc *prayer.Coordinates, date time.Time) (*prayer.Snapshot, error) {
	var coords prayer.Coordinates
	if loc != nil {
		coords = *loc
	} else {
		c, err := e.deps.Locator.GetCurrentLocation(ctx)
		if err != nil {
			if errors.Is(err, prayer.ErrInvalidCoordinates) {
				e.deps.Metrics.IncRefresh(metrics.RefreshFailed)
				return nil, err
			}
			return e.fallback(ctx, date, err)
		}
		coords = c
	}

	settings := e.deps.Settings.Get()
	start := time.Now()
	snap, err := e.calc(coords, date, settings)
	e.deps.Metrics.ObserveCalculationDuration(time.Since(start))
	if err != nil {
		e.deps.Metrics.IncRefresh(metrics.RefreshFailed)
		return nil, err
	}

	e.deps.Cache.Save(ctx, date, coords, snap, string(settings.Method))

	e.state.Store(&state{
		snap:         snap,
		tomorrowFajr: e.tomorrowFajr(snap, settings),
		settings:     settings,
	})
	e.deps.Metrics.IncRefresh(metrics.RefreshOK)
	e.deps.Logger.Debug().Str("date", snap.Date).Str("location", coords.String()).Msg("prayer times refreshed")
	return snap, nil
}

func (e *Engine) fallback(ctx context.Context, date time.Time, locErr error) (*prayer.Snapshot, error) {
	kind := string(geo.Unavailable)
	var le *geo.LocationError
	if errors.As(locErr, &le) {
		kind = string(le.Kind)
	}
	e.deps.Metrics.IncLocationFailure(kind)

	entry := e.deps.Cache.Get(ctx, date)
	if entry == nil {
		e.deps.Metrics.IncRefresh(metrics.RefreshFailed)
		return nil, fmt.Errorf("refresh %s: %w", date.Format(prayer.DateLayout), locErr)
	}

	snap := entry.Snapshot.In(date.Location())
	settings := e.deps.Settings.Get()
	e.state.Store(&state{
		snap:         snap,
		tomorrowFajr: e.tomorrowFajr(snap, settings),
		degraded:     true,
		settings:     settings,
	})
	e.deps.Metrics.IncRefresh(metrics.RefreshDegraded)
	e.deps.Logger.Warn().Err(locErr).Str("date", entry.Date).Time("saved_at", entry.SavedAt).
		Msg("location unavailable, using cached prayer times")
	return snap, nil
}

// ApplySettings recalculates the current snapshot when the active settings
// differ from the ones it was computed with. The new snapshot keeps the date,
// location and degraded flag of the old one and replaces it in the cache.
// Pending notifications are rescheduled once the engine has started.
//
// It returns the current snapshot, which is nil before the first refresh.
func (e *Engine) ApplySettings(ctx context.Context) (*prayer.Snapshot, error) {
	st := e.state.Load()
	if st == nil {
		return nil, nil
	}
	settings := e.deps.Settings.Get()
	if st.settings == settings {
		return st.snap, nil
	}

	day, err := snapshotDay(st.snap)
	if err != nil {
		return st.snap, fmt.Errorf("invalid snapshot date %q: %w", st.snap.Date, err)
	}
	start := time.Now()
	snap, err := e.calc(st.snap.Location, day, settings)
	e.deps.Metrics.ObserveCalculationDuration(time.Since(start))
	if err != nil {
		e.deps.Metrics.IncRefresh(metrics.RefreshFailed)
		return st.snap, err
	}
	snap = snap.In(st.snap.Fajr.Location())

	next := &state{
		snap:         snap,
		tomorrowFajr: e.tomorrowFajr(snap, settings),
		degraded:     st.degraded,
		settings:     settings,
	}
	// A refresh that won the race already used the newer settings.
	if !e.state.CompareAndSwap(st, next) {
		cur, _ := e.Snapshot()
		return cur, nil
	}
	e.deps.Cache.Save(ctx, day, snap.Location, snap, string(settings.Method))
	e.deps.Metrics.IncRefresh(metrics.RefreshOK)
	e.deps.Logger.Info().Str("date", snap.Date).Str("method", string(settings.Method)).
		Str("madhab", string(settings.Madhab)).Msg("prayer times recalculated for new settings")

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started && e.opts.Notifications {
		e.ScheduleNotifications(snap)
	}
	return snap, nil
}

// tomorrowFajr computes the next day's Fajr for the countdown after Isha.
func (e *Engine) tomorrowFajr(snap *prayer.Snapshot, s prayer.Settings) time.Time {
	next, err := e.calculateTomorrow(snap, s)
	if err != nil {
		e.deps.Logger.Warn().Err(err).Str("date", snap.Date).Msg("cannot compute tomorrow's fajr")
		return time.Time{}
	}
	return next.Fajr
}

func (e *Engine) calculateTomorrow(snap *prayer.Snapshot, s prayer.Settings) (*prayer.Snapshot, error) {
	day, err := snapshotDay(snap)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", snap.Date, err)
	}
	return e.calc(snap.Location, nextDay(day), s)
}

// CurrentPrayer is CurrentAt for the clock's now.
func (e *Engine) CurrentPrayer(snap *prayer.Snapshot) *PrayerInfo {
	return CurrentAt(snap, e.now())
}

// NextPrayer is NextAt for the clock's now. After Isha it calculates the
// next day directly; the cache is not consulted.
func (e *Engine) NextPrayer(snap *prayer.Snapshot) (NextPrayerInfo, error) {
	return NextAt(snap, e.now(), func() (time.Time, error) {
		next, err := e.calculateTomorrow(snap, e.deps.Settings.Get())
		if err != nil {
			return time.Time{}, err
		}
		return next.Fajr, nil
	})
}

// TimeUntilNext formats the time left until the next prayer, e.g. "2 ч 15 мин".
func (e *Engine) TimeUntilNext(snap *prayer.Snapshot) (string, error) {
	next, err := e.NextPrayer(snap)
	if err != nil {
		return "", err
	}
	return prayer.FormatCountdown(next.Remaining), nil
}
