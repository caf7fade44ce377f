package engine

import (
	"context"
	"time"

	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/notify"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// Countdown is what a countdown tick delivers.
type Countdown struct {
	Snapshot *prayer.Snapshot `json:"snapshot"`
	Current  *PrayerInfo      `json:"current"`
	// Next is nil after Isha when tomorrow's Fajr is unknown.
	Next     *NextPrayerInfo `json:"next,omitempty"`
	Text     string          `json:"text"`
	Degraded bool            `json:"degraded"`
	Now      time.Time       `json:"now"`
}

// StartCountdown calls fn every interval with the current and next prayer,
// derived from the current snapshot only. It never locates or calculates.
// A second call replaces the first countdown.
func (e *Engine) StartCountdown(interval time.Duration, fn func(Countdown)) clock.CancelFunc {
	if interval <= 0 {
		interval = e.opts.TickInterval
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return func() {}
	}
	if e.countdown != nil {
		e.countdown()
	}
	cancel := e.deps.Clock.Every(interval, func() {
		if c, ok := e.Tick(); ok {
			fn(c)
		}
	})
	e.countdown = cancel
	return cancel
}

// Tick derives one Countdown from the current state. ok is false before the
// first refresh.
func (e *Engine) Tick() (c Countdown, ok bool) {
	st := e.state.Load()
	if st == nil {
		return Countdown{}, false
	}
	now := e.now()

	c = Countdown{
		Snapshot: st.snap,
		Current:  CurrentAt(st.snap, now),
		Degraded: st.degraded,
		Now:      now,
	}
	next, err := NextAt(st.snap, now, func() (time.Time, error) {
		if st.tomorrowFajr.IsZero() {
			return time.Time{}, prayer.ErrNoSunriseSunset
		}
		return st.tomorrowFajr, nil
	})
	if err == nil {
		c.Next = &next
		c.Text = prayer.FormatCountdown(next.Remaining)
	}
	return c, true
}

// StartMidnightRollover refreshes at every local midnight for as long as ctx
// lives or until Close. A failed refresh keeps the previous day and is logged.
func (e *Engine) StartMidnightRollover(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armMidnight(ctx)
}

// armMidnight schedules the next rollover. Callers hold e.mu.
func (e *Engine) armMidnight(ctx context.Context) {
	if e.closed || ctx.Err() != nil {
		return
	}
	if e.midnight != nil {
		e.midnight()
	}
	wait := clock.UntilNextMidnight(e.now())
	e.midnight = e.deps.Clock.After(wait, func() { e.rollover(ctx) })
}

func (e *Engine) rollover(ctx context.Context) {
	if ctx.Err() != nil || e.isClosed() {
		return
	}

	now := e.now()
	e.deps.Logger.Info().Str("date", now.Format(prayer.DateLayout)).Msg("midnight rollover")
	snap, err := e.Refresh(ctx, nil, now)
	if err != nil {
		e.deps.Logger.Error().Err(err).Msg("midnight refresh failed; keeping previous prayer times")
	} else if e.opts.Notifications {
		e.ScheduleNotifications(snap)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.armMidnight(ctx)
}

// ScheduleNotifications replaces the pending notifications with one timer per
// prayer of snap still in the future, and returns how many were scheduled.
// Without notification permission it does nothing.
func (e *Engine) ScheduleNotifications(snap *prayer.Snapshot) int {
	if !e.deps.Permission.Granted() {
		e.deps.Logger.Debug().Msg("notification permission not granted; not scheduling")
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0
	}
	e.cancelNotifications()

	now := e.now()
	for _, p := range snap.Obligatory() {
		if !p.Time.After(now) {
			continue
		}
		n := notify.ForPrayer(p.Name, p.Time)
		cancel := e.deps.Clock.After(p.Time.Sub(now), func() { e.deliver(n) })
		e.notifications = append(e.notifications, cancel)
	}

	e.deps.Metrics.IncNotificationsScheduled(len(e.notifications))
	e.deps.Logger.Debug().Int("count", len(e.notifications)).Str("date", snap.Date).Msg("notifications scheduled")
	return len(e.notifications)
}

func (e *Engine) deliver(n notify.Notification) {
	if err := e.deps.Sink.Notify(n); err != nil {
		e.deps.Logger.Warn().Err(err).Str("prayer", n.Prayer).Msg("notification delivery failed")
		return
	}
	e.deps.Metrics.IncNotificationsFired(n.Prayer)
}

// cancelNotifications stops pending notification timers. Callers hold e.mu.
func (e *Engine) cancelNotifications() {
	for _, cancel := range e.notifications {
		cancel()
	}
	e.notifications = nil
}

// Start refreshes for today, schedules notifications when enabled, arms the
// midnight rollover, watches the location when enabled and, if onTick is not
// nil, starts the countdown.
func (e *Engine) Start(ctx context.Context, onTick func(Countdown)) error {
	snap, err := e.Refresh(ctx, nil, e.now())
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	if e.opts.Notifications {
		e.ScheduleNotifications(snap)
	}
	e.StartMidnightRollover(ctx)
	if e.opts.WatchLocation {
		e.watchLocation(ctx)
	}
	if onTick != nil {
		e.StartCountdown(e.opts.TickInterval, onTick)
	}
	return nil
}

// StartWithRetry is Start for long-running processes. When Start fails it is
// attempted again every interval until it succeeds, ctx ends or the engine is
// closed. The first attempt's error is returned.
func (e *Engine) StartWithRetry(ctx context.Context, onTick func(Countdown), interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	err := e.Start(ctx, onTick)
	if err != nil {
		e.armRetry(ctx, onTick, interval)
	}
	return err
}

func (e *Engine) armRetry(ctx context.Context, onTick func(Countdown), interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || ctx.Err() != nil {
		return
	}
	e.retry = e.deps.Clock.After(interval, func() {
		if ctx.Err() != nil || e.isClosed() {
			return
		}
		if err := e.Start(ctx, onTick); err != nil {
			e.deps.Logger.Warn().Err(err).Dur("retry_in", interval).Msg("engine start failed")
			e.armRetry(ctx, onTick, interval)
			return
		}
		e.deps.Logger.Info().Msg("engine started after retry")
	})
}

func (e *Engine) watchLocation(ctx context.Context) {
	w, ok := e.deps.Locator.(Watcher)
	if !ok {
		return
	}
	e.mu.Lock()
	e.watching = true
	e.mu.Unlock()

	w.Watch(func(c prayer.Coordinates) {
		if ctx.Err() != nil || e.isClosed() {
			return
		}
		snap, err := e.Refresh(ctx, &c, e.now())
		if err != nil {
			e.deps.Logger.Warn().Err(err).Msg("refresh after location change failed")
			return
		}
		if e.opts.Notifications {
			e.ScheduleNotifications(snap)
		}
	})
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close cancels the countdown, the midnight rollover, pending notifications
// and location watching. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.countdown != nil {
		e.countdown()
		e.countdown = nil
	}
	if e.midnight != nil {
		e.midnight()
		e.midnight = nil
	}
	if e.retry != nil {
		e.retry()
		e.retry = nil
	}
	e.cancelNotifications()
	watching := e.watching
	e.watching = false
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if w, ok := e.deps.Locator.(Watcher); ok && watching {
		w.StopWatching()
	}
}
