package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayer-engine/internal/cache"
	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/notify"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
	"github.com/smokyabdulrahman/prayer-engine/internal/testutil"
)

var (
	msk    = time.FixedZone("MSK", 3*3600)
	moscow = prayer.NewCoordinates(55.7558, 37.6173)
)

// --- test doubles ---

type fakeLocator struct {
	mu     sync.Mutex
	coords prayer.Coordinates
	err    error
	calls  int
}

func (l *fakeLocator) GetCurrentLocation(context.Context) (prayer.Coordinates, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.coords, l.err
}

func (l *fakeLocator) set(c prayer.Coordinates, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.coords, l.err = c, err
}

func (l *fakeLocator) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type watchingLocator struct {
	fakeLocator
	fn      func(prayer.Coordinates)
	stopped int
}

func (l *watchingLocator) Watch(fn func(prayer.Coordinates)) { l.fn = fn }
func (l *watchingLocator) StopWatching()                     { l.stopped++ }

type recordingSink struct {
	mu  sync.Mutex
	clk clock.Clock
	got []notify.Notification
	at  []time.Time
}

func (s *recordingSink) Notify(n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	s.at = append(s.at, s.clk.Now())
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.got {
		out = append(out, n.Prayer)
	}
	return out
}

type harness struct {
	engine   *Engine
	clock    *clock.Fake
	locator  *fakeLocator
	kv       *testutil.MockKV
	metrics  *testutil.MockRecorder
	sink     *recordingSink
	settings *settings.Store
	calcs    *atomic.Int32
}

func newHarness(t *testing.T, now time.Time, perm notify.Permission, opts Options) *harness {
	t.Helper()
	return newHarnessWithLocator(t, now, perm, opts, &fakeLocator{coords: moscow})
}

func newHarnessWithLocator(t *testing.T, now time.Time, perm notify.Permission, opts Options, loc Locator) *harness {
	t.Helper()
	clk := clock.NewFake(now)
	kv := testutil.NewMockKV()
	rec := testutil.NewMockRecorder()
	sink := &recordingSink{clk: clk}
	st := settings.New(kv, zerolog.Nop(), rec)

	var calcs atomic.Int32
	opts.Location = msk
	opts.Calculator = func(c prayer.Coordinates, d time.Time, s prayer.Settings) (*prayer.Snapshot, error) {
		calcs.Add(1)
		return prayer.Calculate(c, d, s)
	}

	e := New(Deps{
		Locator:    loc,
		Settings:   st,
		Cache:      cache.New(kv, zerolog.Nop(), rec),
		Clock:      clk,
		Sink:       sink,
		Permission: perm,
		Logger:     zerolog.Nop(),
		Metrics:    rec,
	}, opts)
	t.Cleanup(e.Close)

	h := &harness{engine: e, clock: clk, kv: kv, metrics: rec, sink: sink, settings: st, calcs: &calcs}
	switch l := loc.(type) {
	case *fakeLocator:
		h.locator = l
	case *watchingLocator:
		h.locator = &l.fakeLocator
	}
	return h
}

func at(day, hour, min int) time.Time {
	return time.Date(2026, 1, day, hour, min, 0, 0, msk)
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefresh_WithLocation(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})

	snap, err := h.engine.Refresh(context.Background(), &moscow, at(15, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", snap.Date)
	assert.Zero(t, h.locator.Calls(), "explicit location must not call the locator")

	cur, degraded := h.engine.Snapshot()
	assert.Same(t, snap, cur)
	assert.False(t, degraded)

	_, ok := h.kv.Raw(cache.Key(at(15, 10, 0)))
	assert.True(t, ok, "refresh writes through to the cache")
	assert.Equal(t, 1, h.metrics.Count("refresh_ok"))
}

func TestRefresh_UsesLocatorAndSettings(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	hanafi := prayer.Hanafi
	_, err := h.settings.Update(context.Background(), settings.Partial{Madhab: &hanafi})
	require.NoError(t, err)

	snap, err := h.engine.Refresh(context.Background(), nil, at(15, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, h.locator.Calls())
	assert.Equal(t, "Hanafi", snap.Madhab)
}

func TestRefresh_LocationFailureWithCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})

	fresh, err := h.engine.Refresh(ctx, nil, at(15, 10, 0))
	require.NoError(t, err)

	h.locator.set(prayer.Coordinates{}, &geo.LocationError{Kind: geo.PermissionDenied, Reason: "denied"})
	snap, err := h.engine.Refresh(ctx, nil, at(15, 11, 0))
	require.NoError(t, err, "a cached day is a degraded success")

	assert.True(t, snap.Maghrib.Equal(fresh.Maghrib))
	_, degraded := h.engine.Snapshot()
	assert.True(t, degraded)
	assert.Equal(t, 1, h.metrics.Count("refresh_degraded"))
	assert.Equal(t, 1, h.metrics.Count("location_failure_permission_denied"))
	assert.Equal(t, 1, h.metrics.Count("cache_hit"))
}

func TestRefresh_LocationFailureWithoutCache(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	h.locator.set(prayer.Coordinates{}, &geo.LocationError{Kind: geo.Timeout, Reason: "timed out"})

	snap, err := h.engine.Refresh(context.Background(), nil, at(15, 10, 0))
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, geo.ErrLocationUnavailable)

	var le *geo.LocationError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, geo.Timeout, le.Kind)

	cur, _ := h.engine.Snapshot()
	assert.Nil(t, cur)
	assert.Equal(t, 1, h.metrics.Count("refresh_failed"))
}

func TestRefresh_CacheIOErrorIsAMiss(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	h.kv.SetFailures(true, true)

	_, err := h.engine.Refresh(context.Background(), nil, at(15, 10, 0))
	require.NoError(t, err, "cache write failures are absorbed")

	h.locator.set(prayer.Coordinates{}, errors.New("gps off"))
	_, err = h.engine.Refresh(context.Background(), nil, at(15, 10, 0))
	assert.Error(t, err)
}

func TestRefresh_InvalidCoordinates(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})

	bad := prayer.NewCoordinates(95, 0)
	_, err := h.engine.Refresh(context.Background(), &bad, at(15, 10, 0))
	assert.ErrorIs(t, err, prayer.ErrInvalidCoordinates)

	h.locator.set(prayer.Coordinates{}, prayer.ErrInvalidCoordinates)
	_, err = h.engine.Refresh(context.Background(), nil, at(15, 10, 0))
	assert.ErrorIs(t, err, prayer.ErrInvalidCoordinates)
	assert.Zero(t, h.kv.GetCalls, "invalid coordinates never fall back to the cache")
}

// ---------------------------------------------------------------------------
// Settings changes
// ---------------------------------------------------------------------------

func TestSettingsChange_RecalculatesSameDay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})

	before, err := h.engine.Refresh(ctx, nil, at(15, 13, 0))
	require.NoError(t, err)
	require.Equal(t, "Shafi", before.Madhab)

	hanafi := prayer.Hanafi
	_, err = h.settings.Update(ctx, settings.Partial{Madhab: &hanafi})
	require.NoError(t, err)

	after, degraded := h.engine.Snapshot()
	require.NotNil(t, after)
	assert.False(t, degraded)
	assert.Equal(t, "2026-01-15", after.Date)
	assert.Equal(t, "Hanafi", after.Madhab)
	assert.True(t, after.Asr.After(before.Asr), "Hanafi Asr %s not after Shafi Asr %s", after.Asr, before.Asr)
	assert.True(t, after.Dhuhr.Equal(before.Dhuhr))
	assert.Equal(t, msk, after.Asr.Location())
	assert.Equal(t, 1, h.locator.Calls(), "recalculation reuses the snapshot's location")

	entry := cache.New(h.kv, zerolog.Nop(), h.metrics).Get(ctx, at(15, 0, 0))
	require.NotNil(t, entry)
	assert.Equal(t, "Hanafi", entry.Snapshot.Madhab, "the cached day is superseded")

	c, ok := h.engine.Tick()
	require.True(t, ok)
	assert.Equal(t, prayer.Asr, c.Next.Name)
	assert.True(t, c.Next.Time.Equal(after.Asr))
}

func TestSettingsChange_ReschedulesNotifications(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{Notifications: true})
	require.NoError(t, h.engine.Start(ctx, nil))
	shafi, _ := h.engine.Snapshot()

	hanafi := prayer.Hanafi
	_, err := h.settings.Update(ctx, settings.Partial{Madhab: &hanafi})
	require.NoError(t, err)
	assert.Equal(t, 5, h.clock.Pending(), "midnight + dhuhr/asr/maghrib/isha")

	// Past the old Asr, before the new one.
	h.clock.Set(shafi.Asr.Add(time.Minute))
	assert.Equal(t, []string{"Dhuhr"}, h.sink.names())

	hanafiSnap, _ := h.engine.Snapshot()
	h.clock.Set(hanafiSnap.Asr.Add(time.Minute))
	assert.Equal(t, []string{"Dhuhr", "Asr"}, h.sink.names())
}

func TestSettingsChange_KeepsDegradedFlag(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	_, err := h.engine.Refresh(ctx, nil, at(15, 10, 0))
	require.NoError(t, err)

	h.locator.set(prayer.Coordinates{}, &geo.LocationError{Kind: geo.PermissionDenied, Reason: "denied"})
	_, err = h.engine.Refresh(ctx, nil, at(15, 11, 0))
	require.NoError(t, err)

	method := prayer.UmmAlQura
	_, err = h.settings.Update(ctx, settings.Partial{Method: &method})
	require.NoError(t, err)

	snap, degraded := h.engine.Snapshot()
	assert.True(t, degraded)
	assert.Equal(t, "UmmAlQura", snap.CalculationMethod)
}

func TestSettingsChange_NoopCases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})

	// Before the first refresh there is nothing to recalculate.
	hanafi := prayer.Hanafi
	_, err := h.settings.Update(ctx, settings.Partial{Madhab: &hanafi})
	require.NoError(t, err)
	assert.Zero(t, h.calcs.Load())

	_, err = h.engine.Refresh(ctx, nil, at(15, 10, 0))
	require.NoError(t, err)
	calcs := h.calcs.Load()

	// Writing the same value does not recalculate.
	_, err = h.settings.Update(ctx, settings.Partial{Madhab: &hanafi})
	require.NoError(t, err)
	assert.Equal(t, calcs, h.calcs.Load())

	// A closed engine no longer listens.
	h.engine.Close()
	h.settings.Reset(ctx)
	assert.Equal(t, calcs, h.calcs.Load())
}

// ---------------------------------------------------------------------------
// Current / next
// ---------------------------------------------------------------------------

func moscowSnapshot(t *testing.T) *prayer.Snapshot {
	t.Helper()
	snap, err := prayer.Calculate(moscow, at(15, 0, 0), prayer.DefaultSettings())
	require.NoError(t, err)
	return snap
}

func TestCurrentAt_Coverage(t *testing.T) {
	snap := moscowSnapshot(t)

	for now := snap.Fajr.Add(time.Minute); now.Before(snap.Isha); now = now.Add(time.Minute) {
		cur := CurrentAt(snap, now)
		require.NotNil(t, cur, "at %s", now.Format("15:04"))
		assert.False(t, cur.Time.After(now), "at %s current %s starts later", now.Format("15:04"), cur.Name)
		assert.NotEqual(t, prayer.Sunrise, cur.Name)
	}
}

func TestCurrentAt_Windows(t *testing.T) {
	snap := moscowSnapshot(t)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"at fajr", snap.Fajr, prayer.Fajr},
		{"after sunrise", snap.Sunrise.Add(time.Minute), prayer.Fajr},
		{"at dhuhr", snap.Dhuhr, prayer.Dhuhr},
		{"just before asr", snap.Asr.Add(-time.Second), prayer.Dhuhr},
		{"after maghrib", snap.Maghrib.Add(10 * time.Minute), prayer.Maghrib},
		{"late night", at(15, 23, 30), prayer.Isha},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentAt(snap, tt.now).Name)
		})
	}
}

func TestCurrentAt_BeforeFajrIsYesterdaysIsha(t *testing.T) {
	snap := moscowSnapshot(t)
	now := snap.Fajr.Add(-time.Hour)

	cur := CurrentAt(snap, now)
	require.NotNil(t, cur)
	assert.Equal(t, prayer.Isha, cur.Name)
	assert.True(t, cur.Time.Before(now))
	assert.True(t, cur.Time.Equal(snap.Isha.AddDate(0, 0, -1)))
}

func TestNextAt(t *testing.T) {
	snap := moscowSnapshot(t)
	noTomorrow := func() (time.Time, error) {
		t.Fatal("tomorrow's fajr should not be needed")
		return time.Time{}, nil
	}

	tests := []struct {
		now  time.Time
		want string
	}{
		{at(15, 3, 0), prayer.Fajr},
		{snap.Fajr, prayer.Sunrise},
		{snap.Sunrise.Add(time.Minute), prayer.Dhuhr},
		{snap.Maghrib, prayer.Isha},
	}
	for _, tt := range tests {
		next, err := NextAt(snap, tt.now, noTomorrow)
		require.NoError(t, err)
		assert.Equal(t, tt.want, next.Name, "at %s", tt.now.Format("15:04"))
		assert.False(t, next.Tomorrow)
	}
}

func TestNextAt_RemainingDecomposed(t *testing.T) {
	snap := moscowSnapshot(t)
	now := snap.Dhuhr.Add(-(2*time.Hour + 15*time.Minute + 7*time.Second))

	next, err := NextAt(snap, now, nil)
	require.NoError(t, err)
	assert.Equal(t, prayer.Remaining{Hours: 2, Minutes: 15, Seconds: 7, TotalSeconds: 8107}, next.Remaining)
}

func TestNextAt_MonotonicCountdown(t *testing.T) {
	snap := moscowSnapshot(t)
	prev := -1
	for now := snap.Dhuhr.Add(-10 * time.Minute); now.Before(snap.Dhuhr); now = now.Add(7 * time.Second) {
		next, err := NextAt(snap, now, nil)
		require.NoError(t, err)
		require.Equal(t, prayer.Dhuhr, next.Name)
		if prev >= 0 {
			assert.Less(t, next.Remaining.TotalSeconds, prev)
		}
		prev = next.Remaining.TotalSeconds
	}
}

func TestNextPrayer_AfterIshaCalculatesTomorrow(t *testing.T) {
	h := newHarness(t, at(15, 20, 0), notify.Denied, Options{})
	snap := moscowSnapshot(t)
	before := h.calcs.Load()
	getsBefore := h.kv.GetCalls

	next, err := h.engine.NextPrayer(snap)
	require.NoError(t, err)
	assert.Equal(t, prayer.Fajr, next.Name)
	assert.True(t, next.Tomorrow)
	assert.Equal(t, 16, next.Time.Day())
	assert.Equal(t, before+1, h.calcs.Load(), "after isha the calculator runs once")
	assert.Equal(t, getsBefore, h.kv.GetCalls, "the cache is not consulted")

	text, err := h.engine.TimeUntilNext(snap)
	require.NoError(t, err)
	assert.Regexp(t, `^\d+ ч \d+ мин$`, text)
}

func TestCurrentPrayerUsesClock(t *testing.T) {
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})
	assert.Equal(t, prayer.Dhuhr, h.engine.CurrentPrayer(moscowSnapshot(t)).Name)

	h.clock.Set(at(15, 15, 0))
	assert.Equal(t, prayer.Asr, h.engine.CurrentPrayer(moscowSnapshot(t)).Name)
}

// ---------------------------------------------------------------------------
// Countdown tick
// ---------------------------------------------------------------------------

func TestCountdown_PureDerivation(t *testing.T) {
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})
	_, err := h.engine.Refresh(context.Background(), nil, at(15, 13, 0))
	require.NoError(t, err)

	calcs, locates := h.calcs.Load(), h.locator.Calls()
	var ticks []Countdown
	h.engine.StartCountdown(time.Second, func(c Countdown) { ticks = append(ticks, c) })
	h.clock.Advance(10 * time.Second)

	require.Len(t, ticks, 10)
	for i, c := range ticks {
		require.NotNil(t, c.Next)
		assert.Equal(t, prayer.Asr, c.Next.Name)
		assert.Equal(t, prayer.Dhuhr, c.Current.Name)
		assert.NotEmpty(t, c.Text)
		if i > 0 {
			assert.Less(t, c.Next.Remaining.TotalSeconds, ticks[i-1].Next.Remaining.TotalSeconds)
		}
	}
	assert.Equal(t, calcs, h.calcs.Load(), "ticks never calculate")
	assert.Equal(t, locates, h.locator.Calls(), "ticks never locate")
}

func TestCountdown_AfterIshaUsesPrecomputedFajr(t *testing.T) {
	h := newHarness(t, at(15, 20, 0), notify.Denied, Options{})
	_, err := h.engine.Refresh(context.Background(), nil, at(15, 20, 0))
	require.NoError(t, err)
	calcs := h.calcs.Load()

	var last Countdown
	h.engine.StartCountdown(time.Second, func(c Countdown) { last = c })
	h.clock.Advance(3 * time.Second)

	require.NotNil(t, last.Next)
	assert.Equal(t, prayer.Fajr, last.Next.Name)
	assert.True(t, last.Next.Tomorrow)
	assert.Equal(t, 16, last.Next.Time.Day())
	assert.Equal(t, prayer.Isha, last.Current.Name)
	assert.Equal(t, calcs, h.calcs.Load())
}

func TestCountdown_BeforeRefreshIsSilent(t *testing.T) {
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})
	n := 0
	h.engine.StartCountdown(time.Second, func(Countdown) { n++ })
	h.clock.Advance(3 * time.Second)
	assert.Zero(t, n)
}

func TestCountdown_ReplaceAndCancel(t *testing.T) {
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})
	_, err := h.engine.Refresh(context.Background(), nil, at(15, 13, 0))
	require.NoError(t, err)

	var first, second int
	h.engine.StartCountdown(time.Second, func(Countdown) { first++ })
	cancel := h.engine.StartCountdown(time.Second, func(Countdown) { second++ })
	h.clock.Advance(2 * time.Second)
	assert.Zero(t, first)
	assert.Equal(t, 2, second)

	cancel()
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 2, second)
}

// ---------------------------------------------------------------------------
// Midnight rollover
// ---------------------------------------------------------------------------

func TestMidnightRollover(t *testing.T) {
	h := newHarness(t, at(15, 23, 59).Add(30*time.Second), notify.Denied, Options{})
	ctx := context.Background()
	_, err := h.engine.Refresh(ctx, nil, h.clock.Now().In(msk))
	require.NoError(t, err)

	h.engine.StartMidnightRollover(ctx)
	h.clock.Advance(31 * time.Second)

	snap, _ := h.engine.Snapshot()
	assert.Equal(t, "2026-01-16", snap.Date)
	assert.Equal(t, 1, h.clock.Pending(), "rollover re-arms itself")

	h.clock.Advance(24 * time.Hour)
	snap, _ = h.engine.Snapshot()
	assert.Equal(t, "2026-01-17", snap.Date)
	assert.Equal(t, 3, h.metrics.Count("refresh_ok"))

	h.engine.Close()
	assert.Zero(t, h.clock.Pending())
}

func TestMidnightRollover_FailureKeepsPreviousDay(t *testing.T) {
	h := newHarness(t, at(15, 23, 0), notify.Denied, Options{})
	ctx := context.Background()
	_, err := h.engine.Refresh(ctx, nil, at(15, 23, 0))
	require.NoError(t, err)

	h.locator.set(prayer.Coordinates{}, &geo.LocationError{Kind: geo.Unavailable, Reason: "offline"})
	h.engine.StartMidnightRollover(ctx)
	h.clock.Advance(time.Hour + time.Minute)

	snap, _ := h.engine.Snapshot()
	assert.Equal(t, "2026-01-15", snap.Date, "no cache for the new day, previous state stays")
	assert.Equal(t, 1, h.clock.Pending(), "still re-armed after a failure")
}

func TestMidnightRollover_StopsWithContext(t *testing.T) {
	h := newHarness(t, at(15, 23, 0), notify.Denied, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	h.engine.StartMidnightRollover(ctx)
	cancel()

	h.clock.Advance(2 * time.Hour)
	assert.Zero(t, h.locator.Calls())
	assert.Zero(t, h.clock.Pending())
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func TestScheduleNotifications_DeniedIsNoop(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	assert.Zero(t, h.engine.ScheduleNotifications(moscowSnapshot(t)))
	assert.Zero(t, h.clock.Pending())
}

func TestScheduleNotifications_FutureOnly(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{})
	snap := moscowSnapshot(t)

	assert.Equal(t, 4, h.engine.ScheduleNotifications(snap), "fajr has passed; no catch-up")
	h.clock.Advance(14 * time.Hour)

	assert.Equal(t, []string{prayer.Dhuhr, prayer.Asr, prayer.Maghrib, prayer.Isha}, h.sink.names())
	wants := []time.Time{snap.Dhuhr, snap.Asr, snap.Maghrib, snap.Isha}
	for i, want := range wants {
		assert.True(t, h.sink.at[i].Equal(want), "%s fired at %s", h.sink.got[i].Prayer, h.sink.at[i])
	}
	assert.Equal(t, 4, h.metrics.Count("notifications_scheduled"))
	assert.Equal(t, 1, h.metrics.Count("notification_fired_Asr"))
}

func TestScheduleNotifications_ReplacesPreviousBatch(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{})
	snap := moscowSnapshot(t)

	h.engine.ScheduleNotifications(snap)
	h.engine.ScheduleNotifications(snap)
	h.clock.Advance(14 * time.Hour)

	assert.Len(t, h.sink.names(), 4)
}

func TestScheduleNotifications_SinkErrorIsLoggedOnly(t *testing.T) {
	h := newHarness(t, at(15, 18, 0), notify.Granted, Options{})
	h.engine.deps.Sink = notify.SinkFunc(func(notify.Notification) error { return errors.New("offline") })

	assert.Equal(t, 1, h.engine.ScheduleNotifications(moscowSnapshot(t)))
	assert.NotPanics(t, func() { h.clock.Advance(2 * time.Hour) })
	assert.Zero(t, h.metrics.Count("notification_fired_Isha"))
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStartAndClose(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{Notifications: true})

	var ticks int
	require.NoError(t, h.engine.Start(context.Background(), func(Countdown) { ticks++ }))

	// countdown + midnight + dhuhr/asr/maghrib/isha
	assert.Equal(t, 6, h.clock.Pending())
	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)

	h.engine.Close()
	h.engine.Close()
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(48 * time.Hour)
	assert.Equal(t, 3, ticks)
	assert.Empty(t, h.sink.names())
}

func TestStart_PropagatesLocationFailure(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{Notifications: true})
	h.locator.set(prayer.Coordinates{}, &geo.LocationError{Kind: geo.PermissionDenied, Reason: "denied"})

	err := h.engine.Start(context.Background(), nil)
	assert.ErrorIs(t, err, geo.ErrLocationUnavailable)
	assert.Zero(t, h.clock.Pending())
}

func TestStartWithRetry_RecoversWhenLocationReturns(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Granted, Options{Notifications: true})
	denied := &geo.LocationError{Kind: geo.PermissionDenied, Reason: "denied"}
	h.locator.set(prayer.Coordinates{}, denied)

	err := h.engine.StartWithRetry(context.Background(), nil, time.Minute)
	assert.ErrorIs(t, err, geo.ErrLocationUnavailable)
	assert.Equal(t, 1, h.clock.Pending(), "only the retry is armed")

	h.clock.Advance(time.Minute)
	assert.Equal(t, 2, h.locator.Calls())
	assert.Equal(t, 1, h.clock.Pending(), "a failed retry arms the next one")

	h.locator.set(moscow, nil)
	h.clock.Advance(time.Minute)
	snap, _ := h.engine.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "2026-01-15", snap.Date)
	assert.Equal(t, 5, h.clock.Pending(), "midnight + dhuhr/asr/maghrib/isha, no more retries")

	h.clock.Set(at(16, 0, 1))
	assert.Equal(t, []string{"Dhuhr", "Asr", "Maghrib", "Isha"}, h.sink.names())
	snap, _ = h.engine.Snapshot()
	assert.Equal(t, "2026-01-16", snap.Date, "the rollover is armed after a late start")
}

func TestStartWithRetry_StopsOnClose(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	h.locator.set(prayer.Coordinates{}, errors.New("gps off"))

	require.Error(t, h.engine.StartWithRetry(context.Background(), nil, time.Minute))
	require.Equal(t, 1, h.clock.Pending())

	h.engine.Close()
	assert.Zero(t, h.clock.Pending())
	h.clock.Advance(time.Hour)
	assert.Equal(t, 1, h.locator.Calls())
}

func TestStartWithRetry_StopsWithContext(t *testing.T) {
	h := newHarness(t, at(15, 10, 0), notify.Denied, Options{})
	h.locator.set(prayer.Coordinates{}, errors.New("gps off"))
	ctx, cancel := context.WithCancel(context.Background())

	require.Error(t, h.engine.StartWithRetry(ctx, nil, time.Minute))
	cancel()
	h.clock.Advance(time.Hour)
	assert.Equal(t, 1, h.locator.Calls())
}

func TestMidnightRollover_ReschedulesNotifications(t *testing.T) {
	h := newHarness(t, at(15, 23, 0), notify.Granted, Options{Notifications: true})
	require.NoError(t, h.engine.Start(context.Background(), nil))
	assert.Equal(t, 1, h.clock.Pending(), "every prayer of the 15th has passed")

	h.clock.Advance(time.Hour)
	assert.Equal(t, 6, h.clock.Pending(), "midnight + five prayers of the 16th")
}

func TestWatchLocation(t *testing.T) {
	loc := &watchingLocator{fakeLocator: fakeLocator{coords: moscow}}
	h := newHarnessWithLocator(t, at(15, 10, 0), notify.Denied, Options{WatchLocation: true}, loc)
	require.NoError(t, h.engine.Start(context.Background(), nil))
	require.NotNil(t, loc.fn)

	kazan := prayer.NewCoordinates(55.7963, 49.1088)
	loc.fn(kazan)
	snap, _ := h.engine.Snapshot()
	assert.Equal(t, kazan.Longitude, snap.Location.Longitude)

	h.engine.Close()
	assert.Equal(t, 1, loc.stopped)
}

func TestConcurrentRefreshAndTick(t *testing.T) {
	h := newHarness(t, at(15, 13, 0), notify.Denied, Options{})
	ctx := context.Background()
	_, err := h.engine.Refresh(ctx, nil, at(15, 13, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = h.engine.Refresh(ctx, nil, at(15, 13, 0))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c, ok := h.engine.Tick()
				if assert.True(t, ok) {
					assert.Equal(t, "2026-01-15", c.Snapshot.Date)
				}
			}
		}()
	}
	wg.Wait()
}
