package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timers fire synchronously inside Advance
// and Set, in due order, on the caller's goroutine.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	id     int
	due    time.Time
	period time.Duration
	fn     func()
}

// NewFake returns a fake clock reading now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) CancelFunc {
	return f.add(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) CancelFunc {
	return f.add(d, d, fn)
}

func (f *Fake) add(d, period time.Duration, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := f.seq
	f.timers = append(f.timers, &fakeTimer{id: id, due: f.now.Add(d), period: period, fn: fn})
	return func() { f.remove(id) }
}

func (f *Fake) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.timers {
		if t.id == id {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

// Pending reports how many timers are scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// Set moves the clock to t, firing every timer due at or before t. Timers
// scheduled by a firing callback fire too if they fall due before t.
func (f *Fake) Set(t time.Time) {
	for {
		f.mu.Lock()
		next := f.popDue(t)
		if next == nil {
			if t.After(f.now) {
				f.now = t
			}
			f.mu.Unlock()
			return
		}
		if next.due.After(f.now) {
			f.now = next.due
		}
		f.mu.Unlock()

		next.fn()
	}
}

// popDue removes and returns the earliest timer due at or before t, re-arming
// periodic timers. Callers hold f.mu.
func (f *Fake) popDue(t time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool { return f.timers[i].due.Before(f.timers[j].due) })
	first := f.timers[0]
	if first.due.After(t) {
		return nil
	}
	fired := *first
	if first.period > 0 {
		first.due = first.due.Add(first.period)
	} else {
		f.timers = f.timers[1:]
	}
	return &fired
}
