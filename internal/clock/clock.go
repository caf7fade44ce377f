// Package clock abstracts wall time and timers so schedulers can be driven
// by a fake clock in tests.
package clock

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled timer. Calling it more than once is safe.
type CancelFunc func()

// Clock provides the current time and one-shot or periodic callbacks.
type Clock interface {
	Now() time.Time
	// After runs fn once, d from now, on its own goroutine.
	After(d time.Duration, fn func()) CancelFunc
	// Every runs fn every d until cancelled.
	Every(d time.Duration, fn func()) CancelFunc
}

// Real is the system clock.
type Real struct{}

// New returns the system clock.
func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (Real) Every(d time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// UntilNextMidnight returns the duration from now to the next local midnight
// in now's location. DST transitions are honoured.
func UntilNextMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}
