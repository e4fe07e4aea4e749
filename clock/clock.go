// Package clock lets lock expiry, the reclaimer and the client refresher run
// against either wall time or a fake clock driven by tests.
package clock

import "time"

// Clock is the source of time for lock expiry and background loops.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	After(d time.Duration) <-chan time.Time

	// NewTicker panics unless d is positive.
	NewTicker(d time.Duration) Ticker

	// NewTimer fires once, no earlier than d from now. The reclaimer arms a
	// new one for each wakeup.
	NewTimer(d time.Duration) Timer

	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks, e.g. for the client refresher.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// Timer fires once. Stop and Reset report whether the timer was still
// pending, as time.Timer does.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RoundUp returns the earliest multiple of granularity (counted from the zero
// time) that is not before t. A non-positive granularity returns t unchanged.
// Used to coalesce deadlines that fall close together into a single wakeup
// without ever firing before the requested instant.
func RoundUp(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		return t
	}
	floor := t.Truncate(granularity)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(granularity)
}

type standardClock struct{}

// NewStandardClock returns a Clock backed by the time package.
func NewStandardClock() Clock {
	return &standardClock{}
}

func (sc *standardClock) Now() time.Time {
	return time.Now()
}

func (sc *standardClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (sc *standardClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (sc *standardClock) NewTicker(d time.Duration) Ticker {
	return &standardTicker{ticker: time.NewTicker(d)}
}

func (sc *standardClock) NewTimer(d time.Duration) Timer {
	return &standardTimer{timer: time.NewTimer(d)}
}

func (sc *standardClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

type standardTicker struct {
	ticker *time.Ticker
}

func (st *standardTicker) Chan() <-chan time.Time { return st.ticker.C }
func (st *standardTicker) Stop()                  { st.ticker.Stop() }
func (st *standardTicker) Reset(d time.Duration)  { st.ticker.Reset(d) }

type standardTimer struct {
	timer *time.Timer
}

func (st *standardTimer) Chan() <-chan time.Time     { return st.timer.C }
func (st *standardTimer) Stop() bool                 { return st.timer.Stop() }
func (st *standardTimer) Reset(d time.Duration) bool { return st.timer.Reset(d) }
