package lock

import (
	"context"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/types"
)

// run is the reclamation loop.
//
// States:
//   - Idle: wakeAt is zero, the loop waits only for a wake or stop signal.
//   - Waiting: a timer is armed for wakeAt. A wake signal re-reads wakeAt and re-arms.
//   - Sweeping: the timer fired; expired locks are removed and notified, then
//     wakeAt is recomputed.
func (lm *lockManager) run() {
	defer close(lm.doneCh)

	for {
		lm.mu.Lock()
		wakeAt := lm.wakeAt
		lm.mu.Unlock()

		var timer clock.Timer
		var fire <-chan time.Time
		if !wakeAt.IsZero() {
			timer = lm.clock.NewTimer(wakeAt.Sub(lm.clock.Now()))
			fire = timer.Chan()
		}

		select {
		case <-lm.stopCh:
			stopTimer(timer)
			return
		case <-lm.wakeCh:
			stopTimer(timer)
		case <-fire:
			lm.sweep()
		}
	}
}

// sweep removes every lock whose expiry has passed and delivers one
// ReleaseExpired notification per removed lock.
func (lm *lockManager) sweep() {
	start := lm.clock.Now()

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return
	}
	expired := lm.purgeExpiredLocked(start)
	active := lm.activeLocked()
	lm.mu.Unlock()

	lm.release(context.Background(), expired, types.ReleaseExpired)
	lm.metrics.SetActiveLocks(active)
	lm.metrics.ObserveSweepDuration(lm.clock.Since(start), len(expired))
	if len(expired) > 0 {
		lm.logger.Debugw("reclaimed expired locks", "count", len(expired), "active", active)
	}
}

// rescheduleLocked recomputes the next wakeup from the earliest expiry and
// interrupts the loop's wait if the wakeup changed.
func (lm *lockManager) rescheduleLocked() {
	var next time.Time
	if item := lm.expirations.peek(); item != nil {
		next = wakeupFor(item.expiresAt, lm.config.ExpiryRounding)
	}
	if next.Equal(lm.wakeAt) {
		return
	}
	lm.wakeAt = next

	select {
	case lm.wakeCh <- struct{}{}:
	default:
	}
}

// wakeupFor rounds an expiry up to the rounding granularity. The offset is
// added to expiresAt itself so any monotonic reading is kept.
func wakeupFor(expiresAt time.Time, granularity time.Duration) time.Time {
	return expiresAt.Add(clock.RoundUp(expiresAt, granularity).Sub(expiresAt))
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
