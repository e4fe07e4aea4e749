package lock

import (
	"time"

	"github.com/jathurchan/davlock/types"
)

// Metrics defines the interface for recording metrics related to lock operations.
// All methods must be safe for concurrent use.
type Metrics interface {
	// IncrLockRequest counts lock attempts. `conflict` is true when the
	// request was rejected because of an incompatible lock.
	IncrLockRequest(share types.ShareMode, success bool, conflict bool)

	// IncrRefreshRequest counts refresh attempts.
	IncrRefreshRequest(success bool)

	// IncrUnlockRequest counts explicit unlock attempts.
	IncrUnlockRequest(success bool)

	// IncrExpiredLock counts locks reclaimed after their timeout elapsed.
	IncrExpiredLock()

	// IncrConfirm counts conditional mutation checks.
	IncrConfirm(success bool)

	// ObserveSweepDuration records how long a reclamation sweep took and how many locks it removed.
	ObserveSweepDuration(duration time.Duration, expired int)

	// ObserveLockHoldDuration records how long a lock stayed active.
	ObserveLockHoldDuration(holdTime time.Duration, reason types.ReleaseReason)

	// SetActiveLocks sets the current number of active locks.
	SetActiveLocks(count int)
}

// NoOpMetrics is a Metrics implementation that discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) IncrLockRequest(types.ShareMode, bool, bool)                 {}
func (NoOpMetrics) IncrRefreshRequest(bool)                                     {}
func (NoOpMetrics) IncrUnlockRequest(bool)                                      {}
func (NoOpMetrics) IncrExpiredLock()                                            {}
func (NoOpMetrics) IncrConfirm(bool)                                            {}
func (NoOpMetrics) ObserveSweepDuration(time.Duration, int)                     {}
func (NoOpMetrics) ObserveLockHoldDuration(time.Duration, types.ReleaseReason) {}
func (NoOpMetrics) SetActiveLocks(int)                                          {}
