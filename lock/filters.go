package lock

import (
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/types"
)

// LockFilter defines a function that determines whether a given lock
// satisfies specific criteria. Used in GetLocks queries.
type LockFilter func(*types.LockInfo) bool

var (
	// FilterByOwner returns a LockFilter that matches locks carrying the given owner payload.
	FilterByOwner = func(owner string) LockFilter {
		return func(lock *types.LockInfo) bool {
			return lock.Owner == owner
		}
	}

	// FilterByPathPrefix returns a LockFilter that matches locks on prefix or any path beneath it.
	FilterByPathPrefix = func(prefix string) LockFilter {
		prefix = types.CleanPath(prefix)
		return func(lock *types.LockInfo) bool {
			return lock.Path == prefix || types.IsAncestor(prefix, lock.Path)
		}
	}

	// FilterExpiringSoon returns a LockFilter that matches finite locks expiring
	// within the given duration of the clock's current time.
	FilterExpiringSoon = func(c clock.Clock, within time.Duration) LockFilter {
		return func(lock *types.LockInfo) bool {
			return !lock.IsInfinite() && lock.ExpiresAt.Sub(c.Now()) <= within
		}
	}

	// FilterAll is a LockFilter that matches all locks unconditionally.
	FilterAll LockFilter = func(*types.LockInfo) bool {
		return true
	}
)
