package lock

import "time"

// Time
const (
	// DefaultLockTimeout is used when a lock or refresh request does not specify a timeout.
	DefaultLockTimeout = 3 * time.Minute

	// MaxLockTimeout caps finite timeouts. Longer requests are shortened, not rejected.
	MaxLockTimeout = 24 * time.Hour

	// DefaultExpiryRounding is the granularity at which the reclamation loop
	// schedules its wakeups. Expiries inside one window are reclaimed together.
	DefaultExpiryRounding = 100 * time.Millisecond

	// MaxExpiryRounding bounds how late an expired lock may linger before reclamation.
	MaxExpiryRounding = time.Minute
)

// Capacity
const (
	// DefaultMaxLocks is the default maximum number of simultaneously active locks.
	DefaultMaxLocks = 10000
)

// TokenScheme is the URI scheme of generated state tokens.
const TokenScheme = "opaquelocktoken:"
