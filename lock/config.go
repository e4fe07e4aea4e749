package lock

import (
	"fmt"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
)

// LockManagerOption defines a function that applies a configuration setting
// to a LockManager during initialization.
type LockManagerOption func(*LockManagerConfig)

// LockManagerConfig holds configuration parameters for a LockManager instance.
type LockManagerConfig struct {
	// DefaultTimeout is applied to lock and refresh requests that carry a zero timeout.
	DefaultTimeout time.Duration

	// MaxTimeout is the upper bound for any finite timeout. Requests above it are capped.
	MaxTimeout time.Duration

	// ExpiryRounding is the granularity of reclamation wakeups. The loop sleeps until
	// the earliest expiry rounded up to a multiple of this value. Zero disables coalescing.
	ExpiryRounding time.Duration

	// MaxLocks limits the number of simultaneously active locks.
	MaxLocks int

	Clock          clock.Clock
	Logger         logger.Logger
	Metrics        Metrics
	Store          Store
	TokenGenerator TokenGenerator
}

// DefaultLockManagerConfig returns a LockManagerConfig with sensible defaults
// based on the predefined constants.
func DefaultLockManagerConfig() LockManagerConfig {
	return LockManagerConfig{
		DefaultTimeout: DefaultLockTimeout,
		MaxTimeout:     MaxLockTimeout,
		ExpiryRounding: DefaultExpiryRounding,
		MaxLocks:       DefaultMaxLocks,
	}
}

// Validate checks the numeric settings for consistency.
func (c LockManagerConfig) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("lockmanager: default timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.MaxTimeout < c.DefaultTimeout {
		return fmt.Errorf("lockmanager: max timeout %v is below default timeout %v", c.MaxTimeout, c.DefaultTimeout)
	}
	if c.ExpiryRounding < 0 || c.ExpiryRounding > MaxExpiryRounding {
		return fmt.Errorf("lockmanager: expiry rounding must be within [0, %v], got %v", MaxExpiryRounding, c.ExpiryRounding)
	}
	if c.MaxLocks <= 0 {
		return fmt.Errorf("lockmanager: max locks must be positive, got %d", c.MaxLocks)
	}
	return nil
}

// WithDefaultTimeout sets the timeout used when a request does not specify one.
// Non-positive values are ignored.
func WithDefaultTimeout(timeout time.Duration) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if timeout > 0 {
			cfg.DefaultTimeout = timeout
		}
	}
}

// WithMaxTimeout sets the cap for finite timeouts. Non-positive values are ignored.
func WithMaxTimeout(timeout time.Duration) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if timeout > 0 {
			cfg.MaxTimeout = timeout
		}
	}
}

// WithExpiryRounding sets the reclamation wakeup granularity.
// Values outside [0, MaxExpiryRounding] are ignored.
func WithExpiryRounding(granularity time.Duration) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if granularity >= 0 && granularity <= MaxExpiryRounding {
			cfg.ExpiryRounding = granularity
		}
	}
}

// WithMaxLocks sets the maximum number of simultaneously active locks.
func WithMaxLocks(max int) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if max > 0 {
			cfg.MaxLocks = max
		}
	}
}

// WithClock sets the clock used for issuance, expiry and reclamation timers.
func WithClock(clock clock.Clock) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if clock != nil {
			cfg.Clock = clock
		}
	}
}

// WithLogger sets the logger for internal events.
func WithLogger(logger logger.Logger) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

// WithMetrics sets the metrics collector for operational data.
func WithMetrics(metrics Metrics) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if metrics != nil {
			cfg.Metrics = metrics
		}
	}
}

// WithStore mirrors the active-lock table into a persistent store.
func WithStore(store Store) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if store != nil {
			cfg.Store = store
		}
	}
}

// WithTokenGenerator replaces the state token source.
func WithTokenGenerator(gen TokenGenerator) LockManagerOption {
	return func(cfg *LockManagerConfig) {
		if gen != nil {
			cfg.TokenGenerator = gen
		}
	}
}
