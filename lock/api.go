package lock

import (
	"context"
	"time"

	"github.com/jathurchan/davlock/types"
)

// LockManager is the single in-process authority over active locks.
//
// Notes:
//   - All methods are safe for concurrent use. Conflict checking and insertion
//     happen atomically under one mutex.
//   - A background reclamation loop removes expired locks and notifies subscribers.
//   - Operations after Close return ErrManagerClosed.
type LockManager interface {
	// Lock grants a new lock on req.Path.
	//
	// Returns:
	//   - *LockInfo snapshot of the granted lock.
	//   - *ConflictError listing the incompatible active locks. Nothing is mutated.
	//   - ErrInvalidPath, ErrInvalidTimeout, ErrInvalidAccessType, ErrInvalidShareMode
	//     or ErrTooManyLocks.
	Lock(ctx context.Context, req LockRequest) (*types.LockInfo, error)

	// Refresh restarts the lock's timeout from now.
	// A zero timeout means the configured default.
	//
	// Returns:
	//   - *LockInfo snapshot with the new expiry.
	//   - *InvalidTokenError if the token is unknown or expired.
	Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error)

	// Unlock removes the lock immediately and notifies subscribers on the
	// calling goroutine before returning.
	//
	// Returns *InvalidTokenError if the token is unknown, expired or already released.
	Unlock(ctx context.Context, token types.StateToken) error

	// Subscribe registers a handler invoked exactly once for every lock that
	// leaves the active set. The returned function removes the handler.
	Subscribe(handler ReleaseHandler) (unsubscribe func())

	// Confirm checks that a mutation of req.Path may proceed given the tokens
	// the caller presents.
	//
	// Returns:
	//   - nil if every write lock guarding the path is satisfied.
	//   - *InvalidTokenError if a presented token is not an active lock overlapping the path.
	//   - *ConflictError listing the unsatisfied locks.
	Confirm(ctx context.Context, req ConfirmRequest) error

	// GetLockInfo returns a snapshot of an active lock.
	GetLockInfo(ctx context.Context, token types.StateToken) (*types.LockInfo, error)

	// GetLocks returns a page of active locks matching filter, ordered by issuance.
	// If limit <= 0, all items from offset are returned.
	//
	// Returns the page and the total number of matching locks.
	GetLocks(ctx context.Context, filter LockFilter, limit int, offset int) (locks []*types.LockInfo, total int, err error)

	// Recover prunes and loads the configured Store, then re-inserts the
	// rows still active. Returns the number of locks restored.
	Recover(ctx context.Context) (int, error)

	// Close stops the reclamation loop and waits for queued Store writes.
	// Locks still active are abandoned without notifications.
	Close() error
}

// LockRequest describes a lock to be granted.
type LockRequest struct {
	Path string

	// Recursive extends the lock to every descendant of Path (Depth: infinity).
	Recursive bool

	// Owner is opaque caller-supplied metadata stored with the lock.
	Owner string

	Access types.AccessType
	Share  types.ShareMode

	// Timeout is a positive duration, types.InfiniteTimeout, or zero for the default.
	Timeout time.Duration

	// Ephemeral marks a lock that only guards one in-process operation.
	// It takes part in conflict checks like any other lock but is never
	// persisted, listed, counted in metrics or announced to subscribers.
	Ephemeral bool
}

// ConfirmRequest describes a mutation guarded by locks.
type ConfirmRequest struct {
	Path string

	// Destination optionally names a second resource covered by the same
	// tokens, such as the target of a move.
	Destination string

	// Recursive marks mutations that affect every descendant of Path,
	// such as deleting or moving a collection.
	Recursive bool

	// Tokens are the state tokens submitted with the mutation.
	Tokens []types.StateToken
}

// ReleaseHandler receives a snapshot of every lock leaving the active set.
// Handlers run on the reclamation goroutine or the unlocking caller's
// goroutine and must not block.
type ReleaseHandler func(info types.LockInfo, reason types.ReleaseReason)

// TokenGenerator produces state tokens. Tokens must be unique among active locks.
type TokenGenerator func() types.StateToken
