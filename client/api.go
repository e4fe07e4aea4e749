package client

import (
	"context"
	"time"

	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// Client is a high-level client for a davlock server. It hides the gRPC
// wire format and retries requests the server turned away before handling
// them.
//
// All operations are context-aware and honor cancellation and timeouts.
type Client interface {
	// Lock creates a lock on path.
	//
	// Possible errors:
	//   - ErrLocked: a conflicting lock covers path, an ancestor, or a descendant
	//   - ErrNotFound: the parent collection of path does not exist
	//   - ErrInvalidArgument: invalid path, owner, or timeout
	Lock(ctx context.Context, path string, opts LockOptions) (*types.LockInfo, error)

	// Refresh renews the lock identified by token for timeout. A zero
	// timeout requests the server default; types.InfiniteTimeout requests
	// a lock that never expires.
	//
	// Possible errors:
	//   - ErrNoSuchLock: token is unknown or the lock has expired
	Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error)

	// Unlock releases the lock identified by token.
	//
	// Possible errors:
	//   - ErrNoSuchLock: token is unknown or the lock has expired
	Unlock(ctx context.Context, token types.StateToken) error

	// LockInfo returns a snapshot of the lock identified by token.
	LockInfo(ctx context.Context, token types.StateToken) (*types.LockInfo, error)

	// Locks returns a page of active locks matching q.
	Locks(ctx context.Context, q LocksQuery) (*LocksPage, error)

	// Stat returns a snapshot of the node at path.
	Stat(ctx context.Context, path string) (vfs.NodeInfo, error)

	// List returns the children of the collection at path, ordered by name.
	List(ctx context.Context, path string) ([]vfs.NodeInfo, error)

	// CreateDocument creates a document at path. Tokens are presented to
	// satisfy locks on path or its ancestors.
	//
	// Possible errors:
	//   - ErrLocked: a lock covers path and none of tokens matches it
	//   - ErrAlreadyExists: a node already exists at path
	//   - ErrPermissionDenied: the owning filesystem is read-only
	CreateDocument(ctx context.Context, path string, content []byte, contentType string, tokens ...types.StateToken) (vfs.NodeInfo, error)

	// CreateCollection creates an empty collection at path.
	CreateCollection(ctx context.Context, path string, tokens ...types.StateToken) (vfs.NodeInfo, error)

	// Delete removes the node at path and its subtree.
	//
	// Possible errors:
	//   - ErrLocked: a lock in the subtree is not matched by tokens
	//   - ErrFailedPrecondition: path is a mount point
	Delete(ctx context.Context, path string, tokens ...types.StateToken) error

	// SetRetryPolicy sets the client's retry behavior for failed operations.
	SetRetryPolicy(policy RetryPolicy)

	// Metrics returns client-side metrics for observability. The returned
	// value discards everything when metrics are disabled.
	Metrics() Metrics

	// Close shuts down the client and releases its connection.
	// The client must not be used after Close is called.
	Close() error
}

// LockOptions holds the optional parameters of a Lock call.
type LockOptions struct {
	// Recursive extends the lock to every descendant of the path.
	Recursive bool

	// Owner is opaque metadata stored with the lock.
	Owner string

	// Access defaults to types.AccessWrite.
	Access types.AccessType

	// Share defaults to types.ShareExclusive.
	Share types.ShareMode

	// Timeout is the requested lease. Zero means the server default;
	// types.InfiniteTimeout requests a lock that never expires.
	Timeout time.Duration
}

// LocksQuery filters and pages a Locks call. Empty filters match every lock.
type LocksQuery struct {
	PathPrefix string
	Owner      string

	// ExpiringWithin, when positive, keeps only finite locks that expire
	// within this window.
	ExpiringWithin time.Duration

	// Limit caps the page size. Zero means the server default.
	Limit  int
	Offset int
}

// LocksPage is one page of a Locks call.
type LocksPage struct {
	Locks []*types.LockInfo

	// Total is the number of locks matching the query across all pages.
	Total int

	// HasMore reports whether locks exist beyond this page.
	HasMore bool
}
