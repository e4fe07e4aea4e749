package types

import "time"

// StateToken uniquely identifies a granted lock.
// It is assigned at issuance and never changes for the lifetime of the lock.
// Tokens are absolute URIs of the form "opaquelocktoken:<uuid>".
type StateToken string

// AccessType describes what the holder of a lock intends to do with the resource.
type AccessType int

const (
	// AccessWrite is a write lock. Write locks gate mutations of the covered resources.
	AccessWrite AccessType = iota

	// AccessRead is a read lock. Read locks participate in conflict arbitration
	// but never gate mutations.
	AccessRead
)

// ShareMode describes whether a lock tolerates other locks on overlapping paths.
type ShareMode int

const (
	// ShareExclusive forbids every other lock on an overlapping path.
	ShareExclusive ShareMode = iota

	// ShareShared tolerates other shared locks on overlapping paths.
	ShareShared
)

// NodeKind distinguishes the two kinds of addressable filesystem nodes.
type NodeKind int

const (
	// KindCollection is a node that owns an ordered-by-name set of children.
	KindCollection NodeKind = iota

	// KindDocument is a leaf node holding byte content.
	KindDocument
)

// ReleaseReason tells release subscribers why a lock left the active set.
type ReleaseReason int

const (
	// ReleaseExplicit means the lock was removed by an Unlock call.
	ReleaseExplicit ReleaseReason = iota

	// ReleaseExpired means the lock timed out and was reclaimed.
	ReleaseExpired
)

// InfiniteTimeout is the sentinel timeout for locks that never expire on their own.
// It matches the negative-duration convention used by WebDAV lock systems.
const InfiniteTimeout time.Duration = -1

// LockInfo is an immutable snapshot of a granted lock.
type LockInfo struct {
	// Token identifies the lock.
	Token StateToken `json:"token"`

	// Path is the resource path the lock covers.
	Path string `json:"path"`

	// Recursive reports whether the lock covers all descendants of Path
	// (Depth: infinity) or only Path itself (Depth: 0).
	Recursive bool `json:"recursive"`

	// Owner is opaque caller-supplied metadata, e.g. the <owner> XML of a LOCK request.
	Owner string `json:"owner,omitempty"`

	Access AccessType `json:"access"`
	Share  ShareMode  `json:"share"`

	// Timeout is the duration requested at issuance or last refresh,
	// or InfiniteTimeout.
	Timeout time.Duration `json:"timeout"`

	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is IssuedAt plus Timeout. Zero for infinite locks.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsInfinite reports whether the lock never expires on its own.
func (li LockInfo) IsInfinite() bool {
	return li.ExpiresAt.IsZero()
}

// IsActive reports whether the lock has not yet expired at the given time.
func (li LockInfo) IsActive(now time.Time) bool {
	return li.IsInfinite() || now.Before(li.ExpiresAt)
}

// Remaining returns the time left before expiry, InfiniteTimeout for infinite
// locks, or zero once expired.
func (li LockInfo) Remaining(now time.Time) time.Duration {
	if li.IsInfinite() {
		return InfiniteTimeout
	}
	if d := li.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Covers reports whether the lock applies to the given resource path,
// either directly or through a recursive ancestor lock.
func (li LockInfo) Covers(path string) bool {
	return li.Path == path || (li.Recursive && IsAncestor(li.Path, path))
}
