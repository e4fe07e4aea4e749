package davhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/net/webdav"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/types"
)

// LockSystem implements webdav.LockSystem over a lock.LockManager.
//
// The now arguments supplied by the webdav handler are ignored; the lock
// manager's clock decides expiry.
type LockSystem struct {
	locks lock.LockManager

	ctx context.Context
	// temporary marks locks created outside a LOCK request. The webdav
	// handler takes those around a single write and releases them itself.
	temporary bool
}

var _ webdav.LockSystem = (*LockSystem)(nil)

// NewLockSystem returns a webdav.LockSystem backed by locks.
func NewLockSystem(locks lock.LockManager) *LockSystem {
	return &LockSystem{locks: locks}
}

// bind returns a copy of ls serving r. Locks created for any method other
// than LOCK are ephemeral.
func (ls *LockSystem) bind(r *http.Request) *LockSystem {
	return &LockSystem{
		locks:     ls.locks,
		ctx:       r.Context(),
		temporary: r.Method != "LOCK",
	}
}

func (ls *LockSystem) requestContext() context.Context {
	if ls.ctx == nil {
		return context.Background()
	}
	return ls.ctx
}

// Confirm checks the write locks covering name0 and, for COPY and MOVE,
// name1 against the tokens in conditions. Negated conditions and entity-tag
// conditions contribute no tokens.
//
// The manager keeps no per-request hold, so release is a no-op.
func (ls *LockSystem) Confirm(_ time.Time, name0, name1 string, conditions ...webdav.Condition) (func(), error) {
	var tokens []types.StateToken
	for _, c := range conditions {
		if !c.Not && c.Token != "" {
			tokens = append(tokens, types.StateToken(c.Token))
		}
	}

	req := lock.ConfirmRequest{Path: name0, Destination: name1, Recursive: true, Tokens: tokens}
	if req.Path == "" {
		req.Path, req.Destination = name1, ""
	}
	if req.Path == "" {
		return func() {}, nil
	}

	err := ls.locks.Confirm(ls.requestContext(), req)
	switch {
	case err == nil:
		return func() {}, nil
	case errors.Is(err, lock.ErrConflict), errors.Is(err, lock.ErrInvalidToken):
		return nil, webdav.ErrConfirmationFailed
	default:
		return nil, err
	}
}

// Create grants an exclusive write lock. A negative duration requests an
// infinite lock, matching the webdav package's convention.
func (ls *LockSystem) Create(_ time.Time, details webdav.LockDetails) (string, error) {
	info, err := ls.locks.Lock(ls.requestContext(), lock.LockRequest{
		Path:      details.Root,
		Recursive: !details.ZeroDepth,
		Owner:     details.OwnerXML,
		Access:    types.AccessWrite,
		Share:     types.ShareExclusive,
		Timeout:   toTimeout(details.Duration),
		Ephemeral: ls.temporary,
	})
	if err != nil {
		if errors.Is(err, lock.ErrConflict) {
			return "", webdav.ErrLocked
		}
		return "", err
	}
	return string(info.Token), nil
}

func (ls *LockSystem) Refresh(_ time.Time, token string, duration time.Duration) (webdav.LockDetails, error) {
	info, err := ls.locks.Refresh(ls.requestContext(), types.StateToken(token), toTimeout(duration))
	if err != nil {
		if errors.Is(err, lock.ErrInvalidToken) {
			return webdav.LockDetails{}, webdav.ErrNoSuchLock
		}
		return webdav.LockDetails{}, err
	}
	return toDetails(info), nil
}

// Unlock ignores the request context so that temporary locks are released
// even when the client has gone away.
func (ls *LockSystem) Unlock(_ time.Time, token string) error {
	err := ls.locks.Unlock(context.Background(), types.StateToken(token))
	if errors.Is(err, lock.ErrInvalidToken) {
		return webdav.ErrNoSuchLock
	}
	return err
}

func toTimeout(d time.Duration) time.Duration {
	if d < 0 {
		return types.InfiniteTimeout
	}
	return d
}

func toDetails(info *types.LockInfo) webdav.LockDetails {
	return webdav.LockDetails{
		Root:      info.Path,
		Duration:  info.Timeout,
		OwnerXML:  info.Owner,
		ZeroDepth: !info.Recursive,
	}
}
