// Package davfs composes the lock manager and the mountable filesystem into
// the locked mutation flow: resolve the path, confirm the presented lock
// tokens, then mutate the instance that owns the resolved node.
package davfs

import (
	"context"
	"errors"
	"time"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Nil is ignored.
func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service serves lock and filesystem requests against one host filesystem
// and one lock manager. Both are constructed by the caller and shared.
type Service struct {
	fs     *vfs.Filesystem
	locks  lock.LockManager
	logger logger.Logger

	unsubscribe func()
}

// NewService wires fsys and locks together and subscribes to release
// notifications. Call Close to unsubscribe.
func NewService(fsys *vfs.Filesystem, locks lock.LockManager, opts ...ServiceOption) *Service {
	s := &Service{
		fs:     fsys,
		locks:  locks,
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("davfs")
	s.unsubscribe = locks.Subscribe(s.onRelease)
	return s
}

// Filesystem returns the host filesystem.
func (s *Service) Filesystem() *vfs.Filesystem {
	return s.fs
}

// Locks returns the lock manager.
func (s *Service) Locks() lock.LockManager {
	return s.locks
}

// Close stops receiving release notifications. The filesystem and lock
// manager are owned by the caller and stay open.
func (s *Service) Close() {
	s.unsubscribe()
}

func (s *Service) onRelease(info types.LockInfo, reason types.ReleaseReason) {
	s.logger.WithPath(info.Path).Debugw("lock released",
		"token", info.Token,
		"reason", reason.String(),
		"owner", info.Owner,
	)
}

// Lock grants a lock on an existing resource, or reserves an unmapped name
// whose parent is an existing collection.
func (s *Service) Lock(ctx context.Context, req lock.LockRequest) (*types.LockInfo, error) {
	req.Path = types.CleanPath(req.Path)
	if _, err := s.fs.Stat(req.Path); err != nil {
		if !errors.Is(err, vfs.ErrNotFound) {
			return nil, err
		}
		parent, perr := s.fs.Stat(types.ParentPath(req.Path))
		if perr != nil {
			return nil, err
		}
		if !parent.IsCollection() {
			return nil, &vfs.Error{Op: "lock", Path: req.Path, Err: vfs.ErrNotCollection}
		}
	}

	info, err := s.locks.Lock(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.WithPath(info.Path).Infow("lock granted",
		"token", info.Token,
		"share", info.Share.String(),
		"recursive", info.Recursive,
		"timeout", info.Timeout,
	)
	return info, nil
}

// Refresh extends an active lock.
func (s *Service) Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error) {
	return s.locks.Refresh(ctx, token, timeout)
}

// Unlock releases an active lock.
func (s *Service) Unlock(ctx context.Context, token types.StateToken) error {
	return s.locks.Unlock(ctx, token)
}

// LockInfo returns a snapshot of an active lock.
func (s *Service) LockInfo(ctx context.Context, token types.StateToken) (*types.LockInfo, error) {
	return s.locks.GetLockInfo(ctx, token)
}

// Stat returns a snapshot of the node at path.
func (s *Service) Stat(ctx context.Context, path string) (vfs.NodeInfo, error) {
	if err := ctx.Err(); err != nil {
		return vfs.NodeInfo{}, err
	}
	return s.fs.Stat(path)
}

// List returns the children of the collection at path.
func (s *Service) List(ctx context.Context, path string) ([]vfs.NodeInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fs.List(path)
}

// ReadDocument returns the content and content type of the document at path.
func (s *Service) ReadDocument(ctx context.Context, path string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return s.fs.ReadDocument(path)
}

// CreateDocument creates a document after confirming the presented tokens.
func (s *Service) CreateDocument(ctx context.Context, path string, content []byte, contentType string, tokens []types.StateToken) error {
	path = types.CleanPath(path)
	if err := s.confirm(ctx, path, false, tokens); err != nil {
		return err
	}
	return s.fs.CreateDocument(path, content, contentType)
}

// CreateCollection creates a collection after confirming the presented tokens.
func (s *Service) CreateCollection(ctx context.Context, path string, tokens []types.StateToken) error {
	path = types.CleanPath(path)
	if err := s.confirm(ctx, path, false, tokens); err != nil {
		return err
	}
	return s.fs.CreateCollection(path)
}

// Write creates or replaces a document after confirming the presented tokens.
// It reports whether the document was created.
func (s *Service) Write(ctx context.Context, path string, content []byte, contentType string, tokens []types.StateToken) (bool, error) {
	path = types.CleanPath(path)
	if err := s.confirm(ctx, path, false, tokens); err != nil {
		return false, err
	}
	return s.fs.Write(path, content, contentType)
}

// Delete removes the node at path and its subtree. Locks on the removed
// nodes are not released; they expire or are unlocked by their holders.
func (s *Service) Delete(ctx context.Context, path string, tokens []types.StateToken) error {
	path = types.CleanPath(path)
	if _, err := s.fs.Resolve(path); err != nil {
		return err
	}
	if err := s.confirm(ctx, path, true, tokens); err != nil {
		return err
	}
	return s.fs.Delete(path)
}

// Move renames src to dst after confirming locks on both subtrees.
// It reports whether an existing destination was replaced.
func (s *Service) Move(ctx context.Context, src, dst string, overwrite bool, tokens []types.StateToken) (bool, error) {
	src, dst = types.CleanPath(src), types.CleanPath(dst)
	if _, err := s.fs.Resolve(src); err != nil {
		return false, err
	}
	req := lock.ConfirmRequest{Path: src, Destination: dst, Recursive: true, Tokens: tokens}
	if err := s.confirmRequest(ctx, req); err != nil {
		return false, err
	}
	return s.fs.Move(src, dst, overwrite)
}

func (s *Service) confirm(ctx context.Context, path string, recursive bool, tokens []types.StateToken) error {
	return s.confirmRequest(ctx, lock.ConfirmRequest{Path: path, Recursive: recursive, Tokens: tokens})
}

// confirmRequest checks the lock manager unless the request's locks were
// already arbitrated by the caller (see WithLocksConfirmed).
func (s *Service) confirmRequest(ctx context.Context, req lock.ConfirmRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if locksConfirmed(ctx) {
		return nil
	}
	err := s.locks.Confirm(ctx, req)
	if err != nil {
		s.logger.WithPath(req.Path).Debugw("mutation rejected by locks", "error", err, "tokens", len(req.Tokens))
	}
	return err
}

type confirmedKey struct{}

// WithLocksConfirmed marks ctx as belonging to a request whose lock tokens
// were already confirmed by the caller, such as the WebDAV handler's
// LockSystem. Mutations made with such a context skip Confirm.
func WithLocksConfirmed(ctx context.Context) context.Context {
	return context.WithValue(ctx, confirmedKey{}, true)
}

func locksConfirmed(ctx context.Context) bool {
	v, _ := ctx.Value(confirmedKey{}).(bool)
	return v
}
