// Package vfs implements an in-memory virtual filesystem whose instances can be
// mounted into one another. Every instance keeps its own tree, its own mount
// table and its own read-only flag; lookups that cross a mount point are
// evaluated against the mounted instance.
package vfs

import (
	"sync"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/types"
)

// FilesystemOption configures a Filesystem at construction time.
type FilesystemOption func(*FilesystemConfig)

// FilesystemConfig holds the construction parameters of a Filesystem.
type FilesystemConfig struct {
	ReadOnly bool
	Clock    clock.Clock
	Logger   logger.Logger
}

// WithReadOnly sets the initial read-only flag of the instance.
func WithReadOnly(readOnly bool) FilesystemOption {
	return func(cfg *FilesystemConfig) {
		cfg.ReadOnly = readOnly
	}
}

// WithClock sets the clock used for modification times. Nil is ignored.
func WithClock(c clock.Clock) FilesystemOption {
	return func(cfg *FilesystemConfig) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l logger.Logger) FilesystemOption {
	return func(cfg *FilesystemConfig) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// Filesystem is one independently owned instance: a root collection, a mount
// table keyed by local collection path, and a read-only flag.
//
// All nodes of the instance and its mount table are guarded by mu. Lookups
// never hold the locks of two instances at once.
type Filesystem struct {
	name string

	mu       sync.RWMutex
	root     *Collection
	readOnly bool
	mounts   map[string]*Filesystem

	clock  clock.Clock
	logger logger.Logger
}

// NewFilesystem creates an empty instance with the given display name.
func NewFilesystem(name string, opts ...FilesystemOption) *Filesystem {
	cfg := FilesystemConfig{
		Clock:  clock.NewStandardClock(),
		Logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fsys := &Filesystem{
		name:     name,
		readOnly: cfg.ReadOnly,
		mounts:   make(map[string]*Filesystem),
		clock:    cfg.Clock,
		logger:   cfg.Logger.WithComponent("vfs").With("filesystem", name),
	}
	fsys.root = newCollection(fsys, "/", cfg.Clock.Now())
	return fsys
}

// Name returns the display name given at construction.
func (fsys *Filesystem) Name() string {
	return fsys.name
}

// Root returns the instance's own root collection.
func (fsys *Filesystem) Root() *Collection {
	return fsys.root
}

// IsReadOnly reports whether mutations of this instance's own nodes are rejected.
// Instances mounted beneath it keep their own flag.
func (fsys *Filesystem) IsReadOnly() bool {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()
	return fsys.readOnly
}

// SetReadOnly changes the read-only flag of this instance only.
func (fsys *Filesystem) SetReadOnly(readOnly bool) {
	fsys.mu.Lock()
	fsys.readOnly = readOnly
	fsys.mu.Unlock()
	fsys.logger.Infow("read-only flag changed", "readOnly", readOnly)
}

// lookupLocked walks a local path inside this instance without crossing mounts.
func (fsys *Filesystem) lookupLocked(local string) (Node, error) {
	var node Node = fsys.root
	for _, seg := range types.SplitPath(local) {
		c, ok := node.(*Collection)
		if !ok {
			return nil, ErrNotFound
		}
		child, ok := c.children[seg]
		if !ok {
			return nil, ErrNotFound
		}
		node = child
	}
	return node, nil
}

func (fsys *Filesystem) collectionLocked(local string) (*Collection, error) {
	node, err := fsys.lookupLocked(local)
	if err != nil {
		return nil, err
	}
	c, ok := node.(*Collection)
	if !ok {
		return nil, ErrNotCollection
	}
	return c, nil
}

// hasMountAtOrBelowLocked reports whether local or any of its descendants is a mount point.
func (fsys *Filesystem) hasMountAtOrBelowLocked(local string) bool {
	for mp := range fsys.mounts {
		if mp == local || types.IsAncestor(local, mp) {
			return true
		}
	}
	return false
}
