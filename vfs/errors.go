package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a path segment does not exist.
	ErrNotFound = errors.New("vfs: not found")

	// ErrUnauthorized indicates a mutation against a read-only filesystem instance.
	ErrUnauthorized = errors.New("vfs: unauthorized access to read-only filesystem")

	// ErrAlreadyExists indicates that a node with the same name already exists under the parent.
	ErrAlreadyExists = errors.New("vfs: already exists")

	// ErrNotCollection indicates that an operation required a collection.
	ErrNotCollection = errors.New("vfs: not a collection")

	// ErrNotDocument indicates that an operation required a document.
	ErrNotDocument = errors.New("vfs: not a document")

	// ErrInvalidPath indicates a path the operation cannot act on, such as the root.
	ErrInvalidPath = errors.New("vfs: invalid path")

	// ErrMountExists indicates that a filesystem is already mounted at the path.
	ErrMountExists = errors.New("vfs: mount point already in use")

	// ErrNotMounted indicates that no filesystem is mounted at the path.
	ErrNotMounted = errors.New("vfs: no filesystem mounted at path")

	// ErrMountCycle indicates that mounting would make a filesystem reachable from itself.
	ErrMountCycle = errors.New("vfs: mount would create a cycle")

	// ErrMountPoint indicates that the operation would delete or move a mount point.
	ErrMountPoint = errors.New("vfs: path is or contains a mount point")

	// ErrCrossMount indicates a move whose source and destination belong to different instances.
	ErrCrossMount = errors.New("vfs: cannot move across filesystem instances")
)

// Error wraps a filesystem error with the operation and the affected path.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// Operation names used in Error.Op.
const (
	OpResolve          = "resolve"
	OpStat             = "stat"
	OpRead             = "read"
	OpList             = "list"
	OpCreateDocument   = "create-document"
	OpCreateCollection = "create-collection"
	OpWrite            = "write"
	OpDelete           = "delete"
	OpMove             = "move"
	OpMount            = "mount"
	OpUnmount          = "unmount"
)
