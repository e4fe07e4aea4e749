// Package davhttp adapts the davfs service to golang.org/x/net/webdav so a
// standard WebDAV handler can serve the mountable filesystem and its locks.
package davhttp

import (
	"errors"
	"os"

	"golang.org/x/net/webdav"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/vfs"
)

// toOSError converts service errors into the values the webdav handler
// compares against. The handler uses os.IsNotExist and == comparisons, so
// filesystem errors are returned as *os.PathError around the os sentinel.
func toOSError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, lock.ErrConflict):
		return webdav.ErrLocked
	case errors.Is(err, lock.ErrInvalidToken):
		return webdav.ErrNoSuchLock
	case errors.Is(err, vfs.ErrNotFound):
		return &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	case errors.Is(err, vfs.ErrUnauthorized):
		return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
	case errors.Is(err, vfs.ErrAlreadyExists):
		return &os.PathError{Op: op, Path: name, Err: os.ErrExist}
	case errors.Is(err, vfs.ErrNotCollection),
		errors.Is(err, vfs.ErrNotDocument),
		errors.Is(err, vfs.ErrInvalidPath),
		errors.Is(err, vfs.ErrMountPoint),
		errors.Is(err, vfs.ErrCrossMount):
		return &os.PathError{Op: op, Path: name, Err: os.ErrInvalid}
	default:
		return err
	}
}
