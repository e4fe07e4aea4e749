package davhttp

import (
	"io"
	"io/fs"
	"os"

	"golang.org/x/net/webdav"

	"github.com/jathurchan/davlock/vfs"
)

// file is an open collection or document. Document content is copied at
// open time; writable files buffer changes and commit them on Close.
type file struct {
	name string
	info vfs.NodeInfo

	children []vfs.NodeInfo
	dirPos   int

	data   []byte
	pos    int64
	dirty  bool
	commit func([]byte) error
	closed bool
}

var _ webdav.File = (*file)(nil)

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.info.IsCollection() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: os.ErrInvalid}
	}
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.data)) + offset
	default:
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: os.ErrInvalid}
	}
	if abs < 0 {
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: os.ErrInvalid}
	}
	f.pos = abs
	return abs, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.commit == nil {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: os.ErrPermission}
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:], p)
	f.pos = end
	f.dirty = true
	return len(p), nil
}

// Readdir follows os.File semantics: with count <= 0 it returns every
// remaining entry, otherwise at most count entries and io.EOF at the end.
func (f *file) Readdir(count int) ([]fs.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}
	if !f.info.IsCollection() {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: os.ErrInvalid}
	}

	remaining := f.children[f.dirPos:]
	if count > 0 {
		if len(remaining) == 0 {
			return nil, io.EOF
		}
		if count < len(remaining) {
			remaining = remaining[:count]
		}
	}
	f.dirPos += len(remaining)

	infos := make([]fs.FileInfo, 0, len(remaining))
	for _, child := range remaining {
		infos = append(infos, fileInfo{child})
	}
	return infos, nil
}

func (f *file) Stat() (fs.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}
	info := f.info
	if !info.IsCollection() {
		info.Size = int64(len(f.data))
	}
	return fileInfo{info}, nil
}

// Close commits buffered writes. A failed commit leaves the filesystem
// unchanged.
func (f *file) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	if f.commit == nil || !f.dirty {
		return nil
	}
	return f.commit(f.data)
}
