package davhttp

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"os"
	"path"
	"time"

	"golang.org/x/net/webdav"

	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// FileSystem implements webdav.FileSystem over a davfs.Service.
//
// The webdav handler confirms lock tokens through LockSystem before it calls
// any mutating method, so requests served by NewHandler carry a context
// marked with davfs.WithLocksConfirmed.
type FileSystem struct {
	svc *davfs.Service
}

var _ webdav.FileSystem = (*FileSystem)(nil)

// NewFileSystem returns a webdav.FileSystem backed by svc.
func NewFileSystem(svc *davfs.Service) *FileSystem {
	return &FileSystem{svc: svc}
}

func (f *FileSystem) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	return toOSError("mkdir", name, f.svc.CreateCollection(ctx, name, nil))
}

// RemoveAll removes name and its subtree. A missing name is not an error.
func (f *FileSystem) RemoveAll(ctx context.Context, name string) error {
	err := f.svc.Delete(ctx, name, nil)
	if errors.Is(err, vfs.ErrNotFound) {
		return nil
	}
	return toOSError("removeall", name, err)
}

func (f *FileSystem) Rename(ctx context.Context, oldName, newName string) error {
	_, err := f.svc.Move(ctx, oldName, newName, false, nil)
	return toOSError("rename", oldName, err)
}

func (f *FileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	info, err := f.svc.Stat(ctx, name)
	if err != nil {
		return nil, toOSError("stat", name, err)
	}
	return fileInfo{info}, nil
}

// OpenFile opens a collection for listing, a document for reading, or a
// document buffer that is committed on Close when flag requests writing.
func (f *FileSystem) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	name = types.CleanPath(name)
	writing := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0

	info, err := f.svc.Stat(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, vfs.ErrNotFound) && flag&os.O_CREATE != 0:
		return f.create(ctx, name)
	default:
		return nil, toOSError("open", name, err)
	}

	if info.IsCollection() {
		if writing {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrInvalid}
		}
		children, err := f.svc.List(ctx, name)
		if err != nil {
			return nil, toOSError("open", name, err)
		}
		return &file{name: name, info: info, children: children}, nil
	}

	if writing && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrExist}
	}

	var data []byte
	if flag&os.O_TRUNC == 0 {
		content, _, err := f.svc.ReadDocument(ctx, name)
		if err != nil {
			return nil, toOSError("open", name, err)
		}
		data = content
	}

	fl := &file{name: name, info: info, data: data}
	if writing {
		fl.commit = f.committer(ctx, name, info.ContentType)
		fl.dirty = flag&os.O_TRUNC != 0
		if flag&os.O_APPEND != 0 {
			fl.pos = int64(len(data))
		}
	}
	return fl, nil
}

func (f *FileSystem) create(ctx context.Context, name string) (webdav.File, error) {
	parent, err := f.svc.Stat(ctx, types.ParentPath(name))
	if err != nil {
		return nil, toOSError("open", name, err)
	}
	if !parent.IsCollection() {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	info := vfs.NodeInfo{
		Name:        types.BaseName(name),
		Path:        name,
		Kind:        types.KindDocument,
		ContentType: contentType,
		ModTime:     time.Now(),
		Filesystem:  parent.Filesystem,
		ReadOnly:    parent.ReadOnly,
	}
	return &file{
		name:   name,
		info:   info,
		dirty:  true,
		commit: f.committer(ctx, name, contentType),
	}, nil
}

func (f *FileSystem) committer(ctx context.Context, name, contentType string) func([]byte) error {
	return func(data []byte) error {
		_, err := f.svc.Write(ctx, name, data, contentType, nil)
		return toOSError("close", name, err)
	}
}

// fileInfo exposes a vfs.NodeInfo as an os.FileInfo with the optional
// webdav.ETager and webdav.ContentTyper interfaces.
type fileInfo struct {
	vfs.NodeInfo
}

var (
	_ webdav.ETager       = fileInfo{}
	_ webdav.ContentTyper = fileInfo{}
)

func (fi fileInfo) Name() string       { return fi.NodeInfo.Name }
func (fi fileInfo) Size() int64        { return fi.NodeInfo.Size }
func (fi fileInfo) ModTime() time.Time { return fi.NodeInfo.ModTime }
func (fi fileInfo) IsDir() bool        { return fi.IsCollection() }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(0o644)
	if fi.IsCollection() {
		mode = fs.ModeDir | 0o755
	}
	if fi.ReadOnly {
		mode &^= 0o222
	}
	return mode
}

func (fi fileInfo) ETag(context.Context) (string, error) {
	if fi.NodeInfo.ETag == "" {
		return "", webdav.ErrNotImplemented
	}
	return fi.NodeInfo.ETag, nil
}

func (fi fileInfo) ContentType(context.Context) (string, error) {
	if fi.NodeInfo.ContentType == "" {
		return "", webdav.ErrNotImplemented
	}
	return fi.NodeInfo.ContentType, nil
}
