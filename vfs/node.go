package vfs

import (
	"fmt"
	"slices"
	"time"

	"github.com/jathurchan/davlock/types"
)

// Node is an addressable unit of a filesystem instance: a *Collection or a *Document.
//
// A node belongs to exactly one Filesystem for its whole life. It does not
// reference its parent; the parent is found by path within the same instance.
type Node interface {
	// Name is the last segment of the node's path, or "/" for a root.
	Name() string

	// Path is the node's path local to its owning filesystem.
	Path() string

	Kind() types.NodeKind

	// ParentPath is the local path of the parent collection. A root is its own parent.
	ParentPath() string

	ModTime() time.Time

	// Filesystem returns the owning instance.
	Filesystem() *Filesystem

	base() *nodeBase
}

type nodeBase struct {
	fs      *Filesystem
	name    string
	path    string
	modTime time.Time
}

func (b *nodeBase) base() *nodeBase { return b }

func (b *nodeBase) Filesystem() *Filesystem { return b.fs }

func (b *nodeBase) Name() string {
	b.fs.mu.RLock()
	defer b.fs.mu.RUnlock()
	return b.name
}

func (b *nodeBase) Path() string {
	b.fs.mu.RLock()
	defer b.fs.mu.RUnlock()
	return b.path
}

func (b *nodeBase) ParentPath() string {
	return types.ParentPath(b.Path())
}

func (b *nodeBase) ModTime() time.Time {
	b.fs.mu.RLock()
	defer b.fs.mu.RUnlock()
	return b.modTime
}

// Collection owns a set of uniquely named children.
type Collection struct {
	nodeBase
	children map[string]Node
}

var _ Node = (*Collection)(nil)

func newCollection(fs *Filesystem, path string, now time.Time) *Collection {
	return &Collection{
		nodeBase: nodeBase{fs: fs, name: types.BaseName(path), path: path, modTime: now},
		children: make(map[string]Node),
	}
}

func (c *Collection) Kind() types.NodeKind { return types.KindCollection }

// Len returns the number of direct children.
func (c *Collection) Len() int {
	c.fs.mu.RLock()
	defer c.fs.mu.RUnlock()
	return len(c.children)
}

// Child returns the direct child with the given name.
func (c *Collection) Child(name string) (Node, bool) {
	c.fs.mu.RLock()
	defer c.fs.mu.RUnlock()
	n, ok := c.children[name]
	return n, ok
}

// sortedNamesLocked returns the child names in ascending order.
func (c *Collection) sortedNamesLocked() []string {
	names := make([]string, 0, len(c.children))
	for name := range c.children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Document holds byte content and its content type.
type Document struct {
	nodeBase
	content     []byte
	contentType string
	etag        string
}

var _ Node = (*Document)(nil)

func newDocument(fs *Filesystem, path string, content []byte, contentType string, now time.Time) *Document {
	d := &Document{nodeBase: nodeBase{fs: fs, name: types.BaseName(path), path: path}}
	d.setContentLocked(content, contentType, now)
	return d
}

func (d *Document) Kind() types.NodeKind { return types.KindDocument }

// Size returns the content length in bytes.
func (d *Document) Size() int64 {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()
	return int64(len(d.content))
}

// ContentType returns the stored content type.
func (d *Document) ContentType() string {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()
	return d.contentType
}

// ETag returns a strong entity tag that changes whenever the content is replaced.
func (d *Document) ETag() string {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()
	return d.etag
}

func (d *Document) setContentLocked(content []byte, contentType string, now time.Time) {
	if contentType == "" {
		contentType = DefaultContentType
	}
	d.content = slices.Clone(content)
	d.contentType = contentType
	d.modTime = now
	d.etag = fmt.Sprintf(`"%x%x"`, now.UnixNano(), len(d.content))
}

// DefaultContentType is stored for documents created without a content type.
const DefaultContentType = "application/octet-stream"

// NodeInfo is a snapshot of a node as seen through the mount table.
type NodeInfo struct {
	// Name is the last segment of Path.
	Name string `json:"name" yaml:"name"`

	// Path is the full path in the namespace the lookup started from.
	Path string `json:"path" yaml:"path"`

	Kind        types.NodeKind `json:"kind" yaml:"kind"`
	Size        int64          `json:"size" yaml:"size"`
	ContentType string         `json:"content_type,omitempty" yaml:"contentType,omitempty"`
	ETag        string         `json:"etag,omitempty" yaml:"etag,omitempty"`
	ModTime     time.Time      `json:"mod_time" yaml:"modTime"`

	// Filesystem is the name of the owning instance.
	Filesystem string `json:"filesystem" yaml:"filesystem"`

	// ReadOnly is the owning instance's flag at the time of the snapshot.
	ReadOnly bool `json:"read_only" yaml:"readOnly"`

	// MountPoint reports whether the node is the root of a mounted instance.
	MountPoint bool `json:"mount_point,omitempty" yaml:"mountPoint,omitempty"`
}

// IsCollection reports whether the node is a collection.
func (i NodeInfo) IsCollection() bool { return i.Kind == types.KindCollection }

// infoLocked snapshots n. The owning filesystem's lock must be held.
func infoLocked(n Node, fullPath string, mountPoint bool) NodeInfo {
	b := n.base()
	info := NodeInfo{
		Name:       types.BaseName(fullPath),
		Path:       fullPath,
		Kind:       n.Kind(),
		ModTime:    b.modTime,
		Filesystem: b.fs.name,
		ReadOnly:   b.fs.readOnly,
		MountPoint: mountPoint,
	}
	if d, ok := n.(*Document); ok {
		info.Size = int64(len(d.content))
		info.ContentType = d.contentType
		info.ETag = d.etag
	}
	return info
}

// repathLocked rewrites the stored paths of n and its subtree after a move.
func repathLocked(n Node, path string) {
	b := n.base()
	b.path = path
	b.name = types.BaseName(path)
	if c, ok := n.(*Collection); ok {
		for name, child := range c.children {
			repathLocked(child, types.JoinPath(path, name))
		}
	}
}
