package vfs

import (
	"github.com/jathurchan/davlock/types"
)

// Resolution is the outcome of resolving a path through the mount table.
type Resolution struct {
	// FS is the instance that owns Node. Permission checks use its flag.
	FS *Filesystem

	// LocalPath is Node's path inside FS.
	LocalPath string

	// Path is the cleaned path that was resolved.
	Path string

	Node Node

	// host and hostPath name the mount entry when Node is a mounted root.
	host     *Filesystem
	hostPath string
}

// IsMountRoot reports whether the resolved node is the root of an instance
// mounted beneath another one.
func (r *Resolution) IsMountRoot() bool {
	return r.host != nil
}

// Resolve walks path segment by segment from the instance root. Whenever the
// accumulated local path is a mount point the walk continues from the mounted
// instance's root. Resolving the same path twice yields the same node.
func (fsys *Filesystem) Resolve(path string) (*Resolution, error) {
	return fsys.resolve(OpResolve, path)
}

func (fsys *Filesystem) resolve(op, path string) (*Resolution, error) {
	full := types.CleanPath(path)
	res := &Resolution{FS: fsys, LocalPath: "/", Path: full}

	cur := fsys
	cur.mu.RLock()
	var node Node = cur.root

	for _, seg := range types.SplitPath(full) {
		c, ok := node.(*Collection)
		if !ok {
			cur.mu.RUnlock()
			return nil, newError(op, full, ErrNotFound)
		}
		child, ok := c.children[seg]
		if !ok {
			cur.mu.RUnlock()
			return nil, newError(op, full, ErrNotFound)
		}

		local := types.JoinPath(res.LocalPath, seg)
		if mounted, ok := cur.mounts[local]; ok {
			cur.mu.RUnlock()
			res.host, res.hostPath = cur, local
			cur = mounted
			cur.mu.RLock()
			node = cur.root
			res.FS, res.LocalPath = cur, "/"
			continue
		}

		node = child
		res.LocalPath = local
		res.host, res.hostPath = nil, ""
	}
	cur.mu.RUnlock()

	res.Node = node
	return res, nil
}

// resolveParent resolves the parent collection of path and returns it with
// the final path segment.
func (fsys *Filesystem) resolveParent(op, full string) (*Resolution, string, error) {
	res, err := fsys.resolve(op, types.ParentPath(full))
	if err != nil {
		return nil, "", newError(op, full, ErrNotFound)
	}
	if _, ok := res.Node.(*Collection); !ok {
		return nil, "", newError(op, full, ErrNotCollection)
	}
	return res, types.BaseName(full), nil
}
