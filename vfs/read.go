package vfs

import (
	"errors"
	"io/fs"
	"slices"

	"github.com/jathurchan/davlock/types"
)

// Stat returns a snapshot of the node at path.
func (fsys *Filesystem) Stat(path string) (NodeInfo, error) {
	res, err := fsys.resolve(OpStat, path)
	if err != nil {
		return NodeInfo{}, err
	}
	res.FS.mu.RLock()
	defer res.FS.mu.RUnlock()
	return infoLocked(res.Node, res.Path, res.IsMountRoot()), nil
}

// ReadDocument returns a copy of the document content at path and its content type.
func (fsys *Filesystem) ReadDocument(path string) ([]byte, string, error) {
	res, err := fsys.resolve(OpRead, path)
	if err != nil {
		return nil, "", err
	}
	d, ok := res.Node.(*Document)
	if !ok {
		return nil, "", newError(OpRead, res.Path, ErrNotDocument)
	}
	res.FS.mu.RLock()
	defer res.FS.mu.RUnlock()
	return slices.Clone(d.content), d.contentType, nil
}

// List returns the children of the collection at path, sorted by name.
// Children that are mount points are reported as the mounted instance's root.
func (fsys *Filesystem) List(path string) ([]NodeInfo, error) {
	res, err := fsys.resolve(OpList, path)
	if err != nil {
		return nil, err
	}
	c, ok := res.Node.(*Collection)
	if !ok {
		return nil, newError(OpList, res.Path, ErrNotCollection)
	}

	owner := res.FS
	owner.mu.RLock()
	names := c.sortedNamesLocked()
	infos := make([]NodeInfo, len(names))
	mounted := make(map[int]*Filesystem)
	for i, name := range names {
		if m, ok := owner.mounts[types.JoinPath(c.path, name)]; ok {
			mounted[i] = m
			continue
		}
		infos[i] = infoLocked(c.children[name], types.JoinPath(res.Path, name), false)
	}
	owner.mu.RUnlock()

	for i, m := range mounted {
		m.mu.RLock()
		infos[i] = infoLocked(m.root, types.JoinPath(res.Path, names[i]), true)
		m.mu.RUnlock()
	}
	return infos, nil
}

// WalkFunc is called for every node visited by Walk. Returning fs.SkipDir
// from a collection skips its children; any other error stops the walk.
type WalkFunc func(info NodeInfo) error

// Walk visits path and its descendants in depth-first, name order, crossing mounts.
func (fsys *Filesystem) Walk(path string, fn WalkFunc) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return err
	}
	err = fsys.walk(info, fn)
	if errors.Is(err, fs.SkipDir) {
		return nil
	}
	return err
}

func (fsys *Filesystem) walk(info NodeInfo, fn WalkFunc) error {
	if err := fn(info); err != nil {
		if errors.Is(err, fs.SkipDir) && info.IsCollection() {
			return nil
		}
		return err
	}
	if !info.IsCollection() {
		return nil
	}

	children, err := fsys.List(info.Path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	for _, child := range children {
		if err := fsys.walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}
