package vfs

import (
	"maps"
	"sort"

	"github.com/jathurchan/davlock/types"
)

// MountInfo describes one entry of the mount table as seen from the instance
// the listing started from.
type MountInfo struct {
	// Path is the mount point in the listing instance's namespace.
	Path string `json:"path" yaml:"path"`

	// Filesystem is the name of the mounted instance.
	Filesystem string `json:"filesystem" yaml:"filesystem"`

	ReadOnly bool `json:"read_only" yaml:"readOnly"`
}

// Mount grafts child's root beneath the collection at hostPath. The path may
// itself lie beneath an earlier mount, in which case the entry is recorded in
// the mount table of the instance that owns that collection.
func (fsys *Filesystem) Mount(hostPath string, child *Filesystem) error {
	full := types.CleanPath(hostPath)
	if child == nil {
		return newError(OpMount, full, ErrInvalidPath)
	}

	res, err := fsys.resolve(OpMount, full)
	if err != nil {
		return err
	}
	if _, ok := res.Node.(*Collection); !ok {
		return newError(OpMount, full, ErrNotCollection)
	}
	if res.IsMountRoot() {
		return newError(OpMount, full, ErrMountExists)
	}
	if res.LocalPath == "/" {
		return newError(OpMount, full, ErrInvalidPath)
	}

	owner := res.FS
	if child.reaches(owner) {
		return newError(OpMount, full, ErrMountCycle)
	}
	childReadOnly := child.IsReadOnly()

	owner.mu.Lock()
	if _, ok := owner.mounts[res.LocalPath]; ok {
		owner.mu.Unlock()
		return newError(OpMount, full, ErrMountExists)
	}
	if _, err := owner.collectionLocked(res.LocalPath); err != nil {
		owner.mu.Unlock()
		return newError(OpMount, full, err)
	}
	owner.mounts[res.LocalPath] = child
	owner.mu.Unlock()

	owner.logger.Infow("filesystem mounted",
		"path", full,
		"localPath", res.LocalPath,
		"child", child.name,
		"childReadOnly", childReadOnly,
	)
	return nil
}

// Unmount removes the mount whose root resolves at path.
func (fsys *Filesystem) Unmount(path string) error {
	full := types.CleanPath(path)
	res, err := fsys.resolve(OpUnmount, full)
	if err != nil {
		return err
	}
	if !res.IsMountRoot() {
		return newError(OpUnmount, full, ErrNotMounted)
	}

	host := res.host
	host.mu.Lock()
	if host.mounts[res.hostPath] != res.FS {
		host.mu.Unlock()
		return newError(OpUnmount, full, ErrNotMounted)
	}
	delete(host.mounts, res.hostPath)
	host.mu.Unlock()

	host.logger.Infow("filesystem unmounted", "path", full, "child", res.FS.name)
	return nil
}

// Mounts lists every mount reachable from this instance, sorted by path.
func (fsys *Filesystem) Mounts() []MountInfo {
	var out []MountInfo
	fsys.collectMounts("/", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (fsys *Filesystem) collectMounts(prefix string, out *[]MountInfo) {
	fsys.mu.RLock()
	entries := maps.Clone(fsys.mounts)
	fsys.mu.RUnlock()

	for local, child := range entries {
		full := types.JoinPath(prefix, local)
		*out = append(*out, MountInfo{Path: full, Filesystem: child.name, ReadOnly: child.IsReadOnly()})
		child.collectMounts(full, out)
	}
}

// reaches reports whether target is fsys or is mounted somewhere beneath it.
func (fsys *Filesystem) reaches(target *Filesystem) bool {
	if fsys == target {
		return true
	}
	fsys.mu.RLock()
	children := make([]*Filesystem, 0, len(fsys.mounts))
	for _, child := range fsys.mounts {
		children = append(children, child)
	}
	fsys.mu.RUnlock()

	for _, child := range children {
		if child.reaches(target) {
			return true
		}
	}
	return false
}
