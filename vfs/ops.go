package vfs

import (
	"github.com/jathurchan/davlock/types"
)

// CreateDocument creates a document at path. The parent must be an existing
// collection of a writable instance and the name must be free.
func (fsys *Filesystem) CreateDocument(path string, content []byte, contentType string) error {
	full := types.CleanPath(path)
	if full == "/" {
		return newError(OpCreateDocument, full, ErrAlreadyExists)
	}
	res, name, err := fsys.resolveParent(OpCreateDocument, full)
	if err != nil {
		return err
	}

	owner := res.FS
	owner.mu.Lock()
	defer owner.mu.Unlock()

	parent, err := owner.writableParentLocked(OpCreateDocument, full, res.LocalPath)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return newError(OpCreateDocument, full, ErrAlreadyExists)
	}

	now := owner.clock.Now()
	parent.children[name] = newDocument(owner, types.JoinPath(res.LocalPath, name), content, contentType, now)
	parent.modTime = now

	owner.logger.Debugw("document created", "path", full, "size", len(content))
	return nil
}

// CreateCollection creates an empty collection at path.
func (fsys *Filesystem) CreateCollection(path string) error {
	full := types.CleanPath(path)
	if full == "/" {
		return newError(OpCreateCollection, full, ErrAlreadyExists)
	}
	res, name, err := fsys.resolveParent(OpCreateCollection, full)
	if err != nil {
		return err
	}

	owner := res.FS
	owner.mu.Lock()
	defer owner.mu.Unlock()

	parent, err := owner.writableParentLocked(OpCreateCollection, full, res.LocalPath)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return newError(OpCreateCollection, full, ErrAlreadyExists)
	}

	now := owner.clock.Now()
	parent.children[name] = newCollection(owner, types.JoinPath(res.LocalPath, name), now)
	parent.modTime = now

	owner.logger.Debugw("collection created", "path", full)
	return nil
}

// Write creates the document at path or replaces its content.
// It reports whether a new document was created.
func (fsys *Filesystem) Write(path string, content []byte, contentType string) (bool, error) {
	full := types.CleanPath(path)
	if full == "/" {
		return false, newError(OpWrite, full, ErrNotDocument)
	}
	res, name, err := fsys.resolveParent(OpWrite, full)
	if err != nil {
		return false, err
	}

	owner := res.FS
	owner.mu.Lock()
	defer owner.mu.Unlock()

	parent, err := owner.writableParentLocked(OpWrite, full, res.LocalPath)
	if err != nil {
		return false, err
	}

	now := owner.clock.Now()
	switch existing := parent.children[name].(type) {
	case nil:
		parent.children[name] = newDocument(owner, types.JoinPath(res.LocalPath, name), content, contentType, now)
		parent.modTime = now
		owner.logger.Debugw("document created", "path", full, "size", len(content))
		return true, nil
	case *Document:
		existing.setContentLocked(content, contentType, now)
		owner.logger.Debugw("document replaced", "path", full, "size", len(content))
		return false, nil
	default:
		return false, newError(OpWrite, full, ErrNotDocument)
	}
}

// Delete removes the node at path, including the whole subtree of a collection.
// Mount points and collections containing one cannot be deleted.
func (fsys *Filesystem) Delete(path string) error {
	full := types.CleanPath(path)
	res, err := fsys.resolve(OpDelete, full)
	if err != nil {
		return err
	}
	if res.IsMountRoot() {
		return newError(OpDelete, full, ErrMountPoint)
	}
	if res.LocalPath == "/" {
		return newError(OpDelete, full, ErrInvalidPath)
	}

	owner := res.FS
	owner.mu.Lock()
	defer owner.mu.Unlock()

	parent, err := owner.writableParentLocked(OpDelete, full, types.ParentPath(res.LocalPath))
	if err != nil {
		return err
	}
	name := types.BaseName(res.LocalPath)
	if _, ok := parent.children[name]; !ok {
		return newError(OpDelete, full, ErrNotFound)
	}
	if owner.hasMountAtOrBelowLocked(res.LocalPath) {
		return newError(OpDelete, full, ErrMountPoint)
	}

	delete(parent.children, name)
	parent.modTime = owner.clock.Now()

	owner.logger.Debugw("node deleted", "path", full)
	return nil
}

// Move renames the node at src to dst. Both must belong to the same instance.
// An existing destination is replaced only when overwrite is set; Move
// reports whether that happened.
func (fsys *Filesystem) Move(src, dst string, overwrite bool) (bool, error) {
	srcFull, dstFull := types.CleanPath(src), types.CleanPath(dst)
	if srcFull == dstFull || types.IsAncestor(srcFull, dstFull) || dstFull == "/" {
		return false, newError(OpMove, dstFull, ErrInvalidPath)
	}

	srcRes, err := fsys.resolve(OpMove, srcFull)
	if err != nil {
		return false, err
	}
	if srcRes.IsMountRoot() {
		return false, newError(OpMove, srcFull, ErrMountPoint)
	}
	if srcRes.LocalPath == "/" {
		return false, newError(OpMove, srcFull, ErrInvalidPath)
	}
	dstRes, dstName, err := fsys.resolveParent(OpMove, dstFull)
	if err != nil {
		return false, err
	}
	if dstRes.FS != srcRes.FS {
		return false, newError(OpMove, dstFull, ErrCrossMount)
	}

	owner := srcRes.FS
	owner.mu.Lock()
	defer owner.mu.Unlock()

	srcParent, err := owner.writableParentLocked(OpMove, srcFull, types.ParentPath(srcRes.LocalPath))
	if err != nil {
		return false, err
	}
	srcName := types.BaseName(srcRes.LocalPath)
	node, ok := srcParent.children[srcName]
	if !ok {
		return false, newError(OpMove, srcFull, ErrNotFound)
	}
	if owner.hasMountAtOrBelowLocked(srcRes.LocalPath) {
		return false, newError(OpMove, srcFull, ErrMountPoint)
	}

	dstParent, err := owner.collectionLocked(dstRes.LocalPath)
	if err != nil {
		return false, newError(OpMove, dstFull, err)
	}
	dstLocal := types.JoinPath(dstRes.LocalPath, dstName)

	replaced := false
	if _, exists := dstParent.children[dstName]; exists {
		if owner.hasMountAtOrBelowLocked(dstLocal) {
			return false, newError(OpMove, dstFull, ErrMountPoint)
		}
		if !overwrite {
			return false, newError(OpMove, dstFull, ErrAlreadyExists)
		}
		delete(dstParent.children, dstName)
		replaced = true
	}

	now := owner.clock.Now()
	delete(srcParent.children, srcName)
	repathLocked(node, dstLocal)
	dstParent.children[dstName] = node
	srcParent.modTime = now
	dstParent.modTime = now

	owner.logger.Debugw("node moved", "from", srcFull, "to", dstFull, "replaced", replaced)
	return replaced, nil
}

// writableParentLocked re-reads the parent collection under the write lock
// and rejects the mutation if this instance is read-only.
func (fsys *Filesystem) writableParentLocked(op, full, parentLocal string) (*Collection, error) {
	if fsys.readOnly {
		return nil, newError(op, full, ErrUnauthorized)
	}
	parent, err := fsys.collectionLocked(parentLocal)
	if err != nil {
		return nil, newError(op, full, err)
	}
	return parent, nil
}
