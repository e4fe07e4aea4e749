package types

import (
	"path"
	"strings"
)

// CleanPath normalizes a slash-delimited resource path.
// The result is always absolute, never has a trailing slash (except for the
// root "/") and has no "." or ".." elements; ".." above the root is clamped.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// SplitPath returns the non-empty segments of a cleaned path.
// The root path yields no segments.
func SplitPath(p string) []string {
	p = CleanPath(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// JoinPath appends segments to a base path and cleans the result.
func JoinPath(base string, segments ...string) string {
	return CleanPath(path.Join(append([]string{CleanPath(base)}, segments...)...))
}

// ParentPath returns the parent of p. The parent of the root is the root.
func ParentPath(p string) string {
	return path.Dir(CleanPath(p))
}

// BaseName returns the last segment of p, or "/" for the root.
func BaseName(p string) string {
	return path.Base(CleanPath(p))
}

// IsAncestor reports whether ancestor is a strict ancestor of p.
// Both paths are compared in cleaned form.
func IsAncestor(ancestor, p string) bool {
	ancestor, p = CleanPath(ancestor), CleanPath(p)
	if ancestor == p {
		return false
	}
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// PathsOverlap reports whether a lock on a (recursive if aRecursive) and a lock
// on b (recursive if bRecursive) cover at least one common resource.
func PathsOverlap(a string, aRecursive bool, b string, bRecursive bool) bool {
	a, b = CleanPath(a), CleanPath(b)
	switch {
	case a == b:
		return true
	case aRecursive && IsAncestor(a, b):
		return true
	case bRecursive && IsAncestor(b, a):
		return true
	default:
		return false
	}
}
