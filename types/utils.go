package types

import (
	"fmt"
	"strings"
)

// String helps with making access types readable in logs and debug output.
func (a AccessType) String() string {
	switch a {
	case AccessWrite:
		return "write"
	case AccessRead:
		return "read"
	default:
		return "unknown"
	}
}

// IsValid checks if the access type is one of the defined values.
func (a AccessType) IsValid() bool {
	return a == AccessWrite || a == AccessRead
}

// ParseAccessType maps "read" or "write" (case-insensitive) to an AccessType.
// An empty string defaults to AccessWrite, the only access type WebDAV defines.
func ParseAccessType(s string) (AccessType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "write":
		return AccessWrite, nil
	case "read":
		return AccessRead, nil
	default:
		return AccessWrite, fmt.Errorf("types: unknown access type %q", s)
	}
}

// String helps with making share modes readable in logs and debug output.
func (m ShareMode) String() string {
	switch m {
	case ShareExclusive:
		return "exclusive"
	case ShareShared:
		return "shared"
	default:
		return "unknown"
	}
}

// IsValid checks if the share mode is one of the defined values.
func (m ShareMode) IsValid() bool {
	return m == ShareExclusive || m == ShareShared
}

// ParseShareMode maps a WebDAV lock scope ("exclusive" or "shared") to a ShareMode.
func ParseShareMode(s string) (ShareMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclusive":
		return ShareExclusive, nil
	case "shared":
		return ShareShared, nil
	default:
		return ShareExclusive, fmt.Errorf("types: unknown lock scope %q", s)
	}
}

// String helps with making node kinds readable in logs and debug output.
func (k NodeKind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// IsValid checks if the node kind is one of the defined values.
func (k NodeKind) IsValid() bool {
	return k == KindCollection || k == KindDocument
}

// ParseNodeKind maps "collection" or "document" (case-insensitive) to a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collection":
		return KindCollection, nil
	case "document":
		return KindDocument, nil
	default:
		return KindDocument, fmt.Errorf("types: unknown node kind %q", s)
	}
}

// String helps with making release reasons readable in logs and debug output.
func (r ReleaseReason) String() string {
	switch r {
	case ReleaseExplicit:
		return "unlocked"
	case ReleaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}
