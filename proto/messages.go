package proto

import (
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// LockRequest asks for a new lock on Path.
type LockRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
	Owner     string `json:"owner,omitempty"`

	// Access is "write" (default when empty) or "read".
	Access string `json:"access,omitempty"`

	// Share is "exclusive" (default when empty) or "shared".
	Share string `json:"share,omitempty"`

	// Timeout is the requested lease. Nil means the server default.
	Timeout *durationpb.Duration `json:"timeout,omitempty"`

	// Infinite requests a lock that never expires. Timeout is ignored.
	Infinite bool `json:"infinite,omitempty"`
}

type LockResponse struct {
	Lock *LockInfo `json:"lock"`
}

type RefreshRequest struct {
	Token    string               `json:"token"`
	Timeout  *durationpb.Duration `json:"timeout,omitempty"`
	Infinite bool                 `json:"infinite,omitempty"`
}

type RefreshResponse struct {
	Lock *LockInfo `json:"lock"`
}

type UnlockRequest struct {
	Token string `json:"token"`
}

type UnlockResponse struct{}

type GetLockInfoRequest struct {
	Token string `json:"token"`
}

type GetLockInfoResponse struct {
	Lock *LockInfo `json:"lock"`
}

// GetLocksRequest lists active locks. Empty filters match every lock.
type GetLocksRequest struct {
	PathPrefix string `json:"path_prefix,omitempty"`
	Owner      string `json:"owner,omitempty"`
	// ExpiringWithin keeps only finite locks that expire within this window.
	ExpiringWithin *durationpb.Duration `json:"expiring_within,omitempty"`
	Limit          int32                `json:"limit,omitempty"`
	Offset         int32                `json:"offset,omitempty"`
}

type GetLocksResponse struct {
	Locks      []*LockInfo `json:"locks"`
	TotalCount int32       `json:"total_count"`
	HasMore    bool        `json:"has_more"`
}

// LockInfo is the wire form of an active lock.
type LockInfo struct {
	Token     string `json:"token"`
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
	Owner     string `json:"owner,omitempty"`
	Access    string `json:"access"`
	Share     string `json:"share"`

	// Timeout is nil for infinite locks.
	Timeout  *durationpb.Duration   `json:"timeout,omitempty"`
	IssuedAt *timestamppb.Timestamp `json:"issued_at"`

	// ExpiresAt is nil for infinite locks.
	ExpiresAt *timestamppb.Timestamp `json:"expires_at,omitempty"`
}

type StatRequest struct {
	Path string `json:"path"`
}

type StatResponse struct {
	Node *NodeInfo `json:"node"`
}

type ListRequest struct {
	Path string `json:"path"`
}

type ListResponse struct {
	Nodes []*NodeInfo `json:"nodes"`
}

// NodeInfo is the wire form of a filesystem node snapshot.
type NodeInfo struct {
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	Kind        string                 `json:"kind"`
	Size        int64                  `json:"size,omitempty"`
	ContentType string                 `json:"content_type,omitempty"`
	ETag        string                 `json:"etag,omitempty"`
	ModTime     *timestamppb.Timestamp `json:"mod_time"`
	Filesystem  string                 `json:"filesystem"`
	ReadOnly    bool                   `json:"read_only,omitempty"`
	MountPoint  bool                   `json:"mount_point,omitempty"`
}

// CreateDocumentRequest creates a document. Tokens are the lock tokens
// presented for the mutation.
type CreateDocumentRequest struct {
	Path        string   `json:"path"`
	Content     []byte   `json:"content,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Tokens      []string `json:"tokens,omitempty"`
}

type CreateDocumentResponse struct {
	Node *NodeInfo `json:"node"`
}

type CreateCollectionRequest struct {
	Path   string   `json:"path"`
	Tokens []string `json:"tokens,omitempty"`
}

type CreateCollectionResponse struct {
	Node *NodeInfo `json:"node"`
}

type DeleteRequest struct {
	Path   string   `json:"path"`
	Tokens []string `json:"tokens,omitempty"`
}

type DeleteResponse struct{}
