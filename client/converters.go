package client

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"

	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

var errEmptyResponse = errors.New("client: server returned an empty response")

// lockRequestToProto builds the wire request for a Lock call.
func lockRequestToProto(path string, opts LockOptions) *pb.LockRequest {
	req := &pb.LockRequest{
		Path:      path,
		Recursive: opts.Recursive,
		Owner:     opts.Owner,
		Access:    opts.Access.String(),
		Share:     opts.Share.String(),
	}
	req.Timeout, req.Infinite = timeoutToProto(opts.Timeout)
	return req
}

// timeoutToProto maps a requested lease onto the wire fields: nil for the
// server default, Infinite for no expiry.
func timeoutToProto(timeout time.Duration) (*durationpb.Duration, bool) {
	switch {
	case timeout == types.InfiniteTimeout:
		return nil, true
	case timeout > 0:
		return durationpb.New(timeout), false
	default:
		return nil, false
	}
}

// protoToLockInfo converts a wire lock to the internal LockInfo type.
// A missing Timeout marks an infinite lock.
func protoToLockInfo(p *pb.LockInfo) (*types.LockInfo, error) {
	if p == nil {
		return nil, errEmptyResponse
	}
	access, err := types.ParseAccessType(p.Access)
	if err != nil {
		return nil, fmt.Errorf("client: lock %s: %w", p.Token, err)
	}
	share, err := types.ParseShareMode(p.Share)
	if err != nil {
		return nil, fmt.Errorf("client: lock %s: %w", p.Token, err)
	}

	info := &types.LockInfo{
		Token:     types.StateToken(p.Token),
		Path:      p.Path,
		Recursive: p.Recursive,
		Owner:     p.Owner,
		Access:    access,
		Share:     share,
		Timeout:   types.InfiniteTimeout,
		IssuedAt:  p.IssuedAt.AsTime(),
	}
	if p.Timeout != nil {
		info.Timeout = p.Timeout.AsDuration()
	}
	if p.ExpiresAt != nil {
		info.ExpiresAt = p.ExpiresAt.AsTime()
	}
	return info, nil
}

func protoToLockInfos(ps []*pb.LockInfo) ([]*types.LockInfo, error) {
	out := make([]*types.LockInfo, 0, len(ps))
	for _, p := range ps {
		info, err := protoToLockInfo(p)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// protoToNodeInfo converts a wire node snapshot to vfs.NodeInfo.
func protoToNodeInfo(p *pb.NodeInfo) (vfs.NodeInfo, error) {
	if p == nil {
		return vfs.NodeInfo{}, errEmptyResponse
	}
	kind, err := types.ParseNodeKind(p.Kind)
	if err != nil {
		return vfs.NodeInfo{}, fmt.Errorf("client: node %s: %w", p.Path, err)
	}
	info := vfs.NodeInfo{
		Name:        p.Name,
		Path:        p.Path,
		Kind:        kind,
		Size:        p.Size,
		ContentType: p.ContentType,
		ETag:        p.ETag,
		Filesystem:  p.Filesystem,
		ReadOnly:    p.ReadOnly,
		MountPoint:  p.MountPoint,
	}
	if p.ModTime != nil {
		info.ModTime = p.ModTime.AsTime()
	}
	return info, nil
}

func protoToNodeInfos(ps []*pb.NodeInfo) ([]vfs.NodeInfo, error) {
	out := make([]vfs.NodeInfo, 0, len(ps))
	for _, p := range ps {
		info, err := protoToNodeInfo(p)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func tokensToProto(tokens []types.StateToken) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	return out
}
