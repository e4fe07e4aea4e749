package server

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// lockInfoToProto converts an internal lock snapshot to its wire form.
// Infinite locks carry neither Timeout nor ExpiresAt.
func lockInfoToProto(info *types.LockInfo) *pb.LockInfo {
	if info == nil {
		return nil
	}
	out := &pb.LockInfo{
		Token:     string(info.Token),
		Path:      info.Path,
		Recursive: info.Recursive,
		Owner:     info.Owner,
		Access:    info.Access.String(),
		Share:     info.Share.String(),
		IssuedAt:  timestamppb.New(info.IssuedAt),
	}
	if !info.IsInfinite() {
		out.Timeout = durationpb.New(info.Timeout)
		out.ExpiresAt = timestamppb.New(info.ExpiresAt)
	}
	return out
}

func lockInfosToProto(infos []*types.LockInfo) []*pb.LockInfo {
	out := make([]*pb.LockInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, lockInfoToProto(info))
	}
	return out
}

// nodeInfoToProto converts a filesystem snapshot to its wire form.
func nodeInfoToProto(info vfs.NodeInfo) *pb.NodeInfo {
	return &pb.NodeInfo{
		Name:        info.Name,
		Path:        info.Path,
		Kind:        info.Kind.String(),
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        info.ETag,
		ModTime:     timestamppb.New(info.ModTime),
		Filesystem:  info.Filesystem,
		ReadOnly:    info.ReadOnly,
		MountPoint:  info.MountPoint,
	}
}

func nodeInfosToProto(infos []vfs.NodeInfo) []*pb.NodeInfo {
	out := make([]*pb.NodeInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, nodeInfoToProto(info))
	}
	return out
}

func tokensFromProto(tokens []string) []types.StateToken {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]types.StateToken, len(tokens))
	for i, t := range tokens {
		out[i] = types.StateToken(t)
	}
	return out
}

// requestedTimeout maps the wire timeout fields onto the lock manager's
// convention: zero for the default, InfiniteTimeout for no expiry.
func requestedTimeout(timeout *durationpb.Duration, infinite bool) time.Duration {
	switch {
	case infinite:
		return types.InfiniteTimeout
	case timeout == nil:
		return 0
	default:
		return timeout.AsDuration()
	}
}
