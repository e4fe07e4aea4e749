package client

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"

	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// Operation names used for metrics and error context.
const (
	opLock             = "lock"
	opRefresh          = "refresh"
	opUnlock           = "unlock"
	opGetLockInfo      = "get_lock_info"
	opGetLocks         = "get_locks"
	opStat             = "stat"
	opList             = "list"
	opCreateDocument   = "create_document"
	opCreateCollection = "create_collection"
	opDelete           = "delete"
)

// davLockClient implements Client on top of baseClient.
type davLockClient struct {
	base *baseClient
}

// New creates a Client for cfg.Endpoint.
func New(cfg Config) (Client, error) {
	base, err := newBaseClient(cfg)
	if err != nil {
		return nil, err
	}
	return &davLockClient{base: base}, nil
}

func (c *davLockClient) Lock(ctx context.Context, path string, opts LockOptions) (*types.LockInfo, error) {
	var resp *pb.LockResponse
	err := c.base.invoke(ctx, opLock, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.Lock(ctx, lockRequestToProto(path, opts))
		return err
	})
	if err != nil {
		return nil, err
	}
	return protoToLockInfo(resp.Lock)
}

func (c *davLockClient) Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error) {
	req := &pb.RefreshRequest{Token: string(token)}
	req.Timeout, req.Infinite = timeoutToProto(timeout)

	var resp *pb.RefreshResponse
	err := c.base.invoke(ctx, opRefresh, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.Refresh(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return protoToLockInfo(resp.Lock)
}

func (c *davLockClient) Unlock(ctx context.Context, token types.StateToken) error {
	return c.base.invoke(ctx, opUnlock, func(ctx context.Context, rpc pb.DavLockClient) error {
		_, err := rpc.Unlock(ctx, &pb.UnlockRequest{Token: string(token)})
		return err
	})
}

func (c *davLockClient) LockInfo(ctx context.Context, token types.StateToken) (*types.LockInfo, error) {
	var resp *pb.GetLockInfoResponse
	err := c.base.invoke(ctx, opGetLockInfo, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.GetLockInfo(ctx, &pb.GetLockInfoRequest{Token: string(token)})
		return err
	})
	if err != nil {
		return nil, err
	}
	return protoToLockInfo(resp.Lock)
}

func (c *davLockClient) Locks(ctx context.Context, q LocksQuery) (*LocksPage, error) {
	req := &pb.GetLocksRequest{
		PathPrefix: q.PathPrefix,
		Owner:      q.Owner,
		Limit:      int32(q.Limit),
		Offset:     int32(q.Offset),
	}
	if q.ExpiringWithin > 0 {
		req.ExpiringWithin = durationpb.New(q.ExpiringWithin)
	}

	var resp *pb.GetLocksResponse
	err := c.base.invoke(ctx, opGetLocks, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.GetLocks(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	locks, err := protoToLockInfos(resp.Locks)
	if err != nil {
		return nil, err
	}
	return &LocksPage{
		Locks:   locks,
		Total:   int(resp.TotalCount),
		HasMore: resp.HasMore,
	}, nil
}

func (c *davLockClient) Stat(ctx context.Context, path string) (vfs.NodeInfo, error) {
	var resp *pb.StatResponse
	err := c.base.invoke(ctx, opStat, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.Stat(ctx, &pb.StatRequest{Path: path})
		return err
	})
	if err != nil {
		return vfs.NodeInfo{}, err
	}
	return protoToNodeInfo(resp.Node)
}

func (c *davLockClient) List(ctx context.Context, path string) ([]vfs.NodeInfo, error) {
	var resp *pb.ListResponse
	err := c.base.invoke(ctx, opList, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.List(ctx, &pb.ListRequest{Path: path})
		return err
	})
	if err != nil {
		return nil, err
	}
	return protoToNodeInfos(resp.Nodes)
}

func (c *davLockClient) CreateDocument(ctx context.Context, path string, content []byte, contentType string, tokens ...types.StateToken) (vfs.NodeInfo, error) {
	req := &pb.CreateDocumentRequest{
		Path:        path,
		Content:     content,
		ContentType: contentType,
		Tokens:      tokensToProto(tokens),
	}

	var resp *pb.CreateDocumentResponse
	err := c.base.invoke(ctx, opCreateDocument, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.CreateDocument(ctx, req)
		return err
	})
	if err != nil {
		return vfs.NodeInfo{}, err
	}
	return protoToNodeInfo(resp.Node)
}

func (c *davLockClient) CreateCollection(ctx context.Context, path string, tokens ...types.StateToken) (vfs.NodeInfo, error) {
	req := &pb.CreateCollectionRequest{
		Path:   path,
		Tokens: tokensToProto(tokens),
	}

	var resp *pb.CreateCollectionResponse
	err := c.base.invoke(ctx, opCreateCollection, func(ctx context.Context, rpc pb.DavLockClient) error {
		var err error
		resp, err = rpc.CreateCollection(ctx, req)
		return err
	})
	if err != nil {
		return vfs.NodeInfo{}, err
	}
	return protoToNodeInfo(resp.Node)
}

func (c *davLockClient) Delete(ctx context.Context, path string, tokens ...types.StateToken) error {
	req := &pb.DeleteRequest{
		Path:   path,
		Tokens: tokensToProto(tokens),
	}
	return c.base.invoke(ctx, opDelete, func(ctx context.Context, rpc pb.DavLockClient) error {
		_, err := rpc.Delete(ctx, req)
		return err
	})
}

func (c *davLockClient) SetRetryPolicy(policy RetryPolicy) {
	c.base.setRetryPolicy(policy)
}

func (c *davLockClient) Metrics() Metrics {
	return c.base.metrics
}

func (c *davLockClient) Close() error {
	return c.base.close()
}
