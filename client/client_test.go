package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/jathurchan/davlock/server"
	"github.com/jathurchan/davlock/testutil"
	"github.com/jathurchan/davlock/types"
)

func TestClient_LockLifecycle(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	held, err := c.Lock(ctx, "/docs", LockOptions{Recursive: true, Owner: "alice", Timeout: time.Minute})
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, string(held.Token), "opaquelocktoken:")
	testutil.AssertEqual(t, "/docs", held.Path)
	testutil.AssertEqual(t, types.AccessWrite, held.Access)
	testutil.AssertEqual(t, types.ShareExclusive, held.Share)
	testutil.AssertEqual(t, time.Minute, held.Timeout)
	testutil.AssertFalse(t, held.IsInfinite())

	t.Run("conflicting lock", func(t *testing.T) {
		_, err := c.Lock(ctx, "/docs/a.txt", LockOptions{})
		testutil.AssertErrorIs(t, err, ErrLocked)

		var ce *ClientError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *ClientError, got %T", err)
		}
		testutil.AssertEqual(t, codes.Aborted, ce.Code)
		testutil.AssertContains(t, ce.Message, string(held.Token))
	})

	t.Run("mutations need the token", func(t *testing.T) {
		_, err := c.CreateDocument(ctx, "/docs/b.txt", []byte("b"), "text/plain")
		testutil.AssertErrorIs(t, err, ErrLocked)

		node, err := c.CreateDocument(ctx, "/docs/b.txt", []byte("bee"), "text/plain", held.Token)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, types.KindDocument, node.Kind)
		testutil.AssertEqual(t, int64(3), node.Size)

		dir, err := c.CreateCollection(ctx, "/docs/sub", held.Token)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, types.KindCollection, dir.Kind)
	})

	t.Run("info and refresh", func(t *testing.T) {
		info, err := c.LockInfo(ctx, held.Token)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, "alice", info.Owner)
		testutil.AssertTrue(t, info.Recursive)

		refreshed, err := c.Refresh(ctx, held.Token, time.Hour)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, time.Hour, refreshed.Timeout)
	})

	t.Run("unlock twice", func(t *testing.T) {
		testutil.RequireNoError(t, c.Unlock(ctx, held.Token))
		testutil.AssertErrorIs(t, c.Unlock(ctx, held.Token), ErrNoSuchLock)
		_, err := c.LockInfo(ctx, held.Token)
		testutil.AssertErrorIs(t, err, ErrNoSuchLock)
	})

	t.Run("delete once unlocked", func(t *testing.T) {
		testutil.RequireNoError(t, c.Delete(ctx, "/docs/b.txt"))
		_, err := c.Stat(ctx, "/docs/b.txt")
		testutil.AssertErrorIs(t, err, ErrNotFound)
	})
}

func TestClient_InfiniteLock(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	held, err := c.Lock(ctx, "/docs/a.txt", LockOptions{Timeout: types.InfiniteTimeout})
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, held.IsInfinite())
	testutil.AssertEqual(t, types.InfiniteTimeout, held.Timeout)

	refreshed, err := c.Refresh(ctx, held.Token, time.Minute)
	testutil.RequireNoError(t, err)
	testutil.AssertFalse(t, refreshed.IsInfinite())
}

func TestClient_SharedLocks(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	opts := LockOptions{Share: types.ShareShared, Owner: "reader"}
	first, err := c.Lock(ctx, "/docs/a.txt", opts)
	testutil.RequireNoError(t, err)
	second, err := c.Lock(ctx, "/docs/a.txt", opts)
	testutil.RequireNoError(t, err)
	testutil.AssertNotEqual(t, first.Token, second.Token)

	_, err = c.Lock(ctx, "/docs/a.txt", LockOptions{})
	testutil.AssertErrorIs(t, err, ErrLocked)
}

func TestClient_ErrorMapping(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"stat missing", func() error { _, err := c.Stat(ctx, "/nope"); return err }, ErrNotFound},
		{"list document", func() error { _, err := c.List(ctx, "/docs/a.txt"); return err }, ErrFailedPrecondition},
		{"write read-only mount", func() error {
			_, err := c.CreateDocument(ctx, "/archive/x.txt", []byte("x"), "")
			return err
		}, ErrPermissionDenied},
		{"create existing", func() error { _, err := c.CreateCollection(ctx, "/docs"); return err }, ErrAlreadyExists},
		{"delete mount point", func() error { return c.Delete(ctx, "/archive") }, ErrFailedPrecondition},
		{"relative path", func() error { _, err := c.Stat(ctx, "docs"); return err }, ErrInvalidArgument},
		{"refresh unknown", func() error {
			_, err := c.Refresh(ctx, "opaquelocktoken:missing", time.Minute)
			return err
		}, ErrNoSuchLock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestClient_ListAndStat(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	nodes, err := c.List(ctx, "/")
	testutil.RequireNoError(t, err)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 root children, got %d", len(nodes))
	}
	testutil.AssertEqual(t, "archive", nodes[0].Name)
	testutil.AssertTrue(t, nodes[0].MountPoint)
	testutil.AssertEqual(t, "docs", nodes[1].Name)

	node, err := c.Stat(ctx, "/archive")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, "archive", node.Filesystem)
	testutil.AssertTrue(t, node.ReadOnly)
}

func TestClient_LocksPaging(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	for _, l := range []struct{ path, owner string }{
		{"/docs/a.txt", "alice"},
		{"/docs/new.txt", "bob"},
		{"/archive/old.txt", "alice"},
	} {
		_, err := c.Lock(ctx, l.path, LockOptions{Owner: l.owner})
		testutil.RequireNoError(t, err)
	}

	tests := []struct {
		name      string
		q         LocksQuery
		wantLen   int
		wantTotal int
		wantMore  bool
	}{
		{"all", LocksQuery{}, 3, 3, false},
		{"first page", LocksQuery{Limit: 2}, 2, 3, true},
		{"second page", LocksQuery{Limit: 2, Offset: 2}, 1, 3, false},
		{"by owner", LocksQuery{Owner: "alice"}, 2, 2, false},
		{"by prefix", LocksQuery{PathPrefix: "/docs"}, 2, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := c.Locks(ctx, tt.q)
			testutil.RequireNoError(t, err)
			testutil.AssertLen(t, page.Locks, tt.wantLen)
			testutil.AssertEqual(t, tt.wantTotal, page.Total)
			testutil.AssertEqual(t, tt.wantMore, page.HasMore)
		})
	}
}

func TestClient_RetriesRateLimitedRequests(t *testing.T) {
	c := startTestClient(t, func(cfg *server.Config) {
		cfg.EnableRateLimit = true
		cfg.RateLimit = 1
		cfg.RateLimitBurst = 1
		cfg.RateLimitWindow = time.Hour
	}, func(cfg *Config) {
		cfg.RetryPolicy.MaxRetries = 2
	})
	ctx := context.Background()

	_, err := c.Stat(ctx, "/docs")
	testutil.RequireNoError(t, err)

	_, err = c.Stat(ctx, "/docs")
	testutil.AssertErrorIs(t, err, ErrRateLimit)

	m := c.Metrics()
	testutil.AssertEqual(t, uint64(2), m.GetRetryCount(opStat))
	testutil.AssertEqual(t, uint64(1), m.GetSuccessCount(opStat))
	testutil.AssertEqual(t, uint64(1), m.GetFailureCount(opStat))
	testutil.AssertEqual(t, 0.5, m.GetSuccessRate(opStat))
}

func TestClient_NoRetryOnConflict(t *testing.T) {
	c := startTestClient(t, nil)
	ctx := context.Background()

	_, err := c.Lock(ctx, "/docs", LockOptions{})
	testutil.RequireNoError(t, err)
	_, err = c.Lock(ctx, "/docs", LockOptions{})
	testutil.AssertErrorIs(t, err, ErrLocked)
	testutil.AssertEqual(t, uint64(0), c.Metrics().GetRetryCount(opLock))
}

func TestClient_MetricsDisabled(t *testing.T) {
	c := startTestClient(t, nil, func(cfg *Config) { cfg.EnableMetrics = false })

	_, err := c.Stat(context.Background(), "/docs")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, uint64(0), c.Metrics().GetRequestCount(opStat))
}

func TestClient_Close(t *testing.T) {
	c := startTestClient(t, nil)

	testutil.RequireNoError(t, c.Close())
	testutil.AssertErrorIs(t, c.Close(), ErrClientClosed)

	_, err := c.Stat(context.Background(), "/docs")
	testutil.AssertErrorIs(t, err, ErrClientClosed)
}

func TestClient_CanceledContext(t *testing.T) {
	c := startTestClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Stat(ctx, "/docs")
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Endpoint = ""
	_, err := New(cfg)
	testutil.AssertError(t, err)
}
