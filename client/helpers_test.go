package client

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/server"
	"github.com/jathurchan/davlock/testutil"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// newTestService builds a host with /docs/a.txt and a read-only /archive mount.
func newTestService(t *testing.T) *davfs.Service {
	t.Helper()
	host := vfs.NewFilesystem("host")
	testutil.RequireNoError(t, host.CreateCollection("/docs"))
	testutil.RequireNoError(t, host.CreateDocument("/docs/a.txt", []byte("a"), "text/plain"))
	testutil.RequireNoError(t, host.CreateCollection("/archive"))

	archive := vfs.NewFilesystem("archive", vfs.WithReadOnly(true))
	testutil.RequireNoError(t, host.Mount("/archive", archive))

	locks := lock.NewLockManager(lock.WithExpiryRounding(0))
	t.Cleanup(func() { _ = locks.Close() })

	svc := davfs.NewService(host, locks)
	t.Cleanup(svc.Close)
	return svc
}

// startTestClient serves svc on an in-memory listener and returns a Client
// connected to it. mutate, if non-nil, adjusts the server config.
func startTestClient(t *testing.T, mutate func(*server.Config), opts ...func(*Config)) Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	scfg := server.DefaultConfig()
	scfg.Listener = lis
	scfg.ShutdownTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&scfg)
	}
	srv, err := server.NewDavLockServer(newTestService(t), scfg)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	cfg := DefaultClientConfig()
	cfg.Endpoint = "passthrough:///bufnet"
	cfg.RequestTimeout = 5 * time.Second
	cfg.RetryPolicy.InitialBackoff = time.Millisecond
	cfg.RetryPolicy.MaxBackoff = 5 * time.Millisecond
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := New(cfg)
	testutil.RequireNoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fixedRand returns the same value on every call.
type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

// fakeRefresher records refresh calls and fails once failAfter calls succeeded.
// With hang set, each call waits for its context and fails with err.
type fakeRefresher struct {
	calls     chan types.StateToken
	failAfter int
	err       error
	hang      bool
	n         int
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{calls: make(chan types.StateToken, 16), failAfter: -1}
}

func (f *fakeRefresher) Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error) {
	f.n++
	f.calls <- token
	if f.hang {
		<-ctx.Done()
		return nil, f.err
	}
	if f.failAfter >= 0 && f.n > f.failAfter {
		return nil, f.err
	}
	return &types.LockInfo{Token: token, Timeout: timeout}, nil
}
