package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/lock"
	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/testutil"
	"github.com/jathurchan/davlock/vfs"
)

const bufSize = 1 << 20

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

// testConfig returns a config served over an in-memory listener.
func testConfig(lis net.Listener) Config {
	cfg := DefaultConfig()
	cfg.Listener = lis
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// startTestServer starts a server on a bufconn listener and returns a
// connected client stub. Both are torn down on cleanup.
func startTestServer(t *testing.T, svc *davfs.Service, mutate func(*Config)) (DavLockServer, pb.DavLockClient) {
	t.Helper()
	lis := bufconn.Listen(bufSize)

	cfg := testConfig(lis)
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewDavLockServer(svc, cfg)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		if srv.State() == ServerStateRunning {
			_ = srv.Stop(context.Background())
		}
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	testutil.RequireNoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, pb.NewDavLockClient(conn)
}
