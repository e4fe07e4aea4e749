package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/durationpb"

	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/testutil"
)

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, want, status.Code(err), "unexpected status: %v", err)
}

func TestServer_LockLifecycle(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)
	ctx := context.Background()

	lockResp, err := client.Lock(ctx, &pb.LockRequest{
		Path:      "/docs",
		Recursive: true,
		Owner:     "alice",
		Timeout:   durationpb.New(time.Minute),
	})
	testutil.RequireNoError(t, err)
	held := lockResp.Lock
	testutil.RequireNotNil(t, held)
	testutil.AssertContains(t, held.Token, "opaquelocktoken:")
	testutil.AssertEqual(t, "/docs", held.Path)
	testutil.AssertEqual(t, "exclusive", held.Share)
	testutil.AssertEqual(t, "write", held.Access)
	testutil.AssertNotNil(t, held.ExpiresAt)

	t.Run("second exclusive lock conflicts", func(t *testing.T) {
		_, err := client.Lock(ctx, &pb.LockRequest{Path: "/docs/a.txt"})
		assertCode(t, err, codes.Aborted)
		testutil.AssertContains(t, status.Convert(err).Message(), held.Token)
	})

	t.Run("mutation without token is rejected", func(t *testing.T) {
		_, err := client.CreateDocument(ctx, &pb.CreateDocumentRequest{Path: "/docs/b.txt", Content: []byte("b")})
		assertCode(t, err, codes.Aborted)
	})

	t.Run("mutation with token succeeds", func(t *testing.T) {
		resp, err := client.CreateDocument(ctx, &pb.CreateDocumentRequest{
			Path:        "/docs/b.txt",
			Content:     []byte("bee"),
			ContentType: "text/plain",
			Tokens:      []string{held.Token},
		})
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, "document", resp.Node.Kind)
		testutil.AssertEqual(t, int64(3), resp.Node.Size)
		testutil.AssertEqual(t, "host", resp.Node.Filesystem)
	})

	t.Run("info and refresh", func(t *testing.T) {
		info, err := client.GetLockInfo(ctx, &pb.GetLockInfoRequest{Token: held.Token})
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, "alice", info.Lock.Owner)

		refreshed, err := client.Refresh(ctx, &pb.RefreshRequest{Token: held.Token, Timeout: durationpb.New(time.Hour)})
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, time.Hour, refreshed.Lock.Timeout.AsDuration())
	})

	t.Run("unlock then unlock again", func(t *testing.T) {
		_, err := client.Unlock(ctx, &pb.UnlockRequest{Token: held.Token})
		testutil.RequireNoError(t, err)

		_, err = client.Unlock(ctx, &pb.UnlockRequest{Token: held.Token})
		assertCode(t, err, codes.NotFound)
	})

	t.Run("delete after unlock", func(t *testing.T) {
		_, err := client.Delete(ctx, &pb.DeleteRequest{Path: "/docs/b.txt"})
		testutil.RequireNoError(t, err)

		_, err = client.Stat(ctx, &pb.StatRequest{Path: "/docs/b.txt"})
		assertCode(t, err, codes.NotFound)
	})
}

func TestServer_InfiniteLock(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)

	resp, err := client.Lock(context.Background(), &pb.LockRequest{Path: "/docs/a.txt", Infinite: true})
	testutil.RequireNoError(t, err)
	testutil.AssertNil(t, resp.Lock.Timeout)
	testutil.AssertNil(t, resp.Lock.ExpiresAt)
	testutil.AssertNotNil(t, resp.Lock.IssuedAt)
}

func TestServer_ErrorCodes(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"stat missing", func() error {
			_, err := client.Stat(ctx, &pb.StatRequest{Path: "/nope"})
			return err
		}, codes.NotFound},
		{"lock empty path", func() error {
			_, err := client.Lock(ctx, &pb.LockRequest{})
			return err
		}, codes.InvalidArgument},
		{"lock unknown scope", func() error {
			_, err := client.Lock(ctx, &pb.LockRequest{Path: "/docs", Share: "sometimes"})
			return err
		}, codes.InvalidArgument},
		{"lock missing parent", func() error {
			_, err := client.Lock(ctx, &pb.LockRequest{Path: "/missing/x"})
			return err
		}, codes.NotFound},
		{"refresh unknown token", func() error {
			_, err := client.Refresh(ctx, &pb.RefreshRequest{Token: "opaquelocktoken:missing"})
			return err
		}, codes.NotFound},
		{"write into read-only mount", func() error {
			_, err := client.CreateDocument(ctx, &pb.CreateDocumentRequest{Path: "/archive/x.txt"})
			return err
		}, codes.PermissionDenied},
		{"create existing collection", func() error {
			_, err := client.CreateCollection(ctx, &pb.CreateCollectionRequest{Path: "/docs"})
			return err
		}, codes.AlreadyExists},
		{"list a document", func() error {
			_, err := client.List(ctx, &pb.ListRequest{Path: "/docs/a.txt"})
			return err
		}, codes.FailedPrecondition},
		{"delete a mount point", func() error {
			_, err := client.Delete(ctx, &pb.DeleteRequest{Path: "/archive"})
			return err
		}, codes.FailedPrecondition},
		{"negative page limit", func() error {
			_, err := client.GetLocks(ctx, &pb.GetLocksRequest{Limit: -1})
			return err
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, tt.call(), tt.want)
		})
	}
}

func TestServer_ListAndStat(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)
	ctx := context.Background()

	resp, err := client.List(ctx, &pb.ListRequest{Path: "/"})
	testutil.RequireNoError(t, err)
	testutil.RequireNotNil(t, resp)
	names := make([]string, 0, len(resp.Nodes))
	for _, n := range resp.Nodes {
		names = append(names, n.Name)
	}
	testutil.AssertElementsMatch(t, []string{"archive", "docs"}, names)

	stat, err := client.Stat(ctx, &pb.StatRequest{Path: "/archive"})
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, stat.Node.MountPoint)
	testutil.AssertTrue(t, stat.Node.ReadOnly)
	testutil.AssertEqual(t, "archive", stat.Node.Filesystem)
	testutil.AssertEqual(t, "collection", stat.Node.Kind)
}

func TestServer_GetLocksPaging(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)
	ctx := context.Background()

	for _, req := range []*pb.LockRequest{
		{Path: "/docs/a.txt", Owner: "alice"},
		{Path: "/docs/new.txt", Owner: "bob"},
		{Path: "/archive/old.txt", Owner: "alice"},
	} {
		_, err := client.Lock(ctx, req)
		testutil.RequireNoError(t, err)
	}

	tests := []struct {
		name      string
		req       *pb.GetLocksRequest
		wantLen   int
		wantTotal int32
		wantMore  bool
	}{
		{"all", &pb.GetLocksRequest{}, 3, 3, false},
		{"first page", &pb.GetLocksRequest{Limit: 2}, 2, 3, true},
		{"second page", &pb.GetLocksRequest{Limit: 2, Offset: 2}, 1, 3, false},
		{"by prefix", &pb.GetLocksRequest{PathPrefix: "/docs"}, 2, 2, false},
		{"by owner", &pb.GetLocksRequest{Owner: "alice"}, 2, 2, false},
		{"prefix and owner", &pb.GetLocksRequest{PathPrefix: "/docs", Owner: "alice"}, 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.GetLocks(ctx, tt.req)
			testutil.RequireNoError(t, err)
			testutil.AssertLen(t, resp.Locks, tt.wantLen)
			testutil.AssertEqual(t, tt.wantTotal, resp.TotalCount)
			testutil.AssertEqual(t, tt.wantMore, resp.HasMore)
		})
	}
}

func TestServer_GetLocksExpiring(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), nil)
	ctx := context.Background()

	for _, req := range []*pb.LockRequest{
		{Path: "/docs/a.txt", Timeout: durationpb.New(time.Minute)},
		{Path: "/docs/new.txt", Timeout: durationpb.New(time.Hour)},
		{Path: "/archive/old.txt", Infinite: true},
	} {
		_, err := client.Lock(ctx, req)
		testutil.RequireNoError(t, err)
	}

	tests := []struct {
		name      string
		within    time.Duration
		wantPaths []string
	}{
		{"short window", 10 * time.Minute, []string{"/docs/a.txt"}},
		{"long window", 2 * time.Hour, []string{"/docs/a.txt", "/docs/new.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.GetLocks(ctx, &pb.GetLocksRequest{ExpiringWithin: durationpb.New(tt.within)})
			testutil.RequireNoError(t, err)
			testutil.AssertLen(t, resp.Locks, len(tt.wantPaths))
			for i, p := range tt.wantPaths {
				testutil.AssertEqual(t, p, resp.Locks[i].Path)
			}
		})
	}

	_, err := client.GetLocks(ctx, &pb.GetLocksRequest{ExpiringWithin: durationpb.New(-time.Second)})
	assertCode(t, err, codes.InvalidArgument)
}

func TestServer_RateLimit(t *testing.T) {
	_, client := startTestServer(t, newTestService(t), func(c *Config) {
		c.EnableRateLimit = true
		c.RateLimit = 1
		c.RateLimitBurst = 1
		c.RateLimitWindow = time.Hour
	})
	ctx := context.Background()

	_, err := client.Stat(ctx, &pb.StatRequest{Path: "/docs"})
	testutil.RequireNoError(t, err)

	_, err = client.Stat(ctx, &pb.StatRequest{Path: "/docs"})
	assertCode(t, err, codes.ResourceExhausted)
}

func TestServer_Overloaded(t *testing.T) {
	srv, client := startTestServer(t, newTestService(t), func(c *Config) {
		c.MaxConcurrentReqs = 1
	})
	s := srv.(*davLockServer)

	s.sem <- struct{}{}
	_, err := client.Stat(context.Background(), &pb.StatRequest{Path: "/docs"})
	assertCode(t, err, codes.ResourceExhausted)
	<-s.sem

	_, err = client.Stat(context.Background(), &pb.StatRequest{Path: "/docs"})
	testutil.AssertNoError(t, err)
}

func TestServer_Metrics(t *testing.T) {
	m := NewPrometheusServerMetrics(prometheus.NewRegistry())
	_, client := startTestServer(t, newTestService(t), func(c *Config) {
		c.Metrics = m
	})
	ctx := context.Background()

	_, err := client.Stat(ctx, &pb.StatRequest{Path: "/docs"})
	testutil.RequireNoError(t, err)
	_, err = client.Lock(ctx, &pb.LockRequest{})
	assertCode(t, err, codes.InvalidArgument)

	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.RequestsTotal.WithLabelValues(MethodStat, codes.OK.String())))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.RequestsTotal.WithLabelValues(MethodLock, codes.InvalidArgument.String())))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.ValidationErrors.WithLabelValues(MethodLock, ErrorTypeMissingField)))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.Healthy))
	testutil.AssertEqual(t, 0.0, promtest.ToFloat64(m.InFlight.WithLabelValues(MethodStat)))
}

func TestServer_Health(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	srv, err := NewDavLockServer(newTestService(t), testConfig(lis))
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))

	s := srv.(*davLockServer)
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	testutil.RequireNoError(t, srv.Stop(context.Background()))
	resp, err = s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestServer_StartStop(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	srv, err := NewDavLockServer(newTestService(t), testConfig(lis))
	testutil.RequireNoError(t, err)

	testutil.AssertNil(t, srv.Addr())
	testutil.AssertErrorIs(t, srv.Stop(context.Background()), ErrServerNotStarted)

	testutil.RequireNoError(t, srv.Start(context.Background()))
	testutil.AssertEqual(t, ServerStateRunning, srv.State())
	testutil.AssertNotNil(t, srv.Addr())
	testutil.AssertErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyStarted)

	testutil.RequireNoError(t, srv.Stop(context.Background()))
	testutil.AssertEqual(t, ServerStateStopped, srv.State())
	testutil.AssertErrorIs(t, srv.Stop(context.Background()), ErrServerNotStarted)
}

func TestServer_HandlersReturnDomainErrors(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	srv, err := NewDavLockServer(newTestService(t), testConfig(lis))
	testutil.RequireNoError(t, err)
	ctx := context.Background()

	_, err = srv.Lock(ctx, &pb.LockRequest{Path: "relative"})
	var ve *ValidationError
	testutil.AssertErrorAs(t, err, &ve)
	testutil.AssertEqual(t, "path", ve.Field)
	testutil.AssertEqual(t, ErrorTypeInvalidFormat, ve.Type)

	resp, err := srv.Stat(ctx, &pb.StatRequest{Path: "/docs/a.txt"})
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, "text/plain", resp.Node.ContentType)
}

func TestNewDavLockServer_Validation(t *testing.T) {
	_, err := NewDavLockServer(nil, DefaultConfig())
	testutil.AssertError(t, err)

	cfg := DefaultConfig()
	cfg.RequestTimeout = 0
	_, err = NewDavLockServer(newTestService(t), cfg)
	var ce *ConfigError
	testutil.AssertErrorAs(t, err, &ce)
}
