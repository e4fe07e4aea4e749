package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/logger"
	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/types"
)

// davLockServer implements DavLockServer on top of a davfs.Service.
type davLockServer struct {
	pb.UnimplementedDavLockServer

	config  Config
	svc     *davfs.Service
	logger  logger.Logger
	metrics ServerMetrics
	clock   clock.Clock

	validator RequestValidator
	limiter   RateLimiter
	conns     ConnectionTracker
	health    *health.Server

	// sem bounds the number of requests handled at once.
	sem chan struct{}

	mu         sync.RWMutex
	state      ServerOperationalState
	grpcServer *grpc.Server
	listener   net.Listener
	serveDone  chan struct{}
}

// NewDavLockServer creates a server for svc. The server is not started.
func NewDavLockServer(svc *davfs.Service, config Config) (DavLockServer, error) {
	if svc == nil {
		return nil, errors.New("server: service cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}
	if config.Metrics == nil {
		config.Metrics = NewNoOpServerMetrics()
	}
	if config.Clock == nil {
		config.Clock = clock.NewStandardClock()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := config.Logger.WithComponent("server")
	s := &davLockServer{
		config:    config,
		svc:       svc,
		logger:    log,
		metrics:   config.Metrics,
		clock:     config.Clock,
		validator: NewRequestValidator(log),
		conns:     NewConnectionTracker(config.Metrics, log, config.Clock),
		health:    health.NewServer(),
		sem:       make(chan struct{}, config.MaxConcurrentReqs),
		state:     ServerStateStopped,
	}
	if config.EnableRateLimit {
		s.limiter = NewTokenBucketRateLimiter(
			config.RateLimit,
			config.RateLimitBurst,
			config.RateLimitWindow,
			config.Clock,
			log,
		)
	}
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// Start binds the listener and serves in a background goroutine.
func (s *davLockServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServerStateStopped || s.grpcServer != nil {
		return ErrServerAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = ServerStateStarting

	lis := s.config.Listener
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", s.config.ListenAddress)
		if err != nil {
			s.state = ServerStateStopped
			return NewServerError("start", err, fmt.Sprintf("failed to listen on %s", s.config.ListenAddress))
		}
	}

	gs := grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
		grpc.MaxRecvMsgSize(s.config.MaxRequestSize),
		grpc.MaxSendMsgSize(s.config.MaxResponseSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.config.KeepaliveTime,
			Timeout: s.config.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             s.config.KeepaliveMinTime,
			PermitWithoutStream: true,
		}),
		grpc.StatsHandler(&connStatsHandler{tracker: s.conns}),
	)
	pb.RegisterDavLockServer(gs, s)
	healthpb.RegisterHealthServer(gs, s.health)

	s.grpcServer = gs
	s.listener = lis
	s.serveDone = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Errorw("gRPC server exited", "error", err)
		}
	}(s.serveDone)

	s.state = ServerStateRunning
	s.health.Resume()
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.metrics.SetServerState(true)
	s.logger.Infow("gRPC server started", "address", lis.Addr().String())
	return nil
}

// Stop drains in-flight requests, then closes the listener. If draining
// takes longer than allowed, remaining requests are cancelled and
// ErrShutdownTimeout is returned.
func (s *davLockServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ServerStateRunning {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	s.state = ServerStateStopping
	gs, done := s.grpcServer, s.serveDone
	s.mu.Unlock()

	s.logger.Infow("Stopping gRPC server")
	s.health.Shutdown()
	s.metrics.SetServerState(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()

	var err error
	select {
	case <-stopped:
	case <-ctx.Done():
		gs.Stop()
		<-stopped
		err = ErrShutdownTimeout
		s.logger.Warnw("Graceful shutdown timed out, forced stop")
	}
	<-done

	s.mu.Lock()
	s.state = ServerStateStopped
	s.grpcServer = nil
	s.listener = nil
	s.mu.Unlock()

	s.logger.Infow("gRPC server stopped")
	return err
}

func (s *davLockServer) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *davLockServer) State() ServerOperationalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *davLockServer) Connections() ConnectionTracker {
	return s.conns
}

func (s *davLockServer) Metrics() ServerMetrics {
	return s.metrics
}

// unaryInterceptor applies state checks, rate and concurrency limits, the
// request timeout, metrics, and error mapping to every DavLock call.
func (s *davLockServer) unaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+pb.ServiceName+"/") {
		return handler(ctx, req)
	}
	method := path.Base(info.FullMethod)
	start := s.clock.Now()

	remote, client := peerAddress(ctx)
	if remote != "" {
		s.conns.Touched(remote, method)
	}

	resp, err := s.admit(ctx, method, client, req, handler)

	st := ErrorToStatus(err)
	code := status.Code(st)
	s.metrics.IncrGRPCRequest(method, code)
	s.metrics.ObserveRequestLatency(method, s.clock.Since(start))

	if err != nil {
		s.recordError(method, err)
		s.logger.Debugw("request failed",
			"method", method,
			"client", client,
			"code", code.String(),
			"error", err,
		)
		return nil, st
	}
	return resp, nil
}

func (s *davLockServer) admit(
	ctx context.Context,
	method, client string,
	req any,
	handler grpc.UnaryHandler,
) (any, error) {
	switch s.State() {
	case ServerStateRunning:
	case ServerStateStopping, ServerStateStopped:
		return nil, ErrServerStopped
	default:
		return nil, ErrServerNotStarted
	}

	if s.limiter != nil && !s.limiter.Allow(client) {
		return nil, ErrRateLimited
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		return nil, ErrOverloaded
	}

	s.metrics.IncrConcurrentRequests(method, 1)
	defer s.metrics.IncrConcurrentRequests(method, -1)

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()
	return handler(ctx, req)
}

func (s *davLockServer) recordError(method string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.metrics.IncrValidationError(method, validationErr.Type)
	case errors.Is(err, ErrRateLimited):
		s.metrics.IncrServerError(method, ErrorTypeRateLimit)
	case errors.Is(err, ErrOverloaded):
		s.metrics.IncrServerError(method, ErrorTypeOverloaded)
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.IncrServerError(method, ErrorTypeTimeout)
	case status.Code(ErrorToStatus(err)) == codes.Internal:
		s.metrics.IncrServerError(method, ErrorTypeInternalError)
	}
}

// peerAddress returns the full remote address and the host part used as the
// rate limiting key.
func peerAddress(ctx context.Context) (remote, client string) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "", "unknown"
	}
	remote = p.Addr.String()
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote, remote
	}
	return remote, host
}

// Lock grants a new lock.
func (s *davLockServer) Lock(ctx context.Context, req *pb.LockRequest) (*pb.LockResponse, error) {
	if err := s.validator.ValidateLockRequest(req); err != nil {
		return nil, err
	}
	access, _ := types.ParseAccessType(req.Access)
	share, _ := types.ParseShareMode(req.Share)

	info, err := s.svc.Lock(ctx, lock.LockRequest{
		Path:      req.Path,
		Recursive: req.Recursive,
		Owner:     req.Owner,
		Access:    access,
		Share:     share,
		Timeout:   requestedTimeout(req.Timeout, req.Infinite),
	})
	if err != nil {
		return nil, err
	}
	return &pb.LockResponse{Lock: lockInfoToProto(info)}, nil
}

// Refresh extends an active lock.
func (s *davLockServer) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.RefreshResponse, error) {
	if err := s.validator.ValidateRefreshRequest(req); err != nil {
		return nil, err
	}
	info, err := s.svc.Refresh(ctx, types.StateToken(req.Token), requestedTimeout(req.Timeout, req.Infinite))
	if err != nil {
		return nil, err
	}
	return &pb.RefreshResponse{Lock: lockInfoToProto(info)}, nil
}

// Unlock releases an active lock.
func (s *davLockServer) Unlock(ctx context.Context, req *pb.UnlockRequest) (*pb.UnlockResponse, error) {
	if err := s.validator.ValidateUnlockRequest(req); err != nil {
		return nil, err
	}
	if err := s.svc.Unlock(ctx, types.StateToken(req.Token)); err != nil {
		return nil, err
	}
	return &pb.UnlockResponse{}, nil
}

// GetLockInfo returns a snapshot of one active lock.
func (s *davLockServer) GetLockInfo(ctx context.Context, req *pb.GetLockInfoRequest) (*pb.GetLockInfoResponse, error) {
	if err := s.validator.ValidateGetLockInfoRequest(req); err != nil {
		return nil, err
	}
	info, err := s.svc.LockInfo(ctx, types.StateToken(req.Token))
	if err != nil {
		return nil, err
	}
	return &pb.GetLockInfoResponse{Lock: lockInfoToProto(info)}, nil
}

// GetLocks returns a page of active locks.
func (s *davLockServer) GetLocks(ctx context.Context, req *pb.GetLocksRequest) (*pb.GetLocksResponse, error) {
	if err := s.validator.ValidateGetLocksRequest(req); err != nil {
		return nil, err
	}

	limit := int(req.Limit)
	if limit == 0 {
		limit = DefaultPageLimit
	}
	offset := int(req.Offset)

	locks, total, err := s.svc.Locks().GetLocks(ctx, locksFilter(req, s.clock), limit, offset)
	if err != nil {
		return nil, err
	}
	return &pb.GetLocksResponse{
		Locks:      lockInfosToProto(locks),
		TotalCount: int32(total),
		HasMore:    offset+len(locks) < total,
	}, nil
}

func locksFilter(req *pb.GetLocksRequest, clk clock.Clock) lock.LockFilter {
	var filters []lock.LockFilter
	if req.PathPrefix != "" {
		filters = append(filters, lock.FilterByPathPrefix(req.PathPrefix))
	}
	if req.Owner != "" {
		filters = append(filters, lock.FilterByOwner(req.Owner))
	}
	if req.ExpiringWithin != nil {
		filters = append(filters, lock.FilterExpiringSoon(clk, req.ExpiringWithin.AsDuration()))
	}
	if len(filters) == 0 {
		return lock.FilterAll
	}
	return func(info *types.LockInfo) bool {
		for _, f := range filters {
			if !f(info) {
				return false
			}
		}
		return true
	}
}

// Stat returns a snapshot of one node.
func (s *davLockServer) Stat(ctx context.Context, req *pb.StatRequest) (*pb.StatResponse, error) {
	if err := s.validator.ValidateStatRequest(req); err != nil {
		return nil, err
	}
	info, err := s.svc.Stat(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &pb.StatResponse{Node: nodeInfoToProto(info)}, nil
}

// List returns the children of a collection.
func (s *davLockServer) List(ctx context.Context, req *pb.ListRequest) (*pb.ListResponse, error) {
	if err := s.validator.ValidateListRequest(req); err != nil {
		return nil, err
	}
	infos, err := s.svc.List(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &pb.ListResponse{Nodes: nodeInfosToProto(infos)}, nil
}

// CreateDocument creates a document guarded by the presented tokens.
func (s *davLockServer) CreateDocument(ctx context.Context, req *pb.CreateDocumentRequest) (*pb.CreateDocumentResponse, error) {
	if err := s.validator.ValidateCreateDocumentRequest(req, s.config.MaxRequestSize); err != nil {
		return nil, err
	}
	err := s.svc.CreateDocument(ctx, req.Path, req.Content, req.ContentType, tokensFromProto(req.Tokens))
	if err != nil {
		return nil, err
	}
	info, err := s.svc.Stat(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &pb.CreateDocumentResponse{Node: nodeInfoToProto(info)}, nil
}

// CreateCollection creates a collection guarded by the presented tokens.
func (s *davLockServer) CreateCollection(ctx context.Context, req *pb.CreateCollectionRequest) (*pb.CreateCollectionResponse, error) {
	if err := s.validator.ValidateCreateCollectionRequest(req); err != nil {
		return nil, err
	}
	if err := s.svc.CreateCollection(ctx, req.Path, tokensFromProto(req.Tokens)); err != nil {
		return nil, err
	}
	info, err := s.svc.Stat(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &pb.CreateCollectionResponse{Node: nodeInfoToProto(info)}, nil
}

// Delete removes a node and its subtree.
func (s *davLockServer) Delete(ctx context.Context, req *pb.DeleteRequest) (*pb.DeleteResponse, error) {
	if err := s.validator.ValidateDeleteRequest(req); err != nil {
		return nil, err
	}
	if err := s.svc.Delete(ctx, req.Path, tokensFromProto(req.Tokens)); err != nil {
		return nil, err
	}
	return &pb.DeleteResponse{}, nil
}
