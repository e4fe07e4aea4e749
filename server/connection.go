package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/stats"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
)

// ConnectionInfo describes one client transport connection.
type ConnectionInfo struct {
	RemoteAddr  string
	ConnectedAt time.Time
	LastActive  time.Time
	Requests    int64
	// Methods counts DavLock calls per method name, e.g. "Lock".
	Methods     map[string]int64
}

// ConnectionTracker follows client connections for the lifetime of the
// gRPC server.
type ConnectionTracker interface {
	Opened(remoteAddr string)
	Closed(remoteAddr string)
	// Touched records a call of method on the connection.
	Touched(remoteAddr, method string)
	Active() int
	// Snapshot returns the open connections ordered by connect time.
	Snapshot() []ConnectionInfo
}

type connectionTracker struct {
	mu    sync.Mutex
	conns map[string]*ConnectionInfo

	metrics ServerMetrics
	logger  logger.Logger
	clock   clock.Clock
}

// NewConnectionTracker returns a ConnectionTracker. Nil metrics are
// ignored; a nil logger or clock gets the no-op logger or wall clock.
func NewConnectionTracker(metrics ServerMetrics, log logger.Logger, clk clock.Clock) ConnectionTracker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if clk == nil {
		clk = clock.NewStandardClock()
	}
	return &connectionTracker{
		conns:   make(map[string]*ConnectionInfo),
		metrics: metrics,
		logger:  log.WithComponent("connections"),
		clock:   clk,
	}
}

func (t *connectionTracker) Opened(remoteAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.conns[remoteAddr]; ok {
		t.logger.Warnw("duplicate connection", "remote_addr", remoteAddr)
		return
	}
	now := t.clock.Now()
	t.conns[remoteAddr] = &ConnectionInfo{
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		LastActive:  now,
		Methods:     make(map[string]int64),
	}
	t.report()
	t.logger.Debugw("connection opened", "remote_addr", remoteAddr, "open", len(t.conns))
}

func (t *connectionTracker) Closed(remoteAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[remoteAddr]
	if !ok {
		return
	}
	delete(t.conns, remoteAddr)
	t.report()
	t.logger.Debugw("connection closed",
		"remote_addr", remoteAddr,
		"requests", c.Requests,
		"open", len(t.conns),
	)
}

func (t *connectionTracker) Touched(remoteAddr, method string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[remoteAddr]
	if !ok {
		return
	}
	c.LastActive = now
	c.Requests++
	c.Methods[method]++
}

func (t *connectionTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *connectionTracker) Snapshot() []ConnectionInfo {
	t.mu.Lock()
	out := make([]ConnectionInfo, 0, len(t.conns))
	for _, c := range t.conns {
		cp := *c
		cp.Methods = make(map[string]int64, len(c.Methods))
		for m, n := range c.Methods {
			cp.Methods[m] = n
		}
		out = append(out, cp)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].RemoteAddr < out[j].RemoteAddr
	})
	return out
}

// report must be called with t.mu held.
func (t *connectionTracker) report() {
	if t.metrics != nil {
		t.metrics.SetActiveConnections(len(t.conns))
	}
}

// connStatsHandler turns transport events into tracker calls.
type connStatsHandler struct {
	tracker ConnectionTracker
}

type connAddrKey struct{}

var _ stats.Handler = (*connStatsHandler)(nil)

func (h *connStatsHandler) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	var addr string
	if info.RemoteAddr != nil {
		addr = info.RemoteAddr.String()
	}
	return context.WithValue(ctx, connAddrKey{}, addr)
}

func (h *connStatsHandler) HandleConn(ctx context.Context, s stats.ConnStats) {
	addr, _ := ctx.Value(connAddrKey{}).(string)
	switch s.(type) {
	case *stats.ConnBegin:
		h.tracker.Opened(addr)
	case *stats.ConnEnd:
		h.tracker.Closed(addr)
	}
}

func (h *connStatsHandler) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return ctx
}

func (h *connStatsHandler) HandleRPC(context.Context, stats.RPCStats) {}
