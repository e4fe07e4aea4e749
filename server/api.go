package server

import (
	"context"
	"net"

	pb "github.com/jathurchan/davlock/proto"
)

// DavLockServer exposes a davfs.Service over gRPC.
//
// The server validates requests, applies rate and concurrency limits, and
// maps lock and filesystem errors onto gRPC status codes. It does not own the
// service: closing the lock manager and filesystem is left to the caller.
type DavLockServer interface {
	pb.DavLockServer

	// Start binds the listener and begins serving in the background.
	// Returns an error if the server was already started or the listener
	// cannot be created.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the gRPC server. In-flight requests are
	// given until ctx is done or ShutdownTimeout elapses, whichever is first.
	Stop(ctx context.Context) error

	// Addr returns the address being served, or nil before Start.
	Addr() net.Addr

	// State returns the current operational state.
	State() ServerOperationalState

	// Connections returns the client connection tracker.
	Connections() ConnectionTracker

	// Metrics returns the metrics sink the server reports to.
	Metrics() ServerMetrics
}
