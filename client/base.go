package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/davlock/clock"
	pb "github.com/jathurchan/davlock/proto"
)

// Rand supplies backoff jitter.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

type standardRand struct{}

func (standardRand) Float64() float64 { return rand.Float64() }

// rpcFunc issues one DavLock call.
type rpcFunc func(ctx context.Context, rpc pb.DavLockClient) error

// baseClient owns the connection and the retry loop every operation runs
// through.
type baseClient struct {
	mu     sync.RWMutex
	config Config

	conn *grpc.ClientConn
	rpc  pb.DavLockClient

	metrics Metrics
	closed  atomic.Bool
	clock   clock.Clock
	rand    Rand
}

// newBaseClient creates the connection for cfg.Endpoint. The dial is
// lazy: an unreachable server shows up on the first call.
func newBaseClient(cfg Config) (*baseClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(cfg.Endpoint, buildDialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.Endpoint, err)
	}

	var m Metrics = noOpMetrics{}
	if cfg.EnableMetrics {
		m = newMetrics()
	}
	return &baseClient{
		config:  cfg,
		conn:    conn,
		rpc:     pb.NewDavLockClient(conn),
		metrics: m,
		clock:   clock.NewStandardClock(),
		rand:    standardRand{},
	}, nil
}

func buildDialOptions(cfg Config) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
		),
	}
	if ka := cfg.KeepAlive; ka.Time > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                ka.Time,
			Timeout:             ka.Timeout,
			PermitWithoutStream: ka.PermitWithoutStream,
		}))
	}
	return append(opts, cfg.DialOptions...)
}

func (c *baseClient) setRetryPolicy(policy RetryPolicy) {
	c.mu.Lock()
	c.config.RetryPolicy = policy
	c.mu.Unlock()
}

func (c *baseClient) settings() (RetryPolicy, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.RetryPolicy, c.config.RequestTimeout
}

// invoke runs fn until it succeeds, fails with a code the retry policy
// does not cover, or runs out of retries. Context errors are returned
// as is; everything else goes through wrapError.
func (c *baseClient) invoke(ctx context.Context, op string, fn rpcFunc) (err error) {
	if c.closed.Load() {
		return ErrClientClosed
	}
	start := c.clock.Now()
	defer func() {
		c.metrics.ObserveLatency(op, c.clock.Since(start))
		if err != nil {
			c.metrics.IncrFailure(op)
		} else {
			c.metrics.IncrSuccess(op)
		}
	}()

	policy, timeout := c.settings()
	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = c.attempt(ctx, timeout, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return wrapError(op, err)
		case retry >= policy.MaxRetries || !isRetryable(policy, err):
			return wrapError(op, err)
		}

		c.metrics.IncrRetry(op)
		select {
		case <-c.clock.After(c.calculateBackoff(policy, retry+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *baseClient) attempt(ctx context.Context, timeout time.Duration, fn rpcFunc) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx, c.rpc)
}

// calculateBackoff returns the wait before retry n (1-based).
func (c *baseClient) calculateBackoff(policy RetryPolicy, n int) time.Duration {
	d := float64(policy.InitialBackoff) * math.Pow(policy.BackoffMultiplier, float64(n-1))
	d = math.Min(d, float64(policy.MaxBackoff))
	if policy.JitterFactor > 0 {
		d *= 1 + policy.JitterFactor*(2*c.rand.Float64()-1)
	}
	return time.Duration(math.Max(d, 0))
}

func isRetryable(policy RetryPolicy, err error) bool {
	st, ok := status.FromError(err)
	return ok && slices.Contains(policy.RetryableCodes, st.Code())
}

// close is not idempotent: a second call reports ErrClientClosed.
func (c *baseClient) close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("client: close connection: %w", err)
	}
	return nil
}
