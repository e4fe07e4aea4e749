package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/types"
)

// Refresher is the subset of Client an AutoRefresher needs.
type Refresher interface {
	Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error)
}

// AutoRefresher keeps a lock alive by refreshing it in the background.
// It handles lifecycle management, graceful shutdown, and error reporting.
type AutoRefresher interface {
	// Start begins refreshing in a background goroutine. The provided
	// context controls the lifetime of the loop.
	Start(ctx context.Context)

	// Stop stops the loop and waits for it to exit.
	// Returns any terminal error from the refresh loop or shutdown.
	Stop(ctx context.Context) error

	// Done returns a channel that's closed when the refresher has stopped.
	Done() <-chan struct{}

	// Err returns the error that caused the refresher to stop, if any.
	Err() error

	// Last returns the lock snapshot from the most recent successful
	// refresh, or nil before the first one.
	Last() *types.LockInfo
}

// autoRefresher runs a loop that refreshes one lock every interval.
type autoRefresher struct {
	client   Refresher
	token    types.StateToken
	interval time.Duration
	timeout  time.Duration

	clock clock.Clock

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	last *types.LockInfo
	err  error
}

// AutoRefresherOptions holds optional configuration for an AutoRefresher.
type AutoRefresherOptions struct {
	Clock clock.Clock
}

// AutoRefresherOption applies a configuration option to an AutoRefresher.
type AutoRefresherOption func(*AutoRefresherOptions)

// WithClock provides a custom clock, mainly for tests.
func WithClock(clk clock.Clock) AutoRefresherOption {
	return func(opts *AutoRefresherOptions) {
		opts.Clock = clk
	}
}

// NewAutoRefresher creates an AutoRefresher that refreshes token every
// interval, requesting timeout each time. The timeout must exceed the
// interval or the lock would lapse between refreshes.
func NewAutoRefresher(client Refresher, token types.StateToken, interval, timeout time.Duration, opts ...AutoRefresherOption) (AutoRefresher, error) {
	if client == nil {
		return nil, errors.New("client: refresher cannot be nil")
	}
	if token == "" {
		return nil, errors.New("client: lock token cannot be empty")
	}
	if interval <= 0 {
		return nil, errors.New("client: refresh interval must be positive")
	}
	if timeout == types.InfiniteTimeout {
		return nil, errors.New("client: infinite locks do not need refreshing")
	}
	if timeout <= interval {
		return nil, fmt.Errorf("client: lock timeout (%v) must be greater than refresh interval (%v)", timeout, interval)
	}

	options := &AutoRefresherOptions{}
	for _, opt := range opts {
		opt(options)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.NewStandardClock()
	}

	return &autoRefresher{
		client:   client,
		token:    token,
		interval: interval,
		timeout:  timeout,
		clock:    clk,
	}, nil
}

func (r *autoRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run(r.ctx)
}

func (r *autoRefresher) Stop(ctx context.Context) error {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		err := r.Err()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("client: timeout waiting for refresher to stop: %w", ctx.Err())
	}
}

func (r *autoRefresher) Done() <-chan struct{} {
	r.mu.RLock()
	ctx := r.ctx
	r.mu.RUnlock()

	if ctx == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return ctx.Done()
}

func (r *autoRefresher) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *autoRefresher) Last() *types.LockInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *autoRefresher) setError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *autoRefresher) setLast(info *types.LockInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = info
}

func (r *autoRefresher) run(ctx context.Context) {
	defer r.wg.Done()
	defer r.cancel()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			info, err := r.client.Refresh(ctx, r.token, r.timeout)
			if err != nil {
				// A refresh cut short by Stop is a normal shutdown.
				if ctxErr := ctx.Err(); ctxErr != nil {
					r.setError(ctxErr)
					return
				}
				r.setError(fmt.Errorf("client: refresh of %s failed: %w", r.token, err))
				return
			}
			r.setLast(info)

		case <-ctx.Done():
			r.setError(ctx.Err())
			return
		}
	}
}
