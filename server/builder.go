package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/logger"
)

// DavLockServerBuilder assembles a DavLockServer from DefaultConfig.
// Numeric setters ignore values <= 0 so callers can pass flags through
// unchanged.
type DavLockServerBuilder struct {
	config Config
	svc    *davfs.Service
}

func NewDavLockServerBuilder() *DavLockServerBuilder {
	return &DavLockServerBuilder{config: DefaultConfig()}
}

// WithService sets the service to expose. Build fails without one.
func (b *DavLockServerBuilder) WithService(svc *davfs.Service) *DavLockServerBuilder {
	b.svc = svc
	return b
}

func (b *DavLockServerBuilder) WithListenAddress(address string) *DavLockServerBuilder {
	b.config.ListenAddress = address
	return b
}

// WithListener serves on lis and ignores the listen address.
func (b *DavLockServerBuilder) WithListener(lis net.Listener) *DavLockServerBuilder {
	b.config.Listener = lis
	return b
}

func (b *DavLockServerBuilder) WithTimeouts(requestTimeout, shutdownTimeout time.Duration) *DavLockServerBuilder {
	setPositive(&b.config.RequestTimeout, requestTimeout)
	setPositive(&b.config.ShutdownTimeout, shutdownTimeout)
	return b
}

// WithLimits bounds message sizes in bytes and in-flight DavLock calls.
func (b *DavLockServerBuilder) WithLimits(maxRequestSize, maxResponseSize, maxConcurrentReqs int) *DavLockServerBuilder {
	setPositive(&b.config.MaxRequestSize, maxRequestSize)
	setPositive(&b.config.MaxResponseSize, maxResponseSize)
	setPositive(&b.config.MaxConcurrentReqs, maxConcurrentReqs)
	return b
}

// WithRateLimit toggles per-client rate limiting. The numbers only apply
// when enabled is true.
func (b *DavLockServerBuilder) WithRateLimit(enabled bool, rateLimit, burst int, window time.Duration) *DavLockServerBuilder {
	b.config.EnableRateLimit = enabled
	if enabled {
		setPositive(&b.config.RateLimit, rateLimit)
		setPositive(&b.config.RateLimitBurst, burst)
		setPositive(&b.config.RateLimitWindow, window)
	}
	return b
}

func (b *DavLockServerBuilder) WithKeepalive(pingTime, pingTimeout, minClientTime time.Duration) *DavLockServerBuilder {
	setPositive(&b.config.KeepaliveTime, pingTime)
	setPositive(&b.config.KeepaliveTimeout, pingTimeout)
	setPositive(&b.config.KeepaliveMinTime, minClientTime)
	return b
}

func (b *DavLockServerBuilder) WithLogger(log logger.Logger) *DavLockServerBuilder {
	b.config.Logger = log
	return b
}

func (b *DavLockServerBuilder) WithMetrics(metrics ServerMetrics) *DavLockServerBuilder {
	b.config.Metrics = metrics
	return b
}

// WithClock replaces the clock behind latency metrics and rate limiting.
func (b *DavLockServerBuilder) WithClock(clk clock.Clock) *DavLockServerBuilder {
	b.config.Clock = clk
	return b
}

// Build validates the configuration and creates the server. A nil logger
// or metrics sink becomes a no-op one.
func (b *DavLockServerBuilder) Build() (DavLockServer, error) {
	if b.svc == nil {
		return nil, errors.New("server builder: no service, call WithService")
	}
	if b.config.Logger == nil {
		b.config.Logger = logger.NewNoOpLogger()
	}
	if b.config.Metrics == nil {
		b.config.Metrics = NewNoOpServerMetrics()
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("server builder: %w", err)
	}
	return NewDavLockServer(b.svc, b.config)
}

func setPositive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
