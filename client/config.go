package client

import (
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// Defaults used by DefaultClientConfig. The message size matches the
// server's limit.
const (
	defaultEndpoint       = "127.0.0.1:7420"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxMessageSize = 4 << 20

	defaultKeepAliveTime    = 30 * time.Second
	defaultKeepAliveTimeout = 5 * time.Second

	defaultMaxRetries        = 3
	defaultInitialBackoff    = 100 * time.Millisecond
	defaultMaxBackoff        = 5 * time.Second
	defaultBackoffMultiplier = 2.0
	defaultJitterFactor      = 0.1
)

// Config configures a davlock client.
type Config struct {
	// Endpoint is any target grpc.NewClient accepts.
	Endpoint string

	// RequestTimeout bounds each attempt of a call. A shorter context
	// deadline wins. Zero disables it.
	RequestTimeout time.Duration

	KeepAlive   KeepAliveConfig
	RetryPolicy RetryPolicy

	// EnableMetrics turns on the in-memory counters behind
	// Client.Metrics.
	EnableMetrics bool

	// MaxMessageSize limits sent and received messages in bytes. Document
	// bodies travel inline, so it also caps document size.
	MaxMessageSize int

	// DialOptions are applied after the client's own, so they may
	// override them.
	DialOptions []grpc.DialOption
}

// KeepAliveConfig maps onto keepalive.ClientParameters. A zero Time
// leaves keepalive off. Time must not be below the server's minimum
// ping interval or the server closes the connection.
type KeepAliveConfig struct {
	Time                time.Duration
	Timeout             time.Duration
	PermitWithoutStream bool
}

// RetryPolicy controls exponential backoff between attempts. Attempt n
// waits InitialBackoff*BackoffMultiplier^(n-1), capped at MaxBackoff and
// then moved by up to JitterFactor of itself in either direction.
type RetryPolicy struct {
	// MaxRetries counts attempts after the first one.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFactor      float64

	// RetryableCodes must only hold codes the server returns before a
	// call takes effect, otherwise a retried Lock could grant twice.
	RetryableCodes []codes.Code
}

// DefaultClientConfig returns the configuration the builder starts from.
func DefaultClientConfig() Config {
	return Config{
		Endpoint:       defaultEndpoint,
		RequestTimeout: defaultRequestTimeout,
		KeepAlive: KeepAliveConfig{
			Time:                defaultKeepAliveTime,
			Timeout:             defaultKeepAliveTimeout,
			PermitWithoutStream: true,
		},
		RetryPolicy:    DefaultRetryPolicy(),
		EnableMetrics:  true,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

// DefaultRetryPolicy retries requests the server turned away before
// handling them: while stopped or starting, rate limited, or overloaded.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        defaultMaxRetries,
		InitialBackoff:    defaultInitialBackoff,
		MaxBackoff:        defaultMaxBackoff,
		BackoffMultiplier: defaultBackoffMultiplier,
		JitterFactor:      defaultJitterFactor,
		RetryableCodes: []codes.Code{
			codes.Unavailable,
			codes.ResourceExhausted,
		},
	}
}

// Validate rejects configurations that cannot be dialed or retried.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("client: endpoint must be set")
	}
	if c.RequestTimeout < 0 {
		return errors.New("client: request timeout cannot be negative")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("client: max message size must be positive")
	}
	p := c.RetryPolicy
	if p.MaxRetries < 0 {
		return errors.New("client: max retries cannot be negative")
	}
	if p.MaxRetries > 0 {
		if p.InitialBackoff <= 0 || p.MaxBackoff < p.InitialBackoff {
			return errors.New("client: retry backoff must satisfy 0 < initial <= max")
		}
		if p.BackoffMultiplier < 1 {
			return errors.New("client: backoff multiplier must be at least 1")
		}
	}
	if p.JitterFactor < 0 || p.JitterFactor > 1 {
		return errors.New("client: jitter factor must be within [0, 1]")
	}
	return nil
}
