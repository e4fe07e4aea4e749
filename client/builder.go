package client

import (
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// DavLockClientBuilder provides a fluent API for constructing clients.
//
// Example:
//
//	c, err := client.NewDavLockClientBuilder("localhost:7420").
//	    WithTimeout(5 * time.Second).
//	    WithRetryOptions(5, 50*time.Millisecond, time.Second, 2).
//	    Build()
type DavLockClientBuilder struct {
	config Config
}

// NewDavLockClientBuilder returns a builder for the given endpoint.
func NewDavLockClientBuilder(endpoint string) *DavLockClientBuilder {
	b := &DavLockClientBuilder{config: DefaultClientConfig()}
	b.config.Endpoint = endpoint
	return b
}

// WithEndpoint replaces the server endpoint.
func (b *DavLockClientBuilder) WithEndpoint(endpoint string) *DavLockClientBuilder {
	b.config.Endpoint = endpoint
	return b
}

// WithTimeout sets the per-request timeout.
func (b *DavLockClientBuilder) WithTimeout(requestTimeout time.Duration) *DavLockClientBuilder {
	if requestTimeout > 0 {
		b.config.RequestTimeout = requestTimeout
	}
	return b
}

// WithKeepAlive sets gRPC keepalive parameters.
func (b *DavLockClientBuilder) WithKeepAlive(time, timeout time.Duration, permitWithoutStream bool) *DavLockClientBuilder {
	b.config.KeepAlive = KeepAliveConfig{
		Time:                time,
		Timeout:             timeout,
		PermitWithoutStream: permitWithoutStream,
	}
	return b
}

// WithRetryPolicy sets a custom retry policy.
func (b *DavLockClientBuilder) WithRetryPolicy(policy RetryPolicy) *DavLockClientBuilder {
	b.config.RetryPolicy = policy
	return b
}

// WithRetryOptions updates the default retry policy parameters.
// Non-positive values leave the current setting alone, except that a
// maxRetries of zero disables retries.
func (b *DavLockClientBuilder) WithRetryOptions(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier float64) *DavLockClientBuilder {
	if maxRetries >= 0 {
		b.config.RetryPolicy.MaxRetries = maxRetries
	}
	if initialBackoff > 0 {
		b.config.RetryPolicy.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		b.config.RetryPolicy.MaxBackoff = maxBackoff
	}
	if multiplier > 0 {
		b.config.RetryPolicy.BackoffMultiplier = multiplier
	}
	return b
}

// WithRetryableCodes sets the status codes that trigger retries.
// No codes disables retries on every code.
func (b *DavLockClientBuilder) WithRetryableCodes(retryable ...codes.Code) *DavLockClientBuilder {
	b.config.RetryPolicy.RetryableCodes = append([]codes.Code{}, retryable...)
	return b
}

// WithMetrics enables or disables metrics collection.
func (b *DavLockClientBuilder) WithMetrics(enabled bool) *DavLockClientBuilder {
	b.config.EnableMetrics = enabled
	return b
}

// WithMaxMessageSize sets the max gRPC message size (bytes).
func (b *DavLockClientBuilder) WithMaxMessageSize(size int) *DavLockClientBuilder {
	if size > 0 {
		b.config.MaxMessageSize = size
	}
	return b
}

// WithDialOptions appends extra gRPC dial options.
func (b *DavLockClientBuilder) WithDialOptions(opts ...grpc.DialOption) *DavLockClientBuilder {
	b.config.DialOptions = append(b.config.DialOptions, opts...)
	return b
}

// Config returns a copy of the configuration built so far.
func (b *DavLockClientBuilder) Config() Config {
	return b.config
}

// Build returns a configured Client.
func (b *DavLockClientBuilder) Build() (Client, error) {
	if b.config.Endpoint == "" {
		return nil, errors.New("builder: endpoint must be set")
	}
	return New(b.config)
}
