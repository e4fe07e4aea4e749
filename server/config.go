package server

import (
	"fmt"
	"net"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
)

// Config holds the configuration settings for a server instance.
type Config struct {
	// ListenAddress is the gRPC bind address (e.g., "127.0.0.1:7420").
	// Ignored when Listener is set.
	ListenAddress string

	// Listener, if set, is served instead of listening on ListenAddress.
	Listener net.Listener

	RequestTimeout    time.Duration // Max time to handle a client request
	ShutdownTimeout   time.Duration // Max time allowed for graceful shutdown
	MaxRequestSize    int           // Maximum size of incoming requests (in bytes)
	MaxResponseSize   int           // Maximum size of outgoing responses (in bytes)
	MaxConcurrentReqs int           // Max number of requests processed in parallel

	EnableRateLimit bool          // Whether rate limiting is enforced
	RateLimit       int           // Requests per window allowed per client
	RateLimitBurst  int           // Burst capacity for client requests
	RateLimitWindow time.Duration // Time window used for rate calculation

	KeepaliveTime    time.Duration // Idle time before the server pings a client
	KeepaliveTimeout time.Duration // Wait for a ping acknowledgment
	KeepaliveMinTime time.Duration // Minimum ping interval clients may use

	Logger  logger.Logger
	Metrics ServerMetrics
	Clock   clock.Clock
}

// DefaultConfig returns a Config pre-populated with safe defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddress:     DefaultListenAddress,
		RequestTimeout:    DefaultRequestTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MaxRequestSize:    DefaultMaxRequestSize,
		MaxResponseSize:   DefaultMaxResponseSize,
		MaxConcurrentReqs: DefaultMaxConcurrentRequests,
		EnableRateLimit:   false,
		RateLimit:         DefaultRateLimit,
		RateLimitBurst:    DefaultRateLimitBurst,
		RateLimitWindow:   DefaultRateLimitWindow,
		KeepaliveTime:     DefaultGRPCKeepaliveTime,
		KeepaliveTimeout:  DefaultGRPCKeepaliveTimeout,
		KeepaliveMinTime:  DefaultGRPCKeepaliveMinTime,
		Logger:            logger.NewNoOpLogger(),
		Metrics:           NewNoOpServerMetrics(),
		Clock:             clock.NewStandardClock(),
	}
}

// Validate checks if the server configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddress == "" && c.Listener == nil {
		return NewConfigError("ListenAddress cannot be empty")
	}

	checkPositiveDuration := func(val time.Duration, name string) error {
		if val <= 0 {
			return NewConfigError(fmt.Sprintf("%s must be positive", name))
		}
		return nil
	}

	checkPositiveInt := func(val int, name string) error {
		if val <= 0 {
			return NewConfigError(fmt.Sprintf("%s must be positive", name))
		}
		return nil
	}

	if err := checkPositiveDuration(c.RequestTimeout, "RequestTimeout"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.ShutdownTimeout, "ShutdownTimeout"); err != nil {
		return err
	}
	if err := checkPositiveInt(c.MaxRequestSize, "MaxRequestSize"); err != nil {
		return err
	}
	if err := checkPositiveInt(c.MaxResponseSize, "MaxResponseSize"); err != nil {
		return err
	}
	if err := checkPositiveInt(c.MaxConcurrentReqs, "MaxConcurrentReqs"); err != nil {
		return err
	}

	if c.EnableRateLimit {
		if err := checkPositiveInt(c.RateLimit, "RateLimit"); err != nil {
			return err
		}
		if err := checkPositiveInt(c.RateLimitBurst, "RateLimitBurst"); err != nil {
			return err
		}
		if err := checkPositiveDuration(c.RateLimitWindow, "RateLimitWindow"); err != nil {
			return err
		}
	}

	if err := checkPositiveDuration(c.KeepaliveTime, "KeepaliveTime"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.KeepaliveTimeout, "KeepaliveTimeout"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.KeepaliveMinTime, "KeepaliveMinTime"); err != nil {
		return err
	}

	return nil
}

// ConfigError represents a validation error in Config.
type ConfigError struct {
	Message string
}

// NewConfigError returns a new ConfigError instance.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{Message: msg}
}

func (e *ConfigError) Error() string {
	return "server config error: " + e.Message
}
