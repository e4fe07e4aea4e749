package server

import "time"

const (
	// --- Default server configuration values ---

	// DefaultListenAddress is the default address for the gRPC endpoint.
	DefaultListenAddress = "127.0.0.1:7420"

	// DefaultRequestTimeout is the default timeout for processing individual client requests.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultMaxRequestSize is the default maximum size for incoming gRPC requests (4MB).
	DefaultMaxRequestSize = 4 * 1024 * 1024

	// DefaultMaxResponseSize is the default maximum size for outgoing gRPC responses (4MB).
	DefaultMaxResponseSize = 4 * 1024 * 1024

	// DefaultMaxConcurrentRequests is the default maximum number of requests processed at once.
	DefaultMaxConcurrentRequests = 1000

	// --- Rate limiting defaults ---

	// DefaultRateLimit is the default number of requests per window per client.
	DefaultRateLimit = 100

	// DefaultRateLimitBurst is the default burst size for rate limiting.
	DefaultRateLimitBurst = 200

	// DefaultRateLimitWindow is the default time window for rate limiting calculations.
	DefaultRateLimitWindow = time.Second

	// DefaultRateLimiterIdleTTL is how long an idle per-client limiter is kept.
	DefaultRateLimiterIdleTTL = 5 * time.Minute

	// --- Keepalive ---

	// DefaultGRPCKeepaliveTime is the interval after which the server pings an idle connection.
	DefaultGRPCKeepaliveTime = 30 * time.Second

	// DefaultGRPCKeepaliveTimeout is how long the server waits for a ping acknowledgment.
	DefaultGRPCKeepaliveTimeout = 5 * time.Second

	// DefaultGRPCKeepaliveMinTime is the minimum interval clients may ping at.
	// Faster clients are disconnected.
	DefaultGRPCKeepaliveMinTime = 10 * time.Second

	// --- Validation limits for client-provided data ---

	// MaxPathLength is the maximum allowed length of a resource path.
	MaxPathLength = 4096

	// MaxOwnerLength is the maximum allowed length of the opaque owner payload.
	MaxOwnerLength = 4096

	// MaxTokenLength is the maximum allowed length of a state token.
	MaxTokenLength = 256

	// MaxTokensPerRequest is the maximum number of tokens presented with one mutation.
	MaxTokensPerRequest = 64

	// MaxContentTypeLength is the maximum allowed length of a document content type.
	MaxContentTypeLength = 256

	// --- Time bounds for lock operations ---

	// MinLockTimeout is the minimum finite timeout a client may request.
	MinLockTimeout = 1 * time.Second

	// --- Pagination limits ---

	// DefaultPageLimit is the default number of items returned by GetLocks.
	DefaultPageLimit = 100

	// MaxPageLimit is the maximum number of items that can be requested in a single page.
	MaxPageLimit = 1000

	// --- Error message templates for validation ---

	ErrMsgInvalidPath        = "path must be an absolute, non-empty path of at most %d characters"
	ErrMsgInvalidToken       = "token must be a non-empty string of at most %d characters"
	ErrMsgInvalidTimeout     = "timeout must be at least %v"
	ErrMsgTooManyTokens      = "at most %d tokens may be presented"
	ErrMsgOwnerTooLong       = "owner cannot exceed %d characters"
	ErrMsgContentTypeTooLong = "content_type cannot exceed %d characters"
)

// ServerOperationalState defines the possible operational states of the server.
type ServerOperationalState string

const (
	ServerStateStarting ServerOperationalState = "starting"
	ServerStateRunning  ServerOperationalState = "running"
	ServerStateStopping ServerOperationalState = "stopping"
	ServerStateStopped  ServerOperationalState = "stopped"
)

// gRPC method names for metrics collection and logging
const (
	MethodLock             = "Lock"
	MethodRefresh          = "Refresh"
	MethodUnlock           = "Unlock"
	MethodGetLockInfo      = "GetLockInfo"
	MethodGetLocks         = "GetLocks"
	MethodStat             = "Stat"
	MethodList             = "List"
	MethodCreateDocument   = "CreateDocument"
	MethodCreateCollection = "CreateCollection"
	MethodDelete           = "Delete"
)

// Error types for metrics and logging (used with ServerMetrics.IncrValidationError/IncrServerError)
const (
	ErrorTypeMissingField  = "missing_field"
	ErrorTypeInvalidFormat = "invalid_format"
	ErrorTypeOutOfRange    = "out_of_range"
	ErrorTypeTooLong       = "too_long"
	ErrorTypeInternalError = "internal_error"
	ErrorTypeTimeout       = "timeout"
	ErrorTypeRateLimit     = "rate_limit_exceeded"
	ErrorTypeOverloaded    = "overloaded"
)
