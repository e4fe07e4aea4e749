package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common client errors
var (
	// ErrLocked is returned when a conflicting lock prevents the operation.
	ErrLocked = errors.New("resource is locked")

	// ErrNoSuchLock is returned when a token does not name an active lock.
	ErrNoSuchLock = errors.New("no such lock")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied is returned when writing to a read-only filesystem.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyExists is returned when creating a resource that already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrFailedPrecondition is returned when the resource is of the wrong kind
	// or the operation would cross or remove a mount point.
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrInvalidArgument is returned when request parameters are invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimit is returned when the request was rate limited or the server is overloaded.
	ErrRateLimit = errors.New("request rate limited")

	// ErrUnavailable is returned when the service is unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
)

// ClientError wraps an error with additional client context.
type ClientError struct {
	Op      string     // Operation that failed
	Err     error      // Underlying error
	Code    codes.Code // gRPC status code from the server
	Message string     // Server-provided status message
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client %s failed: %v (code: %v): %s", e.Op, e.Err, e.Code, e.Message)
	}
	return fmt.Sprintf("client %s failed: %v (code: %v)", e.Op, e.Err, e.Code)
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(op string, err error, code codes.Code, message string) *ClientError {
	return &ClientError{
		Op:      op,
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// tokenOps are operations whose NotFound status means the token is unknown
// rather than the resource.
var tokenOps = map[string]bool{
	opRefresh:     true,
	opUnlock:      true,
	opGetLockInfo: true,
}

// ErrorFromCode maps a gRPC status code to a client sentinel error.
func ErrorFromCode(op string, code codes.Code) error {
	switch code {
	case codes.Aborted:
		return ErrLocked
	case codes.NotFound:
		if tokenOps[op] {
			return ErrNoSuchLock
		}
		return ErrNotFound
	case codes.PermissionDenied:
		return ErrPermissionDenied
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.FailedPrecondition:
		return ErrFailedPrecondition
	case codes.InvalidArgument:
		return ErrInvalidArgument
	case codes.ResourceExhausted:
		return ErrRateLimit
	case codes.Unavailable:
		return ErrUnavailable
	case codes.DeadlineExceeded:
		return ErrTimeout
	default:
		return fmt.Errorf("unexpected status code: %v", code)
	}
}

// wrapError converts a gRPC error into a *ClientError. A canceled call
// becomes context.Canceled; context and non-status errors are returned
// unchanged.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.Canceled {
		return context.Canceled
	}
	return NewClientError(op, ErrorFromCode(op, st.Code()), st.Code(), st.Message())
}
