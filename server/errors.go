package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/vfs"
)

var (
	ErrServerNotStarted     = errors.New("server: not running")
	ErrServerAlreadyStarted = errors.New("server: already running")
	ErrServerStopped        = errors.New("server: stopped")

	// ErrRateLimited is returned when a client exceeds its request rate.
	ErrRateLimited = errors.New("server: request rate limited")
	// ErrOverloaded is returned when MaxConcurrentReqs calls are in flight.
	ErrOverloaded = errors.New("server: too many concurrent requests")

	// ErrShutdownTimeout is returned by Stop when in-flight calls had to be
	// cut off.
	ErrShutdownTimeout = errors.New("server: shutdown timed out")

	// ErrInvalidRequest matches every *ValidationError.
	ErrInvalidRequest = errors.New("server: invalid request")
)

// ValidationError rejects a request field before it reaches the service.
type ValidationError struct {
	Field   string
	Value   any
	Message string
	// Type is one of the ErrorType* constants and labels the metric.
	Type    string
}

func NewValidationError(field string, value any, errorType, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message, Type: errorType}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("server: invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// ServerError is a failure of the server itself rather than of the
// request. Only Message is sent to clients.
type ServerError struct {
	Operation string
	Cause     error
	Message   string
}

func NewServerError(operation string, cause error, message string) *ServerError {
	return &ServerError{Operation: operation, Cause: cause, Message: message}
}

func (e *ServerError) Error() string {
	if e.Cause == nil {
		return "server: " + e.Operation + ": " + e.Message
	}
	return fmt.Sprintf("server: %s: %s: %v", e.Operation, e.Message, e.Cause)
}

func (e *ServerError) Unwrap() error { return e.Cause }

// ErrorToStatus converts a handler error into a gRPC status error.
// Errors that already carry a status are returned unchanged.
func ErrorToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		validationErr *ValidationError
		conflictErr   *lock.ConflictError
		serverErr     *ServerError
	)

	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, validationErr.Field+": "+validationErr.Message)

	case errors.As(err, &conflictErr):
		tokens := make([]string, len(conflictErr.Tokens))
		for i, t := range conflictErr.Tokens {
			tokens[i] = string(t)
		}
		return status.Errorf(codes.Aborted, "%s is locked by [%s]", conflictErr.Path, strings.Join(tokens, ", "))
	case errors.Is(err, lock.ErrConflict):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, lock.ErrInvalidToken):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, vfs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, vfs.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, vfs.ErrAlreadyExists), errors.Is(err, vfs.ErrMountExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, vfs.ErrNotCollection),
		errors.Is(err, vfs.ErrNotDocument),
		errors.Is(err, vfs.ErrMountPoint),
		errors.Is(err, vfs.ErrCrossMount):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, vfs.ErrInvalidPath),
		errors.Is(err, lock.ErrInvalidPath),
		errors.Is(err, lock.ErrInvalidTimeout),
		errors.Is(err, lock.ErrInvalidAccessType),
		errors.Is(err, lock.ErrInvalidShareMode),
		errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, lock.ErrTooManyLocks),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrOverloaded):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, lock.ErrManagerClosed),
		errors.Is(err, ErrServerNotStarted),
		errors.Is(err, ErrServerStopped):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.As(err, &serverErr):
		return status.Error(codes.Internal, serverErr.Message)
	default:
		return status.Error(codes.Internal, "an unexpected internal error occurred")
	}
}
