package lock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jathurchan/davlock/types"
)

var (
	// ErrConflict indicates that a requested lock overlaps an incompatible active lock,
	// or that a conditional mutation did not present the tokens of the locks guarding it.
	ErrConflict = errors.New("lockmanager: conflicting lock")

	// ErrInvalidToken indicates that a token does not name an active lock.
	ErrInvalidToken = errors.New("lockmanager: invalid lock token")

	// ErrInvalidTimeout indicates a timeout that is neither positive nor InfiniteTimeout.
	ErrInvalidTimeout = errors.New("lockmanager: invalid timeout")

	// ErrInvalidPath indicates an empty or relative resource path.
	ErrInvalidPath = errors.New("lockmanager: invalid path")

	// ErrInvalidAccessType indicates an access type outside the known enumeration.
	ErrInvalidAccessType = errors.New("lockmanager: invalid access type")

	// ErrInvalidShareMode indicates a share mode outside the known enumeration.
	ErrInvalidShareMode = errors.New("lockmanager: invalid share mode")

	// ErrTooManyLocks indicates that the manager already tracks MaxLocks active locks.
	ErrTooManyLocks = errors.New("lockmanager: too many active locks")

	// ErrManagerClosed indicates an operation on a manager that has been closed.
	ErrManagerClosed = errors.New("lockmanager: manager is closed")
)

// ConflictError reports the active locks that prevented a request.
// It matches ErrConflict with errors.Is.
type ConflictError struct {
	// Path is the resource path of the rejected request.
	Path string

	// Tokens lists the conflicting locks.
	Tokens []types.StateToken
}

func (e *ConflictError) Error() string {
	tokens := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		tokens[i] = string(t)
	}
	return fmt.Sprintf("%v: %s is locked by [%s]", ErrConflict, e.Path, strings.Join(tokens, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvalidTokenError reports a token that is unknown, expired or already released.
// It matches ErrInvalidToken with errors.Is.
type InvalidTokenError struct {
	Token types.StateToken
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidToken, e.Token)
}

func (e *InvalidTokenError) Is(target error) bool {
	return target == ErrInvalidToken
}
