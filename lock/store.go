package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jathurchan/davlock/types"
)

// Store persists a mirror of the active-lock table.
// The in-memory table stays authoritative: all conflict checks run against
// it, and the store only replays state across restarts via Recover.
// Writes reach the store asynchronously, in table order. Ephemeral locks
// are never written.
type Store interface {
	// Save inserts or replaces the row for info.Token.
	Save(ctx context.Context, info types.LockInfo) error

	// Delete removes the row for token. Deleting a missing row is not an error.
	Delete(ctx context.Context, token types.StateToken) error

	// Load returns every persisted row.
	Load(ctx context.Context) ([]types.LockInfo, error)

	Close() error
}

// ExpiredPruner is implemented by stores that can drop expired rows in bulk.
// Recover calls it before loading.
type ExpiredPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NewStateToken returns a fresh "opaquelocktoken:" URI backed by a random UUID.
func NewStateToken() types.StateToken {
	return types.StateToken(TokenScheme + uuid.NewString())
}
