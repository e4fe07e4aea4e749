// Package sqlstore persists the active-lock table in SQLite so a restarted
// daemon can recover the locks it granted.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/types"
)

// ErrStoreBusy indicates SQLITE_BUSY or SQLITE_LOCKED after the busy timeout elapsed.
var ErrStoreBusy = errors.New("sqlstore: database is busy")

// Config controls how the SQLite database is opened.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a lock.Store backed by a SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

var (
	_ lock.Store         = (*Store)(nil)
	_ lock.ExpiredPruner = (*Store)(nil)
)

// Open opens (creating if needed) the database at cfg.Path, applies pragmas
// and runs pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlstore: path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Path, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", cfg.Path, err)
	}

	s := &Store{db: db}
	if err := s.applyPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlstore: apply pragma (%s): %w", p, err)
		}
	}
	return nil
}

// Save inserts or replaces the row for info.Token.
func (s *Store) Save(ctx context.Context, info types.LockInfo) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO locks(token, path, recursive, owner, access, share, timeout_ns, issued_at_ns, expires_at_ns)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(token) DO UPDATE SET
  path = excluded.path,
  recursive = excluded.recursive,
  owner = excluded.owner,
  access = excluded.access,
  share = excluded.share,
  timeout_ns = excluded.timeout_ns,
  issued_at_ns = excluded.issued_at_ns,
  expires_at_ns = excluded.expires_at_ns;
`,
		string(info.Token),
		info.Path,
		boolToInt(info.Recursive),
		info.Owner,
		info.Access.String(),
		info.Share.String(),
		int64(info.Timeout),
		info.IssuedAt.UnixNano(),
		unixNanoOrZero(info.ExpiresAt),
	)
	return mapErr("save", err)
}

// Delete removes the row for token. Missing rows are ignored.
func (s *Store) Delete(ctx context.Context, token types.StateToken) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE token = ?;`, string(token))
	return mapErr("delete", err)
}

// Load returns every persisted row ordered by issuance.
func (s *Store) Load(ctx context.Context) ([]types.LockInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT token, path, recursive, owner, access, share, timeout_ns, issued_at_ns, expires_at_ns
FROM locks
ORDER BY issued_at_ns, token;
`)
	if err != nil {
		return nil, mapErr("load", err)
	}
	defer rows.Close()

	var out []types.LockInfo
	for rows.Next() {
		var (
			token, path, owner, access, share string
			recursive                         int
			timeoutNs, issuedNs, expiresNs    int64
		)
		if err := rows.Scan(&token, &path, &recursive, &owner, &access, &share, &timeoutNs, &issuedNs, &expiresNs); err != nil {
			return nil, mapErr("load", err)
		}

		accessType, err := types.ParseAccessType(access)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: row %s: %w", token, err)
		}
		shareMode, err := types.ParseShareMode(share)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: row %s: %w", token, err)
		}

		info := types.LockInfo{
			Token:     types.StateToken(token),
			Path:      path,
			Recursive: recursive != 0,
			Owner:     owner,
			Access:    accessType,
			Share:     shareMode,
			Timeout:   time.Duration(timeoutNs),
			IssuedAt:  time.Unix(0, issuedNs),
		}
		if expiresNs != 0 {
			info.ExpiresAt = time.Unix(0, expiresNs)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("load", err)
	}
	return out, nil
}

// DeleteExpired removes rows that expired at or before now and returns how
// many were removed. lock.LockManager.Recover calls it before loading.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM locks WHERE expires_at_ns != 0 AND expires_at_ns <= ?;`,
		now.UnixNano(),
	)
	if err != nil {
		return 0, mapErr("delete expired", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return fmt.Errorf("%w: %s: %v", ErrStoreBusy, op, err)
	}
	return fmt.Errorf("sqlstore: %s: %w", op, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
