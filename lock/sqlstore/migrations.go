package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// latestSchema is the highest migration version this package knows.
const latestSchema = 1

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ns INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("sqlstore: create schema_migrations: %w", err)
	}

	cur, err := currentVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if cur > latestSchema {
		return fmt.Errorf("sqlstore: database schema v%d is newer than supported v%d", cur, latestSchema)
	}
	for v := cur + 1; v <= latestSchema; v++ {
		if err := applyMigration(ctx, s.db, v); err != nil {
			return err
		}
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations;`).Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlstore: read schema version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	switch version {
	case 1:
		if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS locks (
  token TEXT PRIMARY KEY,
  path TEXT NOT NULL,
  recursive INTEGER NOT NULL,
  owner TEXT NOT NULL,
  access TEXT NOT NULL,
  share TEXT NOT NULL,
  timeout_ns INTEGER NOT NULL,
  issued_at_ns INTEGER NOT NULL,
  expires_at_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locks_expires_at ON locks(expires_at_ns);
CREATE INDEX IF NOT EXISTS idx_locks_path ON locks(path);
`); err != nil {
			return fmt.Errorf("sqlstore: migration v1 failed: %w", err)
		}
	default:
		return fmt.Errorf("sqlstore: unknown migration version: %d", version)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at_ns) VALUES(?, strftime('%s','now')*1000000000);`, version); err != nil {
		return err
	}
	return tx.Commit()
}
