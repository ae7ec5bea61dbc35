package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. It is created once at process start and
// passed to every store; there is no package-level handle.
type DB struct {
	SQL *sql.DB
}

// pragmas are applied to the single connection right after opening.
var pragmas = []string{
	`PRAGMA journal_mode = WAL`,
	`PRAGMA foreign_keys = ON`,
	`PRAGMA busy_timeout = 5000`,
}

// Open opens the SQLite database at path (":memory:" works for tests),
// enables write-ahead logging and bootstraps the schema.
//
// The pool is limited to a single connection, so statements from
// concurrent requests are serialized by database/sql. Correctness under
// interleaving relies on idempotent writes, not on transactions.
func Open(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("database: %s: %w", p, err)
		}
	}

	if _, err := sqlDB.ExecContext(ctx, Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database: bootstrap schema: %w", err)
	}

	return &DB{SQL: sqlDB}, nil
}

// Close shuts down the handle. Call this during graceful shutdown.
func (db *DB) Close() error {
	return db.SQL.Close()
}
