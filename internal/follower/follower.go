// Package follower tracks which remote actors follow which bridged user.
// The registry doubles as the demand gate for syncing and outbox work.
package follower

import (
	"context"
	"fmt"

	"github.com/primal-host/primal-bridge/internal/database"
)

// Registry provides follower persistence backed by SQLite.
type Registry struct {
	db *database.DB
}

// NewRegistry creates a follower Registry.
func NewRegistry(db *database.DB) *Registry {
	return &Registry{db: db}
}

// HasFollowers reports whether at least one remote actor follows username.
func (r *Registry) HasFollowers(ctx context.Context, username string) (bool, error) {
	n, err := r.Count(ctx, username)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of followers of username.
func (r *Registry) Count(ctx context.Context, username string) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM followers WHERE username = ?`, username,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("follower: count %q: %w", username, err)
	}
	return n, nil
}

// Record stores that actor follows username. Recording an existing pair is
// a no-op.
func (r *Registry) Record(ctx context.Context, username, actor string) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO followers (username, actor) VALUES (?, ?)
		 ON CONFLICT (username, actor) DO NOTHING`,
		username, actor,
	)
	if err != nil {
		return fmt.Errorf("follower: record %q <- %q: %w", username, actor, err)
	}
	return nil
}

// Remove deletes the pair. Removing an absent pair is a no-op.
func (r *Registry) Remove(ctx context.Context, username, actor string) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`DELETE FROM followers WHERE username = ? AND actor = ?`, username, actor)
	if err != nil {
		return fmt.Errorf("follower: remove %q <- %q: %w", username, actor, err)
	}
	return nil
}
