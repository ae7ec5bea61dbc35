// Package user provides the data model and persistence for bridged
// platform accounts. A user row exists once the platform has confirmed the
// account; it is never deleted.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/primal-host/primal-bridge/internal/database"
)

// ErrNotFound is returned when no row matches a username.
var ErrNotFound = errors.New("user: not found")

// User is a bridged platform account. Times are epoch milliseconds.
type User struct {
	Username          string `json:"username"`
	PlatformUserID    string `json:"platformUserId"`
	Description       string `json:"description"`
	AvatarURL         string `json:"avatarUrl"`
	CreatedAt         int64  `json:"createdAt"`
	LastPostSyncAt    int64  `json:"lastPostSyncAt"`
	LastCommentSyncAt int64  `json:"lastCommentSyncAt"`

	// PublicKey and PrivateKey are JWK exports, empty until generated.
	PublicKey  string `json:"-"`
	PrivateKey string `json:"-"`
}

// HasKeys reports whether both halves of the signing key are stored.
func (u *User) HasKeys() bool {
	return u.PublicKey != "" && u.PrivateKey != ""
}

// Store provides user persistence backed by SQLite.
type Store struct {
	db *database.DB
}

// NewStore creates a user Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `SELECT username, platform_user_id, description, avatar_url,
	created_at, last_post_sync_at, last_comment_sync_at, public_key, private_key
	FROM users`

// Get returns the user with the given username.
// Returns ErrNotFound if no row matches.
func (s *Store) Get(ctx context.Context, username string) (*User, error) {
	var (
		u         User
		pub, priv sql.NullString
	)
	err := s.db.SQL.QueryRowContext(ctx, selectColumns+` WHERE username = ?`, username).Scan(
		&u.Username, &u.PlatformUserID, &u.Description, &u.AvatarURL,
		&u.CreatedAt, &u.LastPostSyncAt, &u.LastCommentSyncAt, &pub, &priv,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("user: get %q: %w", username, err)
	}
	u.PublicKey = pub.String
	u.PrivateKey = priv.String
	return &u, nil
}

// Insert adds a user with zero sync times and no keys. An existing row for
// the same username is left untouched, so concurrent first lookups of one
// account are harmless.
func (s *Store) Insert(ctx context.Context, u *User) error {
	_, err := s.db.SQL.ExecContext(ctx,
		`INSERT INTO users (username, platform_user_id, description, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		u.Username, u.PlatformUserID, u.Description, u.AvatarURL, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("user: insert %q: %w", u.Username, err)
	}
	return nil
}

// SetKeys stores the key exports only if the row has none yet. It reports
// whether this call wrote them; a false result means another caller won
// and the stored keys should be read back.
func (s *Store) SetKeys(ctx context.Context, username, publicKey, privateKey string) (bool, error) {
	res, err := s.db.SQL.ExecContext(ctx,
		`UPDATE users SET public_key = ?, private_key = ?
		 WHERE username = ? AND (public_key IS NULL OR private_key IS NULL
		       OR public_key = '' OR private_key = '')`,
		publicKey, privateKey, username,
	)
	if err != nil {
		return false, fmt.Errorf("user: set keys %q: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("user: set keys %q: %w", username, err)
	}
	return n > 0, nil
}

// SetPostSyncedAt records the time of the last successful post fetch.
func (s *Store) SetPostSyncedAt(ctx context.Context, username string, ms int64) error {
	res, err := s.db.SQL.ExecContext(ctx,
		`UPDATE users SET last_post_sync_at = ? WHERE username = ?`, ms, username)
	if err != nil {
		return fmt.Errorf("user: set post sync time %q: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return nil
}

// Count returns the number of bridged users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("user: count: %w", err)
	}
	return n, nil
}
