// Package post persists the platform posts mirrored for each bridged user.
package post

import (
	"context"
	"fmt"

	"github.com/primal-host/primal-bridge/internal/database"
)

// Post is a platform post stored locally. RawContent is the platform's
// content blocks serialized as JSON and is opaque to the bridge.
type Post struct {
	PostID     string `json:"postId"`
	Username   string `json:"username"`
	Title      string `json:"title"`
	RawContent string `json:"rawContent"`
	Sensitive  bool   `json:"sensitive"`
	CreatedAt  int64  `json:"createdAt"`
}

// Store provides post persistence backed by SQLite.
type Store struct {
	db *database.DB
}

// NewStore creates a post Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts the post or overwrites the row with the same post ID.
func (s *Store) Upsert(ctx context.Context, p *Post) error {
	_, err := s.db.SQL.ExecContext(ctx,
		`INSERT INTO posts (post_id, username, title, raw_content, sensitive, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (post_id) DO UPDATE SET
		     username    = excluded.username,
		     title       = excluded.title,
		     raw_content = excluded.raw_content,
		     sensitive   = excluded.sensitive,
		     created_at  = excluded.created_at`,
		p.PostID, p.Username, p.Title, p.RawContent, p.Sensitive, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("post: upsert %q: %w", p.PostID, err)
	}
	return nil
}

// ListByUser returns all stored posts of a user, newest first.
func (s *Store) ListByUser(ctx context.Context, username string) ([]Post, error) {
	rows, err := s.db.SQL.QueryContext(ctx,
		`SELECT post_id, username, title, raw_content, sensitive, created_at
		 FROM posts WHERE username = ?
		 ORDER BY created_at DESC, post_id DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("post: list %q: %w", username, err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.PostID, &p.Username, &p.Title, &p.RawContent, &p.Sensitive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("post: list scan: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
