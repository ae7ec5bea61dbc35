// Package content pulls a bridged user's latest posts from the platform
// into the local store. A pull only happens when someone follows the user
// and the previous pull is older than the sync TTL.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/primal-host/primal-bridge/internal/follower"
	"github.com/primal-host/primal-bridge/internal/metrics"
	"github.com/primal-host/primal-bridge/internal/platform"
	"github.com/primal-host/primal-bridge/internal/post"
	"github.com/primal-host/primal-bridge/internal/user"
)

// Outcome describes what a SyncPosts call did.
type Outcome string

const (
	Synced             Outcome = "synced"
	SkippedUnknown     Outcome = "skipped_unknown"
	SkippedUnfollowed  Outcome = "skipped_unfollowed"
	SkippedFresh       Outcome = "skipped_fresh"
	SkippedUnavailable Outcome = "skipped_unavailable"
)

// Users admits usernames into the store.
type Users interface {
	EnsureUser(ctx context.Context, username string) (*user.User, error)
}

// PostLister is the part of the platform client the synchronizer needs.
type PostLister interface {
	ListPosts(ctx context.Context, userID, cursor string) ([]platform.PostInfo, error)
}

// Synchronizer mirrors the latest page of a user's posts.
type Synchronizer struct {
	accounts  Users
	users     *user.Store
	posts     *post.Store
	followers *follower.Registry
	platform  PostLister
	ttl       time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics

	now func() time.Time
}

// NewSynchronizer creates a Synchronizer that pulls at most once per ttl
// for each user.
func NewSynchronizer(accounts Users, users *user.Store, posts *post.Store, followers *follower.Registry,
	lister PostLister, ttl time.Duration, log *slog.Logger, m *metrics.Metrics) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		accounts:  accounts,
		users:     users,
		posts:     posts,
		followers: followers,
		platform:  lister,
		ttl:       ttl,
		log:       log.With("component", "content"),
		metrics:   m,
		now:       time.Now,
	}
}

// SyncPosts pulls the user's latest posts if every gate passes: the user
// exists, has at least one follower, and was not synced within the TTL.
// A failed fetch is not an error; the sync time is left untouched so the
// next call retries.
func (s *Synchronizer) SyncPosts(ctx context.Context, username string) (Outcome, error) {
	outcome, err := s.syncPosts(ctx, username)
	if err == nil {
		s.metrics.PostSync(string(outcome))
	}
	return outcome, err
}

func (s *Synchronizer) syncPosts(ctx context.Context, username string) (Outcome, error) {
	u, err := s.accounts.EnsureUser(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return SkippedUnknown, nil
	}
	username = u.Username

	followed, err := s.followers.HasFollowers(ctx, username)
	if err != nil {
		return "", err
	}
	if !followed {
		return SkippedUnfollowed, nil
	}

	now := s.now()
	if now.UnixMilli()-u.LastPostSyncAt < s.ttl.Milliseconds() {
		return SkippedFresh, nil
	}

	infos, err := s.platform.ListPosts(ctx, u.PlatformUserID, "")
	s.metrics.PlatformFetch("posts", err)
	if err != nil {
		s.log.Warn("post fetch failed", "username", username, "error", err)
		return SkippedUnavailable, nil
	}

	for _, info := range infos {
		if info.PostID == "" {
			s.log.Warn("skipping post without id", "username", username)
			continue
		}
		raw, err := encodeContent(info.Content)
		if err != nil {
			return "", fmt.Errorf("content: encode post %s: %w", info.PostID, err)
		}
		err = s.posts.Upsert(ctx, &post.Post{
			PostID:     string(info.PostID),
			Username:   username,
			Title:      info.Title,
			RawContent: raw,
			Sensitive:  bool(info.IsSensitive),
			CreatedAt:  info.CreateTime.Millis(),
		})
		if err != nil {
			return "", err
		}
	}

	if err := s.users.SetPostSyncedAt(ctx, username, now.UnixMilli()); err != nil {
		return "", err
	}
	s.log.Info("posts synced", "username", username, "count", len(infos))
	return Synced, nil
}

func encodeContent(blocks []json.RawMessage) (string, error) {
	if blocks == nil {
		blocks = []json.RawMessage{}
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
