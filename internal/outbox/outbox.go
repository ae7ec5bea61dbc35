// Package outbox renders a bridged user's stored posts as ActivityPub
// Create activities.
package outbox

import (
	"context"
	"log/slog"

	"github.com/primal-host/primal-bridge/internal/content"
	"github.com/primal-host/primal-bridge/internal/federation"
	"github.com/primal-host/primal-bridge/internal/follower"
	"github.com/primal-host/primal-bridge/internal/post"
)

// Syncer refreshes a user's posts before they are read.
type Syncer interface {
	SyncPosts(ctx context.Context, username string) (content.Outcome, error)
}

// Materializer builds outbox items from the post store.
type Materializer struct {
	followers *follower.Registry
	syncer    Syncer
	posts     *post.Store
	urls      *federation.URLs
	log       *slog.Logger
}

// NewMaterializer creates a Materializer.
func NewMaterializer(followers *follower.Registry, syncer Syncer, posts *post.Store, urls *federation.URLs, log *slog.Logger) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	return &Materializer{
		followers: followers,
		syncer:    syncer,
		posts:     posts,
		urls:      urls,
		log:       log.With("component", "outbox"),
	}
}

// List returns the user's posts as Create activities, newest first. Users
// nobody follows have an empty outbox and trigger no platform traffic.
func (m *Materializer) List(ctx context.Context, username string) ([]*federation.Create, error) {
	followed, err := m.followers.HasFollowers(ctx, username)
	if err != nil {
		return nil, err
	}
	if !followed {
		return []*federation.Create{}, nil
	}

	outcome, err := m.syncer.SyncPosts(ctx, username)
	if err != nil {
		return nil, err
	}
	m.log.Debug("outbox sync", "username", username, "outcome", outcome)

	posts, err := m.posts.ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	items := make([]*federation.Create, 0, len(posts))
	for i := range posts {
		items = append(items, m.toCreate(&posts[i]))
	}
	return items, nil
}

func (m *Materializer) toCreate(p *post.Post) *federation.Create {
	actor := m.urls.ActorURI(p.Username)
	published := federation.FormatTime(p.CreatedAt)
	to := federation.Audience{federation.PublicAudience}
	cc := federation.Audience{m.urls.FollowersURI(p.Username)}

	return &federation.Create{
		ID:        m.urls.CreateURI(p.Username, p.PostID),
		Type:      federation.TypeCreate,
		Actor:     actor,
		Published: published,
		To:        to,
		Cc:        cc,
		Object: &federation.Note{
			ID:           m.urls.NoteURI(p.Username, p.PostID),
			Type:         federation.TypeNote,
			AttributedTo: actor,
			Content:      p.Title,
			Published:    published,
			To:           to,
			Cc:           cc,
			Sensitive:    p.Sensitive,
		},
	}
}
