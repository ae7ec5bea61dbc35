package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primal-host/primal-bridge/internal/account"
	"github.com/primal-host/primal-bridge/internal/database"
	"github.com/primal-host/primal-bridge/internal/follower"
	"github.com/primal-host/primal-bridge/internal/platform"
	"github.com/primal-host/primal-bridge/internal/post"
	"github.com/primal-host/primal-bridge/internal/user"
)

const remoteActor = "https://remote.example/users/bob"

type fakePlatform struct {
	calls int
	posts []platform.PostInfo
	err   error
}

func (f *fakePlatform) GetUser(_ context.Context, username string) (*platform.UserInfo, error) {
	if username != "alice" {
		return nil, platform.ErrNotFound
	}
	return &platform.UserInfo{Username: "alice", UserID: "42"}, nil
}

func (f *fakePlatform) ListPosts(_ context.Context, userID, cursor string) ([]platform.PostInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.posts, nil
}

type fixture struct {
	sync      *Synchronizer
	platform  *fakePlatform
	users     *user.Store
	posts     *post.Store
	followers *follower.Registry
	clock     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		platform: &fakePlatform{posts: []platform.PostInfo{
			{PostID: "p1", Title: "first", Content: []json.RawMessage{json.RawMessage(`{"type":"text","text":"hi"}`)}, CreateTime: 100},
			{PostID: "p2", Title: "second", IsSensitive: true, CreateTime: 200},
		}},
		users:     user.NewStore(db),
		posts:     post.NewStore(db),
		followers: follower.NewRegistry(db),
		clock:     time.UnixMilli(10_000_000),
	}
	accounts := account.NewProvisioner(f.users, f.platform, nil, nil)
	f.sync = NewSynchronizer(accounts, f.users, f.posts, f.followers, f.platform, 5*time.Minute, nil, nil)
	f.sync.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) follow(t *testing.T) {
	t.Helper()
	_, err := f.sync.accounts.EnsureUser(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, f.followers.Record(context.Background(), "alice", remoteActor))
}

func TestSyncPosts_UnknownUser(t *testing.T) {
	f := setup(t)

	outcome, err := f.sync.SyncPosts(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, SkippedUnknown, outcome)
	assert.Zero(t, f.platform.calls)
}

func TestSyncPosts_NoFollowersNoFetch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outcome, err := f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, SkippedUnfollowed, outcome)
	assert.Zero(t, f.platform.calls)

	posts, err := f.posts.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSyncPosts_StoresPostsAndSyncTime(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.follow(t)

	outcome, err := f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Synced, outcome)
	assert.Equal(t, 1, f.platform.calls)

	posts, err := f.posts.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].PostID)
	assert.True(t, posts[0].Sensitive)
	assert.Equal(t, "[]", posts[0].RawContent)
	assert.Equal(t, "p1", posts[1].PostID)
	assert.JSONEq(t, `[{"type":"text","text":"hi"}]`, posts[1].RawContent)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.clock.UnixMilli(), u.LastPostSyncAt)
}

func TestSyncPosts_TTLGate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.follow(t)

	outcome, err := f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, Synced, outcome)

	f.clock = f.clock.Add(time.Minute)
	outcome, err = f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, SkippedFresh, outcome)
	assert.Equal(t, 1, f.platform.calls)

	f.clock = f.clock.Add(5 * time.Minute)
	outcome, err = f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Synced, outcome)
	assert.Equal(t, 2, f.platform.calls)
}

func TestSyncPosts_UpsertKeepsLatestTitle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.follow(t)

	_, err := f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)

	f.platform.posts = []platform.PostInfo{{PostID: "p1", Title: "edited", CreateTime: 100}}
	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)

	posts, err := f.posts.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "edited", posts[1].Title)
}

func TestSyncPosts_FetchFailureLeavesSyncTime(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.follow(t)
	f.platform.err = errors.New("boom")

	outcome, err := f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, SkippedUnavailable, outcome)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, u.LastPostSyncAt)

	f.platform.err = nil
	outcome, err = f.sync.SyncPosts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Synced, outcome)
}

func TestSyncPosts_UntrimmedUsername(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.follow(t)

	outcome, err := f.sync.SyncPosts(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, Synced, outcome)

	posts, err := f.posts.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.clock.UnixMilli(), u.LastPostSyncAt)
}
