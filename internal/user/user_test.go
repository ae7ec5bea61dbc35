package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primal-host/primal-bridge/internal/database"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestInsertAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &User{
		Username:       "alice",
		PlatformUserID: "42",
		Description:    "hi",
		AvatarURL:      "https://cdn.example/a.png",
		CreatedAt:      1700000000000,
	}))

	u, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", u.PlatformUserID)
	assert.Equal(t, "hi", u.Description)
	assert.Equal(t, int64(1700000000000), u.CreatedAt)
	assert.Zero(t, u.LastPostSyncAt)
	assert.Zero(t, u.LastCommentSyncAt)
	assert.False(t, u.HasKeys())
}

func TestGet_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsert_DuplicateIsIgnored(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &User{Username: "alice", PlatformUserID: "1"}))
	require.NoError(t, s.Insert(ctx, &User{Username: "alice", PlatformUserID: "2"}))

	u, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", u.PlatformUserID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSetKeys_OnlyFirstWriteWins(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, &User{Username: "alice", PlatformUserID: "1"}))

	wrote, err := s.SetKeys(ctx, "alice", "pub-1", "priv-1")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = s.SetKeys(ctx, "alice", "pub-2", "priv-2")
	require.NoError(t, err)
	assert.False(t, wrote)

	u, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.HasKeys())
	assert.Equal(t, "pub-1", u.PublicKey)
	assert.Equal(t, "priv-1", u.PrivateKey)
}

func TestSetPostSyncedAt(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, &User{Username: "alice", PlatformUserID: "1"}))

	require.NoError(t, s.SetPostSyncedAt(ctx, "alice", 12345))
	u, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), u.LastPostSyncAt)

	err = s.SetPostSyncedAt(ctx, "bob", 1)
	require.ErrorIs(t, err, ErrNotFound)
}
