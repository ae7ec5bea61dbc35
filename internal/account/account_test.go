package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primal-host/primal-bridge/internal/database"
	"github.com/primal-host/primal-bridge/internal/federation"
	"github.com/primal-host/primal-bridge/internal/platform"
	"github.com/primal-host/primal-bridge/internal/user"
)

type fakeLookup struct {
	mu    sync.Mutex
	calls int
	users map[string]*platform.UserInfo
	err   error
}

func (f *fakeLookup) GetUser(_ context.Context, username string) (*platform.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return u, nil
}

func setup(t *testing.T) (*Provisioner, *fakeLookup, *user.Store) {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	lookup := &fakeLookup{users: map[string]*platform.UserInfo{
		"alice": {Username: "alice", UserID: "42", Description: "hello", Avatar: "https://cdn.example/a.png", CreateTime: 1700000000000},
	}}
	users := user.NewStore(db)
	return NewProvisioner(users, lookup, nil, nil), lookup, users
}

func TestEnsureUser_FetchesOnceThenReadsLocally(t *testing.T) {
	p, lookup, users := setup(t)
	ctx := context.Background()

	first, err := p.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "42", first.PlatformUserID)
	assert.Equal(t, "hello", first.Description)
	assert.Equal(t, int64(1700000000000), first.CreatedAt)
	assert.Zero(t, first.LastPostSyncAt)

	second, err := p.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, lookup.calls)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureUser_UnknownAccount(t *testing.T) {
	p, lookup, users := setup(t)
	ctx := context.Background()

	u, err := p.EnsureUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, 1, lookup.calls)

	_, err = users.Get(ctx, "ghost")
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestEnsureUser_PlatformDownIsAbsence(t *testing.T) {
	p, lookup, _ := setup(t)
	lookup.err = errors.New("connection refused")

	u, err := p.EnsureUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestEnsureUser_EmptyUsername(t *testing.T) {
	p, lookup, _ := setup(t)

	u, err := p.EnsureUser(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Zero(t, lookup.calls)
}

func TestEnsureKeyPair_GeneratesOnce(t *testing.T) {
	p, _, _ := setup(t)
	ctx := context.Background()

	generated := 0
	p.generate = func() (*KeyPair, error) {
		generated++
		return generateKeyPair()
	}

	first, err := p.EnsureKeyPair(ctx, "alice")
	require.NoError(t, err)
	second, err := p.EnsureKeyPair(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, generated)
	assert.Equal(t, first.PublicJWK, second.PublicJWK)
	assert.Equal(t, first.PrivateJWK, second.PrivateJWK)
	assert.True(t, first.PrivateKey.Equal(second.PrivateKey))
	assert.True(t, first.PublicKey.Equal(second.PublicKey))
}

func TestEnsureKeyPair_ConcurrentWriterWins(t *testing.T) {
	p, _, users := setup(t)
	ctx := context.Background()

	winnerKey, err := federation.GenerateKeyPair()
	require.NoError(t, err)
	winner, err := ExportKeyPair(winnerKey)
	require.NoError(t, err)

	p.generate = func() (*KeyPair, error) {
		wrote, err := users.SetKeys(ctx, "alice", winner.PublicJWK, winner.PrivateJWK)
		require.NoError(t, err)
		require.True(t, wrote)
		return generateKeyPair()
	}

	kp, err := p.EnsureKeyPair(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, winner.PublicJWK, kp.PublicJWK)
	assert.True(t, winnerKey.Equal(kp.PrivateKey))
}

func TestEnsureKeyPair_UnknownActor(t *testing.T) {
	p, _, _ := setup(t)

	_, err := p.EnsureKeyPair(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownActor)
}

func TestSigningKeyAndPEM(t *testing.T) {
	p, _, _ := setup(t)
	ctx := context.Background()

	key, err := p.SigningKey(ctx, "alice")
	require.NoError(t, err)

	kp, err := p.EnsureKeyPair(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, key.Equal(kp.PrivateKey))

	pemText, err := kp.PublicKeyPEM()
	require.NoError(t, err)
	assert.Contains(t, pemText, "-----BEGIN PUBLIC KEY-----")
}

func TestImportKeyPair_RejectsGarbage(t *testing.T) {
	_, err := ImportKeyPair("{}", "not json")
	require.Error(t, err)
}
