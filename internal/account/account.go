// Package account provisions bridged actors: it admits a username into the
// local store on first reference, after the platform confirms the account
// exists, and lazily generates the actor's signing key pair.
//
// EnsureUser is the single admission point. Every operation that needs a
// local actor goes through it before touching sync state or keys.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/primal-host/primal-bridge/internal/metrics"
	"github.com/primal-host/primal-bridge/internal/platform"
	"github.com/primal-host/primal-bridge/internal/user"
)

// ErrUnknownActor is returned by key operations for usernames the
// platform does not know.
var ErrUnknownActor = errors.New("account: unknown actor")

// UserLookup is the part of the platform client the provisioner needs.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (*platform.UserInfo, error)
}

// Provisioner ensures users and their keys exist.
type Provisioner struct {
	users    *user.Store
	platform UserLookup
	log      *slog.Logger
	metrics  *metrics.Metrics

	generate func() (*KeyPair, error)
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(users *user.Store, lookup UserLookup, log *slog.Logger, m *metrics.Metrics) *Provisioner {
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{
		users:    users,
		platform: lookup,
		log:      log.With("component", "account"),
		metrics:  m,
		generate: generateKeyPair,
	}
}

// EnsureUser returns the local row for username, creating it from the
// platform on first reference. It returns (nil, nil) when the platform
// does not know the account or cannot be reached; only store failures are
// returned as errors.
func (p *Provisioner) EnsureUser(ctx context.Context, username string) (*user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}

	u, err := p.users.Get(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	info, err := p.platform.GetUser(ctx, username)
	p.metrics.PlatformFetch("user", err)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			p.log.Debug("platform account not found", "username", username)
		} else {
			p.log.Warn("platform user lookup failed", "username", username, "error", err)
		}
		return nil, nil
	}

	err = p.users.Insert(ctx, &user.User{
		Username:       username,
		PlatformUserID: string(info.UserID),
		Description:    info.Description,
		AvatarURL:      info.Avatar,
		CreatedAt:      info.CreateTime.Millis(),
	})
	if err != nil {
		return nil, fmt.Errorf("account: ensure user %q: %w", username, err)
	}
	p.log.Info("user provisioned", "username", username, "platformUserId", info.UserID)

	return p.users.Get(ctx, username)
}

// EnsureKeyPair returns the actor's signing keys, generating and storing
// them on first use. Keys are never rotated.
func (p *Provisioner) EnsureKeyPair(ctx context.Context, username string) (*KeyPair, error) {
	u, err := p.EnsureUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, username)
	}

	if u.HasKeys() {
		return ImportKeyPair(u.PublicKey, u.PrivateKey)
	}

	kp, err := p.generate()
	if err != nil {
		return nil, fmt.Errorf("account: ensure key pair %q: %w", username, err)
	}

	wrote, err := p.users.SetKeys(ctx, username, kp.PublicJWK, kp.PrivateJWK)
	if err != nil {
		return nil, err
	}
	if wrote {
		p.log.Info("key pair generated", "username", username)
		return kp, nil
	}

	// Another request stored keys between our read and write; theirs win.
	u, err = p.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return ImportKeyPair(u.PublicKey, u.PrivateKey)
}
