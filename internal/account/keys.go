package account

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/primal-host/primal-bridge/internal/federation"
)

// KeyPair is an actor's signing key with its stored JWK exports.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey

	PublicJWK  string
	PrivateJWK string
}

func generateKeyPair() (*KeyPair, error) {
	priv, err := federation.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return ExportKeyPair(priv)
}

// ExportKeyPair serializes both halves of priv as JWK.
func ExportKeyPair(priv *rsa.PrivateKey) (*KeyPair, error) {
	privJWK, err := json.Marshal(jose.JSONWebKey{Key: priv, Algorithm: string(jose.RS256), Use: "sig"})
	if err != nil {
		return nil, fmt.Errorf("account: export private key: %w", err)
	}
	pubJWK, err := json.Marshal(jose.JSONWebKey{Key: &priv.PublicKey, Algorithm: string(jose.RS256), Use: "sig"})
	if err != nil {
		return nil, fmt.Errorf("account: export public key: %w", err)
	}
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  &priv.PublicKey,
		PublicJWK:  string(pubJWK),
		PrivateJWK: string(privJWK),
	}, nil
}

// ImportKeyPair decodes stored JWK exports.
func ImportKeyPair(publicJWK, privateJWK string) (*KeyPair, error) {
	var pub, priv jose.JSONWebKey
	if err := pub.UnmarshalJSON([]byte(publicJWK)); err != nil {
		return nil, fmt.Errorf("account: import public key: %w", err)
	}
	if err := priv.UnmarshalJSON([]byte(privateJWK)); err != nil {
		return nil, fmt.Errorf("account: import private key: %w", err)
	}

	pubKey, ok := pub.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("account: import public key: unexpected type %T", pub.Key)
	}
	privKey, ok := priv.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("account: import private key: unexpected type %T", priv.Key)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		PublicJWK:  publicJWK,
		PrivateJWK: privateJWK,
	}, nil
}

// SigningKey implements federation.KeySource.
func (p *Provisioner) SigningKey(ctx context.Context, username string) (*rsa.PrivateKey, error) {
	kp, err := p.EnsureKeyPair(ctx, username)
	if err != nil {
		return nil, err
	}
	return kp.PrivateKey, nil
}

// PublicKeyPEM returns the actor's public key in the PEM form published in
// actor documents.
func (kp *KeyPair) PublicKeyPEM() (string, error) {
	return federation.PublicKeyPEM(kp.PublicKey)
}
