package federation

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// KeyBits is the RSA modulus size of generated actor keys.
const KeyBits = 2048

// GenerateKeyPair creates a new RSASSA-PKCS1-v1_5 signing key for an actor.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("federation: generate key: %w", err)
	}
	return priv, nil
}

// PublicKeyPEM encodes a public key as a PKIX PEM block, the form actor
// documents publish in publicKeyPem.
func PublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("federation: marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
