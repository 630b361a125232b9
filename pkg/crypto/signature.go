package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Signer signs message digests with an Ed25519 private key.
type Signer interface {
	// Sign produces a 64-byte Ed25519 signature over a 32-byte digest.
	Sign(digest []byte) ([]byte, error)
	// PublicKey returns the 32-byte Ed25519 public key.
	PublicKey() []byte
}

// Verifier verifies Ed25519 signatures.
type Verifier interface {
	// Verify checks a signature against a digest and public key.
	Verify(digest, signature, publicKey []byte) bool
}

// PrivateKey wraps an Ed25519 private key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a new random Ed25519 private key.
func GenerateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromSeed creates a PrivateKey from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign produces a 64-byte Ed25519 signature over a 32-byte digest.
func (pk *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return ed25519.Sign(pk.key, digest), nil
}

// PublicKey returns the 32-byte Ed25519 public key.
func (pk *PrivateKey) PublicKey() []byte {
	pub := pk.key.Public().(ed25519.PublicKey)
	return []byte(pub)
}

// Seed returns the 32-byte seed the private key was derived from.
func (pk *PrivateKey) Seed() []byte {
	return pk.key.Seed()
}

// Zero overwrites the private key material with zeros.
func (pk *PrivateKey) Zero() {
	for i := range pk.key {
		pk.key[i] = 0
	}
}

// VerifySignature checks an Ed25519 signature against a 32-byte digest
// and a 32-byte public key. Returns false on any malformed input.
func VerifySignature(digest, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), digest, signature)
}

// Ed25519Verifier implements the Verifier interface.
type Ed25519Verifier struct{}

// Verify checks an Ed25519 signature against a digest and public key.
func (v Ed25519Verifier) Verify(digest, signature, publicKey []byte) bool {
	return VerifySignature(digest, signature, publicKey)
}
