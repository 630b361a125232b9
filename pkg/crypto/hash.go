// Package crypto provides the cryptographic primitives consensus relies on:
// double SHA-256 for block and transaction identity, BLAKE3 for the epoch
// DAG and PoW mixing, and Ed25519 for transaction signatures.
package crypto

import (
	"crypto/sha256"

	"github.com/astram-chain/astram/pkg/types"
	"github.com/zeebo/blake3"
)

// SHA256 computes a single SHA-256 hash. Used as the Ed25519 signing
// digest over a transaction's pre-image, distinct from SHA256D below.
func SHA256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// SHA256D computes SHA256(SHA256(data)), the block and transaction
// identity hash. It is never used for the PoW path.
func SHA256D(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Blake3 computes a BLAKE3-256 hash of the input data. Reserved for the
// epoch DAG and PoW mixing function; it never defines block or
// transaction identity.
func Blake3(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// SHA256DConcat hashes the concatenation of two hashes with SHA256D.
// Used by the Merkle builder.
func SHA256DConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return SHA256D(buf[:])
}

// AddressFromPubKey derives an address from an Ed25519 public key.
// Address = SHA256D(pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := SHA256D(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}
