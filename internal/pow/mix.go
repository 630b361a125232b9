package pow

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/crypto"
)

// Iterations is the fixed number of DAG-mixing rounds per PoW hash
// (spec.md §4.5, §6 — consensus-critical, never adjustable).
const Iterations = 32

// Hash computes the memory-hard PoW digest for header at the given
// nonce against ds, per spec.md §4.5:
//  1. h0 = sha256d(header encoded with nonce forced to zero)
//  2. seed a 128-byte mix buffer from h0 and nonce
//  3. 32 rounds of: read a DAG index out of mix, XOR in that DAG item,
//     refresh the first 32 bytes of mix with BLAKE3(mix)
//  4. output = BLAKE3(mix)
//
// The nonce field itself never re-enters the header encoding per
// iteration — h0 is computed once, and the nonce is folded in only
// while seeding the mix buffer — so verifying a header costs exactly
// one mix, not one header encode per candidate nonce.
func Hash(header *block.Header, nonce uint64, ds *dag.Dataset) [32]byte {
	zeroNonce := *header
	zeroNonce.Nonce = 0
	h0 := crypto.SHA256D(zeroNonce.Encode())

	var mix [128]byte
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)
	copy(mix[0:32], crypto.Blake3(append(h0[:], nonceBuf[:]...))[:])

	for i := uint32(1); i <= 3; i++ {
		var ctr [4]byte
		binary.LittleEndian.PutUint32(ctr[:], i)
		expansion := crypto.Blake3(append(append([]byte{}, mix[0:32]...), ctr[:]...))
		copy(mix[32*i:32*i+32], expansion[:])
	}

	for iter := 0; iter < Iterations; iter++ {
		offset := (iter % 4) * 32
		idxWord := binary.LittleEndian.Uint32(mix[offset : offset+4])
		item := ds.Item(uint64(idxWord))
		for i := 0; i < dag.ItemSize; i++ {
			mix[i] ^= item[i]
		}
		refresh := crypto.Blake3(mix[:])
		copy(mix[0:32], refresh[:])
	}

	return crypto.Blake3(mix[:])
}

// Verify reports whether header satisfies its own stated difficulty at
// nonce, against ds.
func Verify(header *block.Header, nonce uint64, ds *dag.Dataset) bool {
	digest := Hash(header, nonce, ds)
	return MeetsTarget(hex.EncodeToString(digest[:]), LeadingZeros(header.Difficulty))
}
