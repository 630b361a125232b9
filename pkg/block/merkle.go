package block

import (
	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// ComputeMerkleRoot calculates the bitcoin-style merkle root of an
// ordered list of transaction ids.
//
// Algorithm:
//   - empty list: sha256d("") — defined so the function is total.
//   - 1 txid: that txid.
//   - otherwise: pairwise sha256d(left||right), duplicating the last
//     element of each layer when its length is odd, repeated until one
//     hash remains.
func ComputeMerkleRoot(txids []types.Hash) types.Hash {
	if len(txids) == 0 {
		return crypto.SHA256D(nil)
	}
	if len(txids) == 1 {
		return txids[0]
	}

	// Work on a copy so we don't mutate the caller's slice.
	level := make([]types.Hash, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.SHA256DConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}
