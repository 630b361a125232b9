// Package dag generates the epoch-indexed dataset the PoW mixer reads
// from. Each epoch's dataset is a deterministic function of an epoch
// seed chain, so any node can regenerate or verify it independently —
// there is nothing to download or trust.
package dag

import (
	"encoding/binary"

	"github.com/astram-chain/astram/pkg/types"
	"github.com/zeebo/blake3"
)

// Consensus-fixed dataset parameters (spec.md §4.4). These never change
// without a hard fork.
const (
	ItemSize     = 128                   // bytes per DAG item
	DatasetBytes = 4 << 30               // 4 GiB
	ItemCount    = DatasetBytes / ItemSize // 2^25 items
	EpochLength  = 7500                  // blocks per epoch

	mixRounds = 4
)

// genesisSeedString is hashed with BLAKE3 to produce the epoch-0 seed.
const genesisSeedString = "Astram Genesis DAG Seed"

// Item is one 128-byte slot of the epoch dataset.
type Item [ItemSize]byte

// Epoch returns the epoch index a block height belongs to.
func Epoch(height uint64) uint64 {
	return height / EpochLength
}

// Seed computes the BLAKE3 seed chain value for the given epoch: seed(0)
// is BLAKE3 of the genesis string, seed(n) is BLAKE3(seed(n-1)).
func Seed(epoch uint64) types.Hash {
	seed := blake3.Sum256([]byte(genesisSeedString))
	for i := uint64(0); i < epoch; i++ {
		seed = blake3.Sum256(seed[:])
	}
	return seed
}

// GenerateItem deterministically derives the dataset item at index from
// the epoch seed: an initial 32-byte BLAKE3 digest is expanded to 128
// bytes by three further BLAKE3 expansions, then mixed in four XOR
// rounds (spec.md §4.4).
func GenerateItem(index uint64, seed types.Hash) Item {
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], uint32(index))

	h0 := blake3.New()
	h0.Write(seed[:])
	h0.Write(idxBuf[:])
	var item Item
	copy(item[0:32], h0.Sum(nil))

	for i := uint32(1); i <= 3; i++ {
		var ctr [4]byte
		binary.LittleEndian.PutUint32(ctr[:], i)
		h := blake3.New()
		h.Write(item[0:32])
		h.Write(ctr[:])
		copy(item[32*i:32*i+32], h.Sum(nil))
	}

	for round := uint32(0); round < mixRounds; round++ {
		var rb [4]byte
		binary.LittleEndian.PutUint32(rb[:], round)
		h := blake3.New()
		h.Write(item[:])
		h.Write(rb[:])
		digest := h.Sum(nil)
		for i := 0; i < 32; i++ {
			item[i] ^= digest[i]
		}
	}

	return item
}

// Dataset is a fully generated epoch dataset: ItemCount items of
// ItemSize bytes, addressable by index.
type Dataset struct {
	Epoch uint64
	Seed  types.Hash
	items []Item
}

// Item returns the dataset item at idx, reduced modulo the dataset's
// length (ItemCount for a full dataset).
func (d *Dataset) Item(idx uint64) Item {
	return d.items[idx%uint64(len(d.items))]
}

// Len returns the number of items in the dataset.
func (d *Dataset) Len() int {
	return len(d.items)
}
