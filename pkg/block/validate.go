package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader           = errors.New("block has nil header")
	ErrNoTransactions      = errors.New("block has no transactions")
	ErrBadMerkleRoot       = errors.New("merkle root mismatch")
	ErrZeroTimestamp       = errors.New("block timestamp is zero")
	ErrBadTxOrder          = errors.New("transactions not in canonical order")
	ErrNoCoinbase          = errors.New("first transaction must be coinbase")
	ErrTooManyTxs          = errors.New("too many transactions in block")
	ErrBlockTooLarge       = errors.New("block too large")
	ErrDuplicateBlockInput = errors.New("duplicate input across transactions in block")
	ErrMultipleCoinbase    = errors.New("multiple coinbase transactions in block")
)

// Validate checks block structure and internal consistency. This does NOT
// verify consensus rules (proof of work, difficulty, UTXO existence).
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if len(b.Transactions) > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), config.MaxBlockTxs)
	}

	// Check total block size: header encoding plus every tx's full encoding.
	blockSize := len(b.Header.Encode())
	for _, t := range b.Transactions {
		blockSize += len(t.Encode())
	}
	if blockSize > config.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, blockSize, config.MaxBlockSize)
	}

	// First transaction must be the coinbase (zero inputs); no other may be.
	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	// Verify merkle root.
	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.Hash()
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	// Canonical tx ordering: coinbase first, remaining sorted by hash ascending.
	for i := 2; i < len(txHashes); i++ {
		if bytes.Compare(txHashes[i-1][:], txHashes[i][:]) >= 0 {
			return fmt.Errorf("%w: tx %d hash >= tx %d hash", ErrBadTxOrder, i-1, i)
		}
	}

	// Validate each transaction structurally. The coinbase is exempt from
	// the non-coinbase structural rules enforced by tx.Validate (notably,
	// it has no inputs).
	for i, t := range b.Transactions {
		if i == 0 {
			if len(t.Outputs) == 0 {
				return fmt.Errorf("tx %d: %w", i, errors.New("coinbase has no outputs"))
			}
			continue
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	// Check for duplicate inputs across different transactions in the block.
	// (Per-tx duplicates are caught by tx.Validate above.)
	type spend struct {
		txid types.Hash
		vout uint32
	}
	allInputs := make(map[spend]int) // spend -> tx index
	for i, t := range b.Transactions {
		for _, in := range t.Inputs {
			k := spend{in.PrevTxID, in.Vout}
			if prevTx, exists := allInputs[k]; exists {
				return fmt.Errorf("tx %d: %w: outpoint %s:%d also spent in tx %d",
					i, ErrDuplicateBlockInput, in.PrevTxID, in.Vout, prevTx)
			}
			allInputs[k] = i
		}
	}

	return nil
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
