package chain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// CreateGenesisBlock builds the unsealed genesis block (index 0, zero
// previous_hash) from gen: a single coinbase transaction distributing
// gen.Alloc. The caller must seal the header's proof of work before the
// block can pass Validate — genesis is not a special case downstream of
// that, it is simply the block whose previous_hash is zero.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}

	coinbase, err := buildCoinbaseTx(gen.Alloc, gen.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("build coinbase: %w", err)
	}

	merkle := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := &block.Header{
		Index:      0,
		MerkleRoot: merkle,
		Timestamp:  gen.Timestamp,
		Difficulty: gen.InitialDifficulty,
	}

	return block.NewBlock(header, []*tx.Transaction{coinbase}), nil
}

// buildCoinbaseTx creates the zero-input coinbase transaction that
// distributes alloc. Addresses are sorted before being turned into
// outputs so the resulting transaction, and therefore the genesis
// block's hash, is deterministic across nodes loading the same config.
func buildCoinbaseTx(alloc map[string]string, timestamp int64) (*tx.Transaction, error) {
	addrs := make([]string, 0, len(alloc))
	for addr := range alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	outputs := make([]tx.Output, 0, len(addrs))
	for _, addrStr := range addrs {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		var amount types.Amount
		if err := json.Unmarshal([]byte(`"`+alloc[addrStr]+`"`), &amount); err != nil {
			return nil, fmt.Errorf("invalid alloc amount for %q: %w", addrStr, err)
		}
		if amount.IsZero() {
			continue
		}
		outputs = append(outputs, tx.Output{ToAddress: addr, Amount: amount})
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("genesis alloc has no nonzero entries: coinbase needs at least one output")
	}

	return &tx.Transaction{Outputs: outputs, Timestamp: timestamp}, nil
}
