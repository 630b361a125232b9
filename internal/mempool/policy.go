package mempool

import (
	"fmt"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/pkg/tx"
)

// DefaultMaxTxSize is the maximum accepted transaction size in
// serialized bytes.
const DefaultMaxTxSize = 100_000

// Policy defines mempool-local acceptance rules, distinct from the
// consensus rules enforced by the validator — policy may vary per node.
type Policy struct {
	MaxTxSize int
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{MaxTxSize: DefaultMaxTxSize}
}

// Check rejects oversized transactions early, before the full
// UTXO-aware validation runs. It also re-asserts the consensus
// input/output count limits as defense in depth.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.Encode())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(transaction.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("too many inputs: %d, max %d", len(transaction.Inputs), config.MaxTxInputs)
	}
	if len(transaction.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("too many outputs: %d, max %d", len(transaction.Outputs), config.MaxTxOutputs)
	}
	return nil
}
