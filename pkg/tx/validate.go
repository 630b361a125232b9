package tx

import (
	"errors"
	"fmt"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// Validation errors.
var (
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrOutputOverflow = errors.New("output values overflow")
	ErrZeroOutput     = errors.New("output amount is zero")
	ErrMissingPubKey  = errors.New("input missing public key")
	ErrMissingSig     = errors.New("input missing signature")
	ErrInvalidSig     = errors.New("invalid signature")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
)

// Validate checks transaction structure and basic rules, independent of
// whether this transaction is allowed to be a coinbase. Callers that know
// the transaction's position in a block (coinbase only at index 0) enforce
// the input-count/coinbase rule themselves; a transaction with zero inputs
// (coinbase-shaped) passes this check wherever it appears.
func (t *Transaction) Validate() error {
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(t.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(t.Inputs), config.MaxTxInputs)
	}
	if len(t.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(t.Outputs), config.MaxTxOutputs)
	}

	seen := make(map[outpointKey]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		k := outpointKey{in.PrevTxID, in.Vout}
		if seen[k] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[k] = true

		if len(in.PubKey) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingPubKey)
		}
		if len(in.Signature) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingSig)
		}
	}

	for i, out := range t.Outputs {
		if out.Amount.IsZero() {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
	}

	if _, err := t.TotalOutputValue(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputOverflow, err)
	}

	return nil
}

// outpointKey is the (PrevTxID, Vout) pair an input spends, used as a map key.
type outpointKey struct {
	txid types.Hash
	vout uint32
}

// VerifySignatures checks that every input's signature is valid over the
// transaction's signing digest. A coinbase transaction has no inputs and
// trivially passes.
func (t *Transaction) VerifySignatures() error {
	digest := t.SigningDigest()
	for i, in := range t.Inputs {
		if !crypto.VerifySignature(digest[:], in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSig)
		}
	}
	return nil
}
