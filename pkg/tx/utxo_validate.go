package tx

import (
	"errors"
	"fmt"

	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInputNotFound   = errors.New("input UTXO not found")
	ErrInsufficientFee = errors.New("insufficient fee")
	ErrInputOverflow   = errors.New("input values overflow")
	ErrAddressMismatch = errors.New("pubkey does not match UTXO address")
)

// UTXOProvider provides read-only access to the UTXO set for validation.
type UTXOProvider interface {
	GetUTXO(prevTxID types.Hash, vout uint32) (amount types.Amount, toAddress types.Address, err error)
	HasUTXO(prevTxID types.Hash, vout uint32) bool
}

// ValidateWithUTXOs performs full validation of a non-coinbase transaction
// against the UTXO set: every input must exist and be unspent, its pubkey
// must hash to the spent output's address, and every signature must verify.
// Returns the fee (sum of inputs minus sum of outputs).
func (t *Transaction) ValidateWithUTXOs(provider UTXOProvider) (types.Amount, error) {
	if err := t.Validate(); err != nil {
		return types.Amount{}, err
	}

	totalInput := types.ZeroAmount()
	for i, in := range t.Inputs {
		if !provider.HasUTXO(in.PrevTxID, in.Vout) {
			return types.Amount{}, fmt.Errorf("input %d (%s:%d): %w", i, in.PrevTxID, in.Vout, ErrInputNotFound)
		}

		amount, toAddress, err := provider.GetUTXO(in.PrevTxID, in.Vout)
		if err != nil {
			return types.Amount{}, fmt.Errorf("input %d: %w", i, err)
		}

		if err := verifyAddressMatch(in.PubKey, toAddress); err != nil {
			return types.Amount{}, fmt.Errorf("input %d: %w", i, err)
		}

		totalInput, err = totalInput.Add(amount)
		if err != nil {
			return types.Amount{}, fmt.Errorf("input %d: %w: %w", i, ErrInputOverflow, err)
		}
	}

	if err := t.VerifySignatures(); err != nil {
		return types.Amount{}, err
	}

	totalOutput, err := t.TotalOutputValue()
	if err != nil {
		return types.Amount{}, fmt.Errorf("output overflow: %w", err)
	}
	if totalInput.Cmp(totalOutput) < 0 {
		return types.Amount{}, fmt.Errorf("%w: inputs=%s outputs=%s", ErrInsufficientFee, totalInput, totalOutput)
	}

	fee, err := totalInput.Sub(totalOutput)
	if err != nil {
		return types.Amount{}, fmt.Errorf("computing fee: %w", err)
	}
	return fee, nil
}

// verifyAddressMatch checks that pubKey derives the address an input claims to spend from.
func verifyAddressMatch(pubKey []byte, toAddress types.Address) error {
	if len(pubKey) == 0 {
		return ErrMissingPubKey
	}
	derived := crypto.AddressFromPubKey(pubKey)
	if derived != toAddress {
		return fmt.Errorf("%w: expected %s, got %s", ErrAddressMismatch, toAddress, derived)
	}
	return nil
}
