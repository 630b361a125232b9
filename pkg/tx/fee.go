package tx

import "github.com/astram-chain/astram/pkg/types"

// EstimateTxFee returns the advisory minimum fee for a transaction with the
// given number of inputs and outputs at the given fee rate (base units per
// byte of the unsigned pre-image). The estimate mirrors the pre-image
// layout produced by preimage():
//
//	inputCount(8) + inputs(32+4+8+pubkeyLen per input) +
//	outputCount(8) + outputs(20+16 per output) + timestamp(8)
//
// pubkeyLen defaults to 32 (an Ed25519 public key).
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64) types.Amount {
	const listLenSize = 8
	const perInput = types.HashSize + 4 + 8 + 32 // prev_txid + vout + len-prefix + pubkey
	const perOutput = types.AddressSize + types.AmountSize
	const timestampSize = 8

	size := 2*listLenSize + timestampSize + perInput*numInputs + perOutput*numOutputs
	return types.NewAmount(uint64(size) * feeRate)
}

// RequiredFee returns the exact minimum fee for a fully built transaction at
// the given fee rate (base units per byte of the signing pre-image).
func RequiredFee(transaction *Transaction, feeRate uint64) types.Amount {
	return types.NewAmount(uint64(len(transaction.preimage())) * feeRate)
}
