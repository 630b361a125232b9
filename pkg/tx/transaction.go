// Package tx defines transaction types, signing, and validation.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/astram-chain/astram/pkg/codec"
	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// Transaction is a ledger transaction. A coinbase transaction has zero
// inputs; every other transaction has at least one.
type Transaction struct {
	Inputs    []Input  `json:"inputs"`
	Outputs   []Output `json:"outputs"`
	Timestamp int64    `json:"timestamp"`
}

// Input references a UTXO being spent by (PrevTxID, Vout), authenticated
// by an Ed25519 PubKey/Signature pair. Signature is absent on an
// unsigned transaction under construction.
type Input struct {
	PrevTxID  types.Hash `json:"prev_txid"`
	Vout      uint32     `json:"vout"`
	PubKey    []byte     `json:"pubkey"`
	Signature []byte     `json:"signature,omitempty"`
}

// Output credits Amount of the native coin to ToAddress.
type Output struct {
	ToAddress types.Address `json:"to_address"`
	Amount    types.Amount  `json:"amount"`
}

// inputJSON hex-encodes the byte fields of Input.
type inputJSON struct {
	PrevTxID  types.Hash `json:"prev_txid"`
	Vout      uint32     `json:"vout"`
	PubKey    string     `json:"pubkey,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

// MarshalJSON encodes the input with hex-encoded pubkey and signature.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{PrevTxID: in.PrevTxID, Vout: in.Vout}
	if in.PubKey != nil {
		j.PubKey = hex.EncodeToString(in.PubKey)
	}
	if in.Signature != nil {
		j.Signature = hex.EncodeToString(in.Signature)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded pubkey and signature.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.PrevTxID = j.PrevTxID
	in.Vout = j.Vout
	if j.PubKey != "" {
		b, err := hex.DecodeString(j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	return nil
}

// IsCoinbase reports whether the transaction is a coinbase: no inputs.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0
}

// Hash computes the transaction id: sha256d over the canonical encoding
// of inputs (excluding signatures), outputs, and timestamp.
func (t *Transaction) Hash() types.Hash {
	return crypto.SHA256D(t.preimage())
}

// preimage is the txid pre-image: everything the transaction commits to
// except input signatures, so a transaction is identified by its effects.
func (t *Transaction) preimage() []byte {
	w := codec.NewWriter(64 + 64*len(t.Inputs) + 64*len(t.Outputs))
	w.PutListLen(len(t.Inputs))
	for _, in := range t.Inputs {
		w.PutBytes(in.PrevTxID[:])
		w.PutUint32(in.Vout)
		w.PutLengthPrefixed(in.PubKey)
	}
	w.PutListLen(len(t.Outputs))
	for _, out := range t.Outputs {
		w.PutBytes(out.ToAddress[:])
		amt := out.Amount.Bytes()
		w.PutBytes(amt[:])
	}
	w.PutInt64(t.Timestamp)
	return w.Bytes()
}

// SigningDigest returns SHA256(preimage), the digest each input's
// signature is computed over. This is the single-SHA-256 inner value,
// distinct from the txid (which is sha256d of the same preimage).
func (t *Transaction) SigningDigest() types.Hash {
	return crypto.SHA256(t.preimage())
}

// Encode returns the full canonical encoding of the transaction,
// including signatures, for ledger persistence.
func (t *Transaction) Encode() []byte {
	w := codec.NewWriter(128 + 96*len(t.Inputs) + 64*len(t.Outputs))
	w.PutListLen(len(t.Inputs))
	for _, in := range t.Inputs {
		w.PutBytes(in.PrevTxID[:])
		w.PutUint32(in.Vout)
		w.PutLengthPrefixed(in.PubKey)
		w.PutLengthPrefixed(in.Signature)
	}
	w.PutListLen(len(t.Outputs))
	for _, out := range t.Outputs {
		w.PutBytes(out.ToAddress[:])
		amt := out.Amount.Bytes()
		w.PutBytes(amt[:])
	}
	w.PutInt64(t.Timestamp)
	return w.Bytes()
}

// Decode decodes a transaction from its full canonical encoding.
func Decode(b []byte) (*Transaction, error) {
	r := codec.NewReader(b)
	t := &Transaction{}

	nIn, err := r.ListLen()
	if err != nil {
		return nil, fmt.Errorf("decode tx inputs length: %w", err)
	}
	t.Inputs = make([]Input, nIn)
	for i := range t.Inputs {
		prevTxID, err := r.Bytes(types.HashSize)
		if err != nil {
			return nil, fmt.Errorf("decode input %d prev_txid: %w", i, err)
		}
		copy(t.Inputs[i].PrevTxID[:], prevTxID)
		vout, err := r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("decode input %d vout: %w", i, err)
		}
		t.Inputs[i].Vout = vout
		pubKey, err := r.LengthPrefixed()
		if err != nil {
			return nil, fmt.Errorf("decode input %d pubkey: %w", i, err)
		}
		t.Inputs[i].PubKey = pubKey
		sig, err := r.LengthPrefixed()
		if err != nil {
			return nil, fmt.Errorf("decode input %d signature: %w", i, err)
		}
		t.Inputs[i].Signature = sig
	}

	nOut, err := r.ListLen()
	if err != nil {
		return nil, fmt.Errorf("decode tx outputs length: %w", err)
	}
	t.Outputs = make([]Output, nOut)
	for i := range t.Outputs {
		addr, err := r.Bytes(types.AddressSize)
		if err != nil {
			return nil, fmt.Errorf("decode output %d to_address: %w", i, err)
		}
		copy(t.Outputs[i].ToAddress[:], addr)
		amtBytes, err := r.Bytes(types.AmountSize)
		if err != nil {
			return nil, fmt.Errorf("decode output %d amount: %w", i, err)
		}
		amt, err := types.AmountFromBytes(amtBytes)
		if err != nil {
			return nil, fmt.Errorf("decode output %d amount: %w", i, err)
		}
		t.Outputs[i].Amount = amt
	}

	ts, err := r.Int64()
	if err != nil {
		return nil, fmt.Errorf("decode tx timestamp: %w", err)
	}
	t.Timestamp = ts

	if !r.AtEnd() {
		return nil, fmt.Errorf("decode tx: %d trailing bytes", r.Remaining())
	}
	return t, nil
}

// TotalOutputValue returns the overflow-checked sum of all output amounts.
func (t *Transaction) TotalOutputValue() (types.Amount, error) {
	total := types.ZeroAmount()
	for _, out := range t.Outputs {
		var err error
		total, err = total.Add(out.Amount)
		if err != nil {
			return types.Amount{}, fmt.Errorf("output value overflow: %w", err)
		}
	}
	return total, nil
}
