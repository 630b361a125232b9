package tx

import (
	"fmt"

	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prevTxID types.Hash, vout uint32) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevTxID: prevTxID, Vout: vout})
	return b
}

// AddOutput adds an output paying amount to toAddress.
func (b *Builder) AddOutput(toAddress types.Address, amount types.Amount) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{ToAddress: toAddress, Amount: amount})
	return b
}

// SetTimestamp sets the transaction timestamp.
func (b *Builder) SetTimestamp(ts int64) *Builder {
	b.tx.Timestamp = ts
	return b
}

// Sign signs every input with the same private key (single-key spending).
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	digest := b.tx.SigningDigest()
	sig, err := key.Sign(digest[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	pubKey := key.PublicKey()
	for i := range b.tx.Inputs {
		b.tx.Inputs[i].Signature = sig
		b.tx.Inputs[i].PubKey = pubKey
	}
	return nil
}

// SignMulti signs each input with the key that owns the UTXO it spends.
// outpointAddr maps each input's (PrevTxID, Vout) to the address that owns
// it; signers maps each address to the private key that can spend from it.
func (b *Builder) SignMulti(
	signers map[types.Address]*crypto.PrivateKey,
	outpointAddr map[outpointKey]types.Address,
) error {
	digest := b.tx.SigningDigest()

	type sigPub struct {
		sig    []byte
		pubKey []byte
	}
	cache := make(map[types.Address]*sigPub)

	for i := range b.tx.Inputs {
		k := outpointKey{b.tx.Inputs[i].PrevTxID, b.tx.Inputs[i].Vout}
		addr, ok := outpointAddr[k]
		if !ok {
			return fmt.Errorf("no address mapping for input %d outpoint", i)
		}
		key, ok := signers[addr]
		if !ok {
			return fmt.Errorf("no signer for address %s (input %d)", addr, i)
		}

		sp, cached := cache[addr]
		if !cached {
			sig, err := key.Sign(digest[:])
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sp = &sigPub{sig: sig, pubKey: key.PublicKey()}
			cache[addr] = sp
		}
		b.tx.Inputs[i].Signature = sp.sig
		b.tx.Inputs[i].PubKey = sp.pubKey
	}
	return nil
}

// Build returns the constructed transaction. Does not validate.
func (b *Builder) Build() *Transaction {
	return b.tx
}
