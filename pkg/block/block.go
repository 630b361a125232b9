// Package block defines block types and validation.
package block

import (
	"fmt"

	"github.com/astram-chain/astram/pkg/codec"
	"github.com/astram-chain/astram/pkg/tx"
)

// Block represents a block in the chain.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Encode returns the full block as header-encoding followed by a
// length-prefixed list of full transaction encodings. This is a storage
// convenience, not a consensus format — a block's identity is its
// header hash, and any full block can be reconstructed from its header
// plus the transactions named by its merkle root.
func (b *Block) Encode() []byte {
	w := codec.NewWriter(len(b.Header.Encode()) + 64*len(b.Transactions))
	w.PutBytes(b.Header.Encode())
	w.PutListLen(len(b.Transactions))
	for _, t := range b.Transactions {
		w.PutLengthPrefixed(t.Encode())
	}
	return w.Bytes()
}

// DecodeBlock decodes a block from its storage encoding (see Encode).
func DecodeBlock(data []byte) (*Block, error) {
	if len(data) < headerEncodedSize {
		return nil, fmt.Errorf("decode block: short buffer")
	}
	header, err := DecodeHeader(data[:headerEncodedSize])
	if err != nil {
		return nil, fmt.Errorf("decode block header: %w", err)
	}
	r := codec.NewReader(data[headerEncodedSize:])
	n, err := r.ListLen()
	if err != nil {
		return nil, fmt.Errorf("decode block tx count: %w", err)
	}
	txs := make([]*tx.Transaction, n)
	for i := range txs {
		raw, err := r.LengthPrefixed()
		if err != nil {
			return nil, fmt.Errorf("decode block tx %d: %w", i, err)
		}
		t, err := tx.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode block tx %d: %w", i, err)
		}
		txs[i] = t
	}
	if !r.AtEnd() {
		return nil, fmt.Errorf("decode block: %d trailing bytes", r.Remaining())
	}
	return &Block{Header: header, Transactions: txs}, nil
}
