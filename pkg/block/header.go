package block

import (
	"encoding/json"
	"fmt"

	"github.com/astram-chain/astram/pkg/codec"
	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// headerEncodedSize is the exact byte length of a header's canonical
// encoding: index(8) + previous_hash(32) + merkle_root(32) + timestamp(8)
// + nonce(8) + difficulty(4).
const headerEncodedSize = 8 + 32 + 32 + 8 + 8 + 4

// Header is a block header. Six fields, immutable once hashed.
type Header struct {
	Index        uint64     `json:"index"`
	PreviousHash types.Hash `json:"previous_hash"`
	MerkleRoot   types.Hash `json:"merkle_root"`
	Timestamp    int64      `json:"timestamp"`
	Nonce        uint64     `json:"nonce"`
	Difficulty   uint32     `json:"difficulty"`
}

// Hash computes the header's canonical identity hash, sha256d over the
// encoded header. This is the block identifier used for the tip pointer,
// the height index, and previous_hash references — it is distinct from
// the PoW hash.
func (h *Header) Hash() types.Hash {
	return crypto.SHA256D(h.Encode())
}

// Encode returns the canonical byte encoding used for both hashing and
// persistence, covering all six header fields in declared order:
// index, previous_hash, merkle_root, timestamp, nonce, difficulty.
func (h *Header) Encode() []byte {
	w := codec.NewWriter(headerEncodedSize)
	w.PutUint64(h.Index)
	w.PutBytes(h.PreviousHash[:])
	w.PutBytes(h.MerkleRoot[:])
	w.PutInt64(h.Timestamp)
	w.PutUint64(h.Nonce)
	w.PutUint32(h.Difficulty)
	return w.Bytes()
}

// DecodeHeader decodes a header from its canonical encoding.
func DecodeHeader(b []byte) (*Header, error) {
	r := codec.NewReader(b)
	h := &Header{}
	index, err := r.Uint64()
	if err != nil {
		return nil, fmt.Errorf("decode header index: %w", err)
	}
	h.Index = index
	prevHash, err := r.Bytes(types.HashSize)
	if err != nil {
		return nil, fmt.Errorf("decode header previous_hash: %w", err)
	}
	copy(h.PreviousHash[:], prevHash)
	merkleRoot, err := r.Bytes(types.HashSize)
	if err != nil {
		return nil, fmt.Errorf("decode header merkle_root: %w", err)
	}
	copy(h.MerkleRoot[:], merkleRoot)
	ts, err := r.Int64()
	if err != nil {
		return nil, fmt.Errorf("decode header timestamp: %w", err)
	}
	h.Timestamp = ts
	nonce, err := r.Uint64()
	if err != nil {
		return nil, fmt.Errorf("decode header nonce: %w", err)
	}
	h.Nonce = nonce
	difficulty, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("decode header difficulty: %w", err)
	}
	h.Difficulty = difficulty
	if !r.AtEnd() {
		return nil, fmt.Errorf("decode header: %d trailing bytes", r.Remaining())
	}
	return h, nil
}

// headerJSON mirrors Header but lets json handle the types.Hash fields,
// which already carry their own hex marshalers.
type headerJSON struct {
	Index        uint64     `json:"index"`
	PreviousHash types.Hash `json:"previous_hash"`
	MerkleRoot   types.Hash `json:"merkle_root"`
	Timestamp    int64      `json:"timestamp"`
	Nonce        uint64     `json:"nonce"`
	Difficulty   uint32     `json:"difficulty"`
}

// MarshalJSON encodes the header as JSON.
func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(headerJSON(h))
}

// UnmarshalJSON decodes a header from JSON.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*h = Header(j)
	return nil
}

// IsGenesis reports whether this header is the chain's genesis header.
func (h *Header) IsGenesis() bool {
	return h.Index == 0 && h.PreviousHash.IsZero()
}
