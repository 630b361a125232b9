// Package wire defines the peer-protocol message envelope types the
// core exchanges with an external transport (spec.md §6). This package
// is data contracts only — no socket or framing code lives here; wiring
// these messages to a wire format and a peer connection is the external
// transport collaborator's job.
package wire

import (
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// InvKind identifies the kind of item an Inv/GetData message refers to.
type InvKind uint8

const (
	InvTransaction InvKind = 1
	InvBlock       InvKind = 2
)

// Version announces a peer's protocol version and chain height during
// the initial handshake.
type Version struct {
	Version uint32 `json:"version"`
	Height  uint64 `json:"height"`
}

// VerAck acknowledges a received Version message.
type VerAck struct{}

// GetHeaders requests headers from the best chain starting after the
// first locator hash the remote peer recognizes, optionally bounded by
// StopHash.
type GetHeaders struct {
	LocatorHashes []types.Hash `json:"locator_hashes"`
	StopHash      *types.Hash  `json:"stop_hash,omitempty"`
}

// Headers carries up to 200 headers returned for a GetHeaders request.
type Headers struct {
	Headers []*block.Header `json:"headers"`
}

// Inv announces the availability of transactions or blocks by hash
// without sending their full bodies.
type Inv struct {
	Kind   InvKind      `json:"kind"`
	Hashes []types.Hash `json:"hashes"`
}

// GetData requests the full bodies of previously inventoried items.
type GetData struct {
	Kind   InvKind      `json:"kind"`
	Hashes []types.Hash `json:"hashes"`
}

// Block carries a full block for relay or initial sync.
type Block struct {
	Block *block.Block `json:"block"`
}

// Tx carries a single transaction for mempool relay.
type Tx struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// Ping checks liveness; the receiver must answer with a matching Pong.
type Ping struct {
	Nonce uint64 `json:"nonce"`
}

// Pong answers a Ping, echoing its nonce.
type Pong struct {
	Nonce uint64 `json:"nonce"`
}

// MaxHeadersPerMessage bounds a single Headers response (spec.md §6).
const MaxHeadersPerMessage = 200
