// Package ledger implements the persistent, content-addressed store
// that backs block headers, transactions, the UTXO set, the
// height→hash index, and the chain tip pointer (spec.md §4.6). Every
// write that crosses more than one key space — a full block's
// acceptance — commits through a single storage.Batch so the three
// coupled structures (block index, transaction index, UTXO set) never
// observe a partial update.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/pkg/types"
)

// Key-space prefixes, exactly as spec.md §4.6 tabulates them, plus "x:"
// — a non-consensus secondary index from txid to the height of the
// most recently stored block containing it, serving the height half of the external query
// surface's transaction(txid) → (Transaction, height) lookup (spec.md
// §6). An implementation is free to lay keys out differently as long
// as the values stored are the canonical encodings of §4.1; these are
// storage-layer conventions, not consensus state.
var (
	prefixHeader   = []byte("h:")
	prefixBlock    = []byte("b:")
	prefixTx       = []byte("t:")
	prefixUTXO     = []byte("u:")
	prefixHeight   = []byte("i:")
	prefixAddr     = []byte("a:") // secondary index, not consensus state
	prefixTxHeight = []byte("x:") // secondary index, not consensus state
	prefixTip      = []byte("tip")
)

// keySpaces is one storage.PrefixDB namespace per key-space above, all
// wrapping the same underlying store. Store reads through these
// directly; Batch stages writes through the same namespaces' Key
// method so a single raw storage.Batch still commits every key-space
// atomically (a PrefixDB's own NewBatch would not — see batch.go).
type keySpaces struct {
	headers   *storage.PrefixDB
	blocks    *storage.PrefixDB
	txs       *storage.PrefixDB
	utxos     *storage.PrefixDB
	heights   *storage.PrefixDB
	addrs     *storage.PrefixDB
	txHeights *storage.PrefixDB
	tip       *storage.PrefixDB
}

func newKeySpaces(db storage.DB) keySpaces {
	return keySpaces{
		headers:   storage.NewPrefixDB(db, prefixHeader),
		blocks:    storage.NewPrefixDB(db, prefixBlock),
		txs:       storage.NewPrefixDB(db, prefixTx),
		utxos:     storage.NewPrefixDB(db, prefixUTXO),
		heights:   storage.NewPrefixDB(db, prefixHeight),
		addrs:     storage.NewPrefixDB(db, prefixAddr),
		txHeights: storage.NewPrefixDB(db, prefixTxHeight),
		tip:       storage.NewPrefixDB(db, prefixTip),
	}
}

// utxoSubKey lays out an outpoint as txid(32) followed by a 4-byte
// big-endian vout within the "u:" namespace, so lexicographic
// iteration over a txid's outputs is in vout order.
func utxoSubKey(op types.Outpoint) []byte {
	key := make([]byte, types.HashSize+4)
	copy(key, op.TxID[:])
	binary.BigEndian.PutUint32(key[types.HashSize:], op.Index)
	return key
}

// heightSubKey big-endian-encodes height within the "i:" namespace, so
// that lexicographic key order (which Badger iterates in) matches
// numeric height order.
func heightSubKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}

// addrSubKey lays out addr(20) + txid(32) + vout(4) within the "a:"
// namespace; ForEach over addr[:] as a sub-prefix yields every UTXO
// credited to addr.
func addrSubKey(addr types.Address, op types.Outpoint) []byte {
	key := make([]byte, types.AddressSize+types.HashSize+4)
	copy(key, addr[:])
	off := types.AddressSize
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// outpointFromAddrSubKey parses a key yielded by iterating the "a:"
// namespace (already stripped of the "a:" prefix by PrefixDB.ForEach)
// back into the outpoint it indexes.
func outpointFromAddrSubKey(key []byte) (types.Outpoint, error) {
	want := types.AddressSize + types.HashSize + 4
	if len(key) != want {
		return types.Outpoint{}, fmt.Errorf("ledger: malformed address index key (%d bytes)", len(key))
	}
	off := types.AddressSize
	var op types.Outpoint
	copy(op.TxID[:], key[off:off+types.HashSize])
	op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])
	return op, nil
}
