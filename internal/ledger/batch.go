package ledger

import (
	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// Batch accumulates every key-space write a single block touches —
// header, full block, transactions, spent/created UTXOs, height index,
// and tip — so validate_and_insert commits them as one all-or-nothing
// unit (spec.md §4.6). Keys are built through the same per-namespace
// storage.PrefixDB instances Store reads through (ns), but staged into
// a single raw storage.Batch so the write stays atomic across
// namespaces — a PrefixDB's own NewBatch would only be atomic within
// its own namespace. A Batch that is never committed has no effect.
type Batch struct {
	raw storage.Batch
	ns  keySpaces
	// addrIndex controls whether Put/DeleteUTXO also maintain the
	// non-consensus by-address secondary index. Always true via
	// Store.NewBatch; exposed only so ledger's own tests can exercise
	// the base path without it.
	addrIndex bool
}

// PutHeader stages a header write.
func (b *Batch) PutHeader(h *block.Header) error {
	hash := h.Hash()
	return b.raw.Put(b.ns.headers.Key(hash[:]), h.Encode())
}

// PutBlock stages a full block write, keyed by its header hash.
func (b *Batch) PutBlock(blk *block.Block) error {
	hash := blk.Header.Hash()
	return b.raw.Put(b.ns.blocks.Key(hash[:]), blk.Encode())
}

// PutTransaction stages a transaction write, keyed by its txid, plus
// the non-consensus txid→height index entry that backs
// Store.Transaction's (Transaction, height) query surface.
func (b *Batch) PutTransaction(t *tx.Transaction, height uint64) error {
	txid := t.Hash()
	if err := b.raw.Put(b.ns.txs.Key(txid[:]), t.Encode()); err != nil {
		return err
	}
	return b.raw.Put(b.ns.txHeights.Key(txid[:]), heightSubKey(height))
}

// PutUTXO stages the creation of a new unspent output.
func (b *Batch) PutUTXO(u UTXO) error {
	op := u.Outpoint()
	if err := b.raw.Put(b.ns.utxos.Key(utxoSubKey(op)), u.encode()); err != nil {
		return err
	}
	if b.addrIndex {
		return b.raw.Put(b.ns.addrs.Key(addrSubKey(u.ToAddress, op)), []byte{})
	}
	return nil
}

// DeleteUTXO stages the removal of a spent output. The caller must pass
// the UTXO's recorded address so the secondary index entry can be
// removed too; reading it back mid-batch is not reliable across all
// storage backends.
func (b *Batch) DeleteUTXO(op types.Outpoint, toAddress types.Address) error {
	if err := b.raw.Delete(b.ns.utxos.Key(utxoSubKey(op))); err != nil {
		return err
	}
	if b.addrIndex {
		return b.raw.Delete(b.ns.addrs.Key(addrSubKey(toAddress, op)))
	}
	return nil
}

// SetHeightIndex stages height → header hash.
func (b *Batch) SetHeightIndex(height uint64, hash types.Hash) error {
	return b.raw.Put(b.ns.heights.Key(heightSubKey(height)), hash[:])
}

// DeleteHeightIndex stages removal of a height index entry, used when
// undoing blocks on an abandoned branch during reorganization.
func (b *Batch) DeleteHeightIndex(height uint64) error {
	return b.raw.Delete(b.ns.heights.Key(heightSubKey(height)))
}

// SetTip stages the tip pointer update.
func (b *Batch) SetTip(hash types.Hash) error {
	return b.raw.Put(b.ns.tip.Key(nil), hash[:])
}

// Commit applies every staged write atomically. On error, no staged
// write is guaranteed to have taken effect; the caller must not assume
// partial application.
func (b *Batch) Commit() error {
	return b.raw.Commit()
}
