package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// ErrNotFound is returned by lookups when a key is absent.
var ErrNotFound = errors.New("ledger: not found")

// UTXO is an unspent output as recorded in the "u:" key space: the
// output's destination and value, keyed by the outpoint that produced
// it.
type UTXO struct {
	TxID      types.Hash
	Vout      uint32
	ToAddress types.Address
	Amount    types.Amount
}

// Outpoint returns the (txid, vout) this UTXO is keyed by.
func (u UTXO) Outpoint() types.Outpoint {
	return types.Outpoint{TxID: u.TxID, Index: u.Vout}
}

func (u UTXO) encode() []byte {
	amt := u.Amount.Bytes()
	out := make([]byte, types.AddressSize+types.AmountSize)
	copy(out, u.ToAddress[:])
	copy(out[types.AddressSize:], amt[:])
	return out
}

func decodeUTXO(op types.Outpoint, data []byte) (UTXO, error) {
	if len(data) != types.AddressSize+types.AmountSize {
		return UTXO{}, fmt.Errorf("ledger: malformed utxo value (%d bytes)", len(data))
	}
	var addr types.Address
	copy(addr[:], data[:types.AddressSize])
	amount, err := types.AmountFromBytes(data[types.AddressSize:])
	if err != nil {
		return UTXO{}, fmt.Errorf("ledger: malformed utxo amount: %w", err)
	}
	return UTXO{TxID: op.TxID, Vout: op.Index, ToAddress: addr, Amount: amount}, nil
}

// Store is the content-addressed block/transaction/UTXO store backing
// the chain: headers, full blocks, transactions, and unspent outputs,
// each under its own storage.PrefixDB namespace, plus the height index
// and tip pointer. All cross-key-space writes for a single block go
// through a Batch so they commit atomically.
type Store struct {
	db storage.DB
	ns keySpaces
}

// Open wraps db as a ledger Store. db is assumed already opened by the
// caller; Store never closes it.
func Open(db storage.DB) *Store {
	return &Store{db: db, ns: newKeySpaces(db)}
}

// NewBatch starts an atomic write batch against the underlying store.
func (s *Store) NewBatch() *Batch {
	return &Batch{raw: storage.NewBatch(s.db), ns: s.ns, addrIndex: true}
}

// LoadHeader returns the stored header for hash, or ErrNotFound.
func (s *Store) LoadHeader(hash types.Hash) (*block.Header, error) {
	raw, err := s.ns.headers.Get(hash[:])
	if err != nil {
		return nil, ErrNotFound
	}
	return block.DecodeHeader(raw)
}

// HasHeader reports whether a header is stored for hash.
func (s *Store) HasHeader(hash types.Hash) (bool, error) {
	return s.ns.headers.Has(hash[:])
}

// LoadBlock returns the stored full block for hash, or ErrNotFound.
func (s *Store) LoadBlock(hash types.Hash) (*block.Block, error) {
	raw, err := s.ns.blocks.Get(hash[:])
	if err != nil {
		return nil, ErrNotFound
	}
	return block.DecodeBlock(raw)
}

// LoadTransaction returns the stored transaction for txid, or ErrNotFound.
func (s *Store) LoadTransaction(txid types.Hash) (*tx.Transaction, error) {
	raw, err := s.ns.txs.Get(txid[:])
	if err != nil {
		return nil, ErrNotFound
	}
	return tx.Decode(raw)
}

// TransactionHeight returns the height of the most recently stored
// block containing txid, via the non-consensus "x:" secondary index.
// Every batch that stores such a block (validation of a main-chain or
// redone block, or storage of a side-branch block) overwrites the
// entry. Reorg undo never removes it (spec.md §3: blocks and
// transactions are never deleted from the store), so it can name a
// block that is no longer on the main chain.
func (s *Store) TransactionHeight(txid types.Hash) (uint64, error) {
	raw, err := s.ns.txHeights.Get(txid[:])
	if err != nil {
		return 0, ErrNotFound
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("ledger: malformed tx height index value (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Transaction returns the stored transaction for txid together with
// the height recorded by TransactionHeight, satisfying the external query
// surface's transaction(txid) → (Transaction, height) contract.
func (s *Store) Transaction(txid types.Hash) (*tx.Transaction, uint64, error) {
	t, err := s.LoadTransaction(txid)
	if err != nil {
		return nil, 0, err
	}
	height, err := s.TransactionHeight(txid)
	if err != nil {
		return nil, 0, err
	}
	return t, height, nil
}

// HeightHash returns the header hash stored at height, or ErrNotFound.
func (s *Store) HeightHash(height uint64) (types.Hash, error) {
	raw, err := s.ns.heights.Get(heightSubKey(height))
	if err != nil {
		return types.Hash{}, ErrNotFound
	}
	var h types.Hash
	copy(h[:], raw)
	return h, nil
}

// Tip returns the current chain tip's header hash. ErrNotFound before
// genesis is stored.
func (s *Store) Tip() (types.Hash, error) {
	raw, err := s.ns.tip.Get(nil)
	if err != nil {
		return types.Hash{}, ErrNotFound
	}
	var h types.Hash
	copy(h[:], raw)
	return h, nil
}

// TipHeader loads the header of the current tip. ErrNotFound before
// genesis is stored.
func (s *Store) TipHeader() (*block.Header, error) {
	hash, err := s.Tip()
	if err != nil {
		return nil, err
	}
	return s.LoadHeader(hash)
}

// GetUTXO returns the UTXO spent by (txid, vout), satisfying
// tx.UTXOProvider.
func (s *Store) GetUTXO(txid types.Hash, vout uint32) (types.Amount, types.Address, error) {
	u, err := s.LoadUTXO(types.Outpoint{TxID: txid, Index: vout})
	if err != nil {
		return types.Amount{}, types.Address{}, err
	}
	return u.Amount, u.ToAddress, nil
}

// HasUTXO satisfies tx.UTXOProvider.
func (s *Store) HasUTXO(txid types.Hash, vout uint32) bool {
	ok, err := s.ns.utxos.Has(utxoSubKey(types.Outpoint{TxID: txid, Index: vout}))
	return err == nil && ok
}

// LoadUTXO returns the unspent output at op, or ErrNotFound if it does
// not exist or was already spent.
func (s *Store) LoadUTXO(op types.Outpoint) (UTXO, error) {
	raw, err := s.ns.utxos.Get(utxoSubKey(op))
	if err != nil {
		return UTXO{}, ErrNotFound
	}
	return decodeUTXO(op, raw)
}

// UTXOsByAddress iterates every unspent output credited to addr, using
// the non-consensus secondary index. Returns (nil, nil) if the index
// was never populated for this address.
func (s *Store) UTXOsByAddress(addr types.Address) ([]UTXO, error) {
	var out []UTXO
	err := s.ns.addrs.ForEach(addr[:], func(key, _ []byte) error {
		op, decErr := outpointFromAddrSubKey(key)
		if decErr != nil {
			return decErr
		}
		u, loadErr := s.LoadUTXO(op)
		if loadErr == ErrNotFound {
			// Secondary index entry outlived the UTXO (should not
			// happen since both are updated in the same batch); skip.
			return nil
		}
		if loadErr != nil {
			return loadErr
		}
		out = append(out, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Balance sums every unspent output credited to addr.
func (s *Store) Balance(addr types.Address) (types.Amount, error) {
	utxos, err := s.UTXOsByAddress(addr)
	if err != nil {
		return types.Amount{}, err
	}
	total := types.ZeroAmount()
	for _, u := range utxos {
		total, err = total.Add(u.Amount)
		if err != nil {
			return types.Amount{}, err
		}
	}
	return total, nil
}

// BlocksFromHeight returns up to n consecutive full blocks starting at
// height, stopping early if the chain is shorter.
func (s *Store) BlocksFromHeight(height uint64, n int) ([]*block.Block, error) {
	blocks := make([]*block.Block, 0, n)
	for i := 0; i < n; i++ {
		hash, err := s.HeightHash(height + uint64(i))
		if err == ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := s.LoadBlock(hash)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
