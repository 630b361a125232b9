// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"sync"

	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
	ErrFeeTooLow     = errors.New("transaction fee below minimum relay fee")
)

// entry wraps a transaction with its fee and metadata.
type entry struct {
	tx      *tx.Transaction
	txHash  types.Hash
	fee     types.Amount
	feeRate float64 // fee per serialized byte.
}

// Pool holds unconfirmed transactions, keyed by txid, with a conflict
// index over the outpoints they spend so a second transaction spending
// an already-pooled outpoint is rejected before it ever reaches a block.
type Pool struct {
	mu         sync.RWMutex
	txs        map[types.Hash]*entry
	spends     map[types.Outpoint]types.Hash
	maxSize    int
	minFeeRate uint64 // advisory minimum relay fee, base units per byte (0 = no minimum).
	utxos      tx.UTXOProvider
}

// New creates a mempool backed by utxos for input validation, holding at
// most maxSize transactions (0 picks a sensible default).
func New(utxos tx.UTXOProvider, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:     make(map[types.Hash]*entry),
		spends:  make(map[types.Outpoint]types.Hash),
		maxSize: maxSize,
		utxos:   utxos,
	}
}

// SetMinFeeRate sets the advisory minimum relay fee rate (base units per
// serialized byte). Per spec.md §4.9 this is an admission policy only —
// it is never enforced during block validation.
func (p *Pool) SetMinFeeRate(rate uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minFeeRate = rate
}

// MinFeeRate returns the current minimum relay fee rate.
func (p *Pool) MinFeeRate() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minFeeRate
}

// Add validates transaction against the UTXO set and policy, then adds
// it to the pool. Returns the computed fee. Rejects duplicates and
// double-spend conflicts with transactions already pooled.
func (p *Pool) Add(transaction *tx.Transaction) (types.Amount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()
	if _, exists := p.txs[txHash]; exists {
		return types.Amount{}, ErrAlreadyExists
	}

	for _, in := range transaction.Inputs {
		op := types.Outpoint{TxID: in.PrevTxID, Index: in.Vout}
		if conflictHash, exists := p.spends[op]; exists {
			return types.Amount{}, fmt.Errorf("%w: input %s:%d already spent by %s", ErrConflict, in.PrevTxID, in.Vout, conflictHash)
		}
	}

	if err := DefaultPolicy().Check(transaction); err != nil {
		return types.Amount{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fee, err := transaction.ValidateWithUTXOs(p.utxos)
	if err != nil {
		return types.Amount{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	size := len(transaction.Encode())
	var feeRate float64
	if size > 0 {
		feeRate = amountToFloat(fee) / float64(size)
	}

	if p.minFeeRate > 0 && feeRate < float64(p.minFeeRate) {
		return types.Amount{}, fmt.Errorf("%w: rate %.4f, need %d per byte", ErrFeeTooLow, feeRate, p.minFeeRate)
	}

	if len(p.txs) >= p.maxSize {
		lowestHash, lowestRate := p.findLowestFeeRate()
		if feeRate <= lowestRate {
			return types.Amount{}, ErrPoolFull
		}
		p.removeLocked(lowestHash)
	}

	e := &entry{tx: transaction, txHash: txHash, fee: fee, feeRate: feeRate}
	p.txs[txHash] = e
	for _, in := range transaction.Inputs {
		p.spends[types.Outpoint{TxID: in.PrevTxID, Index: in.Vout}] = txHash
	}

	return fee, nil
}

// amountToFloat renders an Amount as a float64 for fee-rate comparisons.
// Precision loss above 2^53 base units is acceptable here: fee rates are
// an admission heuristic, never a consensus quantity.
func amountToFloat(a types.Amount) float64 {
	f, _ := new(big.Float).SetInt(a.BigInt()).Float64()
	return f
}

// Remove removes a transaction from the pool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	for _, in := range e.tx.Inputs {
		delete(p.spends, types.Outpoint{TxID: in.PrevTxID, Index: in.Vout})
	}
	delete(p.txs, txHash)
}

// RemoveConfirmed removes every transaction in transactions from the
// pool. Called by the chain manager on block acceptance; the coinbase
// should be excluded by the caller since it never reaches the pool.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.Hash())
	}
}

// Has reports whether a transaction is pooled.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a pooled transaction, or nil if absent.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// GetFee returns the fee of a pooled transaction, or the zero amount if absent.
func (p *Pool) GetFee(txHash types.Hash) types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return types.ZeroAmount()
	}
	return e.fee
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the hashes of every pooled transaction.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// findLowestFeeRate returns the hash and rate of the lowest fee-rate
// entry. Must be called with p.mu held.
func (p *Pool) findLowestFeeRate() (types.Hash, float64) {
	var lowestHash types.Hash
	lowestRate := math.MaxFloat64
	for h, e := range p.txs {
		if e.feeRate < lowestRate {
			lowestRate = e.feeRate
			lowestHash = h
		}
	}
	return lowestHash, lowestRate
}

// SelectForBlock returns pooled transactions ordered by fee rate
// (highest first), up to limit.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].feeRate > entries[j].feeRate
	})

	if limit > len(entries) || limit <= 0 {
		limit = len(entries)
	}
	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
