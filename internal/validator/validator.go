package validator

import (
	"errors"
	"fmt"

	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/internal/ledger"
	"github.com/astram-chain/astram/internal/pow"
	"github.com/astram-chain/astram/internal/reward"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// DatasetSource supplies the epoch DAG a header's PoW is checked
// against. *dag.Manager satisfies this.
type DatasetSource interface {
	Get(epoch uint64) *dag.Dataset
}

// Validator runs the ordered checks of spec.md §4.7 against a
// candidate block and, on success, stages every resulting ledger write
// into a batch the caller commits.
type Validator struct {
	store    *ledger.Store
	datasets DatasetSource
}

// New builds a Validator backed by store for UTXO/header lookups and
// datasets for PoW verification.
func New(store *ledger.Store, datasets DatasetSource) *Validator {
	return &Validator{store: store, datasets: datasets}
}

// Result carries the outcome of a successful validation: the staged,
// uncommitted batch (header, block, transactions, spent/created
// UTXOs), and the fee/reward accounting the caller may want to log or
// use for mempool relay-fee decisions. The caller still must add a
// height-index entry and, if this block is to become the new tip, a
// tip update, before calling Commit — tip policy belongs to the chain
// manager, not the validator.
type Result struct {
	Batch       *ledger.Batch
	TotalFees   types.Amount
	BlockReward types.Amount
}

// Validate runs the full ordered check sequence against blk. On
// success it returns a Result with every ledger write staged but not
// committed. On failure it returns one of the typed errors in errors.go
// wrapped with context; ErrOrphanParentMissing is the only recoverable
// one — callers should route the block to an orphan pool rather than
// treat it as invalid.
func (v *Validator) Validate(blk *block.Block) (*Result, error) {
	if blk == nil || blk.Header == nil {
		return nil, fmt.Errorf("%w: nil block or header", ErrInvalidStructure)
	}
	header := blk.Header

	// Steps 1 & 2: header hash and merkle root. Header.Hash() is a pure
	// function of Header.Encode(), so any successfully-decoded header is
	// self-consistent by construction; what can still fail is the
	// merkle root claimed in the header not matching the block's actual
	// transactions, and the broader structural rules bundled into
	// Block.Validate (empty block, coinbase placement, tx shape, size
	// limits, canonical ordering, cross-tx duplicate inputs — step 4).
	if err := blk.Validate(); err != nil {
		if errors.Is(err, block.ErrBadMerkleRoot) {
			return nil, fmt.Errorf("%w: %v", ErrMerkleMismatch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	// Step 3: parent resolution.
	if !header.IsGenesis() {
		has, err := v.store.HasHeader(header.PreviousHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !has {
			return nil, fmt.Errorf("%w: previous_hash %s", ErrOrphanParentMissing, header.PreviousHash)
		}
	}

	batch := v.store.NewBatch()

	// Step 5: per-transaction signature verification and UTXO spend.
	totalFees := types.ZeroAmount()
	coinbase := blk.Transactions[0]
	for i, t := range blk.Transactions {
		if i == 0 {
			continue // coinbase: no inputs, nothing to spend or verify.
		}
		if err := t.VerifySignatures(); err != nil {
			return nil, fmt.Errorf("%w: tx %d: %v", ErrInvalidSignature, i, err)
		}

		fee, err := v.spendInputs(t, batch)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, fmt.Errorf("%w: tx %d: %v", ErrUTXOMissing, i, err)
			}
			if errors.Is(err, errOutputsExceedInputsLocal) {
				return nil, fmt.Errorf("%w: tx %d", ErrOutputsExceedInputs, i)
			}
			return nil, fmt.Errorf("%w: tx %d: %v", ErrStorageError, i, err)
		}
		totalFees, err = totalFees.Add(fee)
		if err != nil {
			return nil, fmt.Errorf("%w: fee accumulation overflow: %v", ErrStorageError, err)
		}

		if err := v.createOutputs(t, batch); err != nil {
			return nil, fmt.Errorf("%w: tx %d: %v", ErrStorageError, i, err)
		}
		if err := batch.PutTransaction(t, header.Index); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}

	// Coinbase issuance: its outputs may not exceed the block reward
	// plus the fees collected from every other transaction.
	blockReward := reward.Reward(header.Index)
	allowance, err := blockReward.Add(totalFees)
	if err != nil {
		return nil, fmt.Errorf("%w: reward+fee overflow: %v", ErrStorageError, err)
	}
	coinbaseTotal, err := coinbase.TotalOutputValue()
	if err != nil {
		return nil, fmt.Errorf("%w: coinbase output overflow: %v", ErrInvalidStructure, err)
	}
	if coinbaseTotal.Cmp(allowance) > 0 {
		return nil, fmt.Errorf("%w: coinbase pays %s, allowance %s", ErrOutputsExceedInputs, coinbaseTotal, allowance)
	}
	if err := v.createOutputs(coinbase, batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := batch.PutTransaction(coinbase, header.Index); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	// Step 6: proof of work.
	epoch := dag.Epoch(header.Index)
	dataset := v.datasets.Get(epoch)
	if !pow.Verify(header, header.Nonce, dataset) {
		return nil, fmt.Errorf("%w", ErrInvalidPoW)
	}

	// Step 7 (partial): header and full block persist unconditionally.
	// Height index and tip are staged by the caller, which owns chain
	// policy.
	if err := batch.PutHeader(header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := batch.PutBlock(blk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	return &Result{Batch: batch, TotalFees: totalFees, BlockReward: blockReward}, nil
}

// ValidateStructure runs every check of Validate except UTXO
// application: block structure and merkle root, per-transaction
// signatures, and proof of work. The chain manager uses it to admit a
// fork block it isn't ready to apply against the live UTXO set yet —
// the block still must pass every rule that doesn't depend on chain
// position before it can sit in storage awaiting a possible reorg.
func (v *Validator) ValidateStructure(blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("%w: nil block or header", ErrInvalidStructure)
	}
	header := blk.Header

	if err := blk.Validate(); err != nil {
		if errors.Is(err, block.ErrBadMerkleRoot) {
			return fmt.Errorf("%w: %v", ErrMerkleMismatch, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	for i, t := range blk.Transactions {
		if i == 0 {
			continue
		}
		if err := t.VerifySignatures(); err != nil {
			return fmt.Errorf("%w: tx %d: %v", ErrInvalidSignature, i, err)
		}
	}

	epoch := dag.Epoch(header.Index)
	dataset := v.datasets.Get(epoch)
	if !pow.Verify(header, header.Nonce, dataset) {
		return fmt.Errorf("%w", ErrInvalidPoW)
	}
	return nil
}

// errOutputsExceedInputsLocal is a sentinel spendInputs returns so
// Validate can classify it without spendInputs needing to know about
// the exported error types.
var errOutputsExceedInputsLocal = errors.New("outputs exceed inputs")

// spendInputs looks up, in the store, the UTXO referenced by each of
// t's inputs, deletes it in batch, and returns the fee (input sum
// minus output sum). It does not stage t's own outputs — see
// createOutputs.
func (v *Validator) spendInputs(t *tx.Transaction, batch *ledger.Batch) (types.Amount, error) {
	totalInput := types.ZeroAmount()
	for _, in := range t.Inputs {
		op := types.Outpoint{TxID: in.PrevTxID, Index: in.Vout}
		u, err := v.store.LoadUTXO(op)
		if err != nil {
			return types.Amount{}, err
		}
		totalInput, err = totalInput.Add(u.Amount)
		if err != nil {
			return types.Amount{}, err
		}
		if err := batch.DeleteUTXO(op, u.ToAddress); err != nil {
			return types.Amount{}, err
		}
	}
	totalOutput, err := t.TotalOutputValue()
	if err != nil {
		return types.Amount{}, err
	}
	if totalOutput.Cmp(totalInput) > 0 {
		return types.Amount{}, errOutputsExceedInputsLocal
	}
	fee, err := totalInput.Sub(totalOutput)
	if err != nil {
		return types.Amount{}, err
	}
	return fee, nil
}

// createOutputs stages a new UTXO for every output of t.
func (v *Validator) createOutputs(t *tx.Transaction, batch *ledger.Batch) error {
	txid := t.Hash()
	for i, out := range t.Outputs {
		u := ledger.UTXO{TxID: txid, Vout: uint32(i), ToAddress: out.ToAddress, Amount: out.Amount}
		if err := batch.PutUTXO(u); err != nil {
			return err
		}
	}
	return nil
}
