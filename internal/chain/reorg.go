package chain

import (
	"fmt"

	"github.com/astram-chain/astram/internal/ledger"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// reorgTo switches the live tip from c.tip to newTip, which must
// already be stored (headers, blocks, and transactions persisted, but
// not yet reflected in the UTXO set or height index). It walks both
// branches back to their common ancestor, undoes the abandoned
// branch's UTXO effects, and replays the new branch one block at a
// time so each commit leaves the store consistent for the next block's
// validation. c.mu must be held.
func (c *Chain) reorgTo(newTip types.Hash) error {
	oldTip, oldHeight := c.tip, c.height

	_, oldBranch, newBranchDesc, err := c.findAncestor(oldTip, newTip)
	if err != nil {
		return fmt.Errorf("find common ancestor: %w", err)
	}
	newBranch := reverseHeaders(newBranchDesc) // ascending height, for sequential replay.

	reverted, err := c.undoBranch(oldBranch)
	if err != nil {
		return fmt.Errorf("undo abandoned branch: %w", err)
	}

	applied, redoErr := c.redoBranch(newBranch)
	if redoErr != nil {
		// Unwind: undo whatever of the new branch made it in, restore
		// the abandoned branch, and surface the original failure. A
		// failure in this recovery path would mean storage itself is
		// failing nondeterministically, which is outside what this
		// code can repair; it is surfaced as a distinct error so an
		// operator knows the tip pointer may be inconsistent.
		if _, err := c.undoBranch(reverseHeaders(applied)); err != nil {
			return fmt.Errorf("reorg failed (%v) and rollback also failed: %w", redoErr, err)
		}
		if _, err := c.redoBranch(reverseHeaders(oldBranch)); err != nil {
			return fmt.Errorf("reorg failed (%v) and restoring the prior tip also failed: %w", redoErr, err)
		}
		c.tip, c.height = oldTip, oldHeight
		return redoErr
	}

	c.tip = newTip
	c.height = newBranch[len(newBranch)-1].Index

	if c.pool != nil {
		c.requeueReverted(reverted, newBranch)
	}
	return nil
}

// findAncestor walks the headers rooted at aHash and bHash back to
// their first common ancestor. It returns that ancestor's hash plus
// each branch's headers from its tip down to (but not including) the
// ancestor, both in descending-height (tip-first) order.
func (c *Chain) findAncestor(aHash, bHash types.Hash) (types.Hash, []*block.Header, []*block.Header, error) {
	a, err := c.store.LoadHeader(aHash)
	if err != nil {
		return types.Hash{}, nil, nil, fmt.Errorf("load header %s: %w", aHash, err)
	}
	b, err := c.store.LoadHeader(bHash)
	if err != nil {
		return types.Hash{}, nil, nil, fmt.Errorf("load header %s: %w", bHash, err)
	}

	var aChain, bChain []*block.Header
	for a.Index > b.Index {
		aChain = append(aChain, a)
		a, err = c.store.LoadHeader(a.PreviousHash)
		if err != nil {
			return types.Hash{}, nil, nil, fmt.Errorf("walk back: %w", err)
		}
	}
	for b.Index > a.Index {
		bChain = append(bChain, b)
		b, err = c.store.LoadHeader(b.PreviousHash)
		if err != nil {
			return types.Hash{}, nil, nil, fmt.Errorf("walk back: %w", err)
		}
	}
	for a.Hash() != b.Hash() {
		aChain = append(aChain, a)
		bChain = append(bChain, b)
		a, err = c.store.LoadHeader(a.PreviousHash)
		if err != nil {
			return types.Hash{}, nil, nil, fmt.Errorf("walk back: %w", err)
		}
		b, err = c.store.LoadHeader(b.PreviousHash)
		if err != nil {
			return types.Hash{}, nil, nil, fmt.Errorf("walk back: %w", err)
		}
	}
	return a.Hash(), aChain, bChain, nil
}

func reverseHeaders(in []*block.Header) []*block.Header {
	out := make([]*block.Header, len(in))
	for i, h := range in {
		out[len(in)-1-i] = h
	}
	return out
}

// undoBranch reverses the ledger effects of headers, which must be in
// tip-first (descending height) order because the batch applies its
// writes in sequence and the last write to a key wins:
// restores every UTXO their transactions spent, removes every UTXO
// their transactions created, and clears their height-index entries.
// Headers, blocks, and transactions themselves are never deleted —
// blocks are never discarded once stored, only unwound from the live
// UTXO set. Returns the non-coinbase transactions it restored, for
// possible mempool reinsertion.
func (c *Chain) undoBranch(headers []*block.Header) ([]*tx.Transaction, error) {
	batch := c.store.NewBatch()
	var reverted []*tx.Transaction
	for _, h := range headers {
		hash := h.Hash()
		blk, err := c.store.LoadBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("load block %s: %w", hash, err)
		}
		for i, t := range blk.Transactions {
			for j, out := range t.Outputs {
				op := types.Outpoint{TxID: t.Hash(), Index: uint32(j)}
				if err := batch.DeleteUTXO(op, out.ToAddress); err != nil {
					return nil, err
				}
			}
			if i == 0 {
				continue // coinbase has no inputs to restore.
			}
			for _, in := range t.Inputs {
				spentTx, err := c.store.LoadTransaction(in.PrevTxID)
				if err != nil {
					return nil, fmt.Errorf("load spent tx %s: %w", in.PrevTxID, err)
				}
				out := spentTx.Outputs[in.Vout]
				u := ledger.UTXO{TxID: in.PrevTxID, Vout: in.Vout, ToAddress: out.ToAddress, Amount: out.Amount}
				if err := batch.PutUTXO(u); err != nil {
					return nil, err
				}
			}
			reverted = append(reverted, t)
		}
		if err := batch.DeleteHeightIndex(h.Index); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit undo: %w", err)
	}
	return reverted, nil
}

// redoBranch replays headers (ascending height order — parent before
// child) by full validation against the live store, committing each as
// it succeeds so the next block's validation sees correct state. It
// stops at the first failure and returns the headers it did manage to
// apply, so the caller can unwind exactly that prefix.
func (c *Chain) redoBranch(headers []*block.Header) ([]*block.Header, error) {
	applied := make([]*block.Header, 0, len(headers))
	for _, h := range headers {
		hash := h.Hash()
		blk, err := c.store.LoadBlock(hash)
		if err != nil {
			return applied, fmt.Errorf("load block %s: %w", hash, err)
		}
		res, err := c.validator.Validate(blk)
		if err != nil {
			return applied, fmt.Errorf("revalidate %s: %w", hash, err)
		}
		if err := res.Batch.SetHeightIndex(h.Index, hash); err != nil {
			return applied, err
		}
		if err := res.Batch.SetTip(hash); err != nil {
			return applied, err
		}
		if err := res.Batch.Commit(); err != nil {
			return applied, fmt.Errorf("commit %s: %w", hash, err)
		}
		applied = append(applied, h)
	}
	return applied, nil
}

// requeueReverted offers every transaction undone by an abandoned
// branch back to the mempool, skipping any that the new branch itself
// already includes and any that no longer validate against the
// post-reorg UTXO set. Admission failures (conflicts, fee policy) are
// ignored — this is best-effort relay, not a consensus requirement.
func (c *Chain) requeueReverted(reverted []*tx.Transaction, newBranch []*block.Header) {
	included := make(map[types.Hash]bool)
	for _, h := range newBranch {
		blk, err := c.store.LoadBlock(h.Hash())
		if err != nil {
			continue
		}
		for _, t := range blk.Transactions {
			included[t.Hash()] = true
		}
	}
	for _, t := range reverted {
		if included[t.Hash()] {
			continue
		}
		if _, err := t.ValidateWithUTXOs(c.store); err != nil {
			continue
		}
		_, _ = c.pool.Add(t)
	}
}
