// Package chain owns the one piece of state validation deliberately
// leaves out: which header is the tip. It tracks height and tip hash,
// holds blocks whose parent hasn't arrived yet in an orphan pool, and
// reorganizes the ledger when a competing branch overtakes the current
// tip in height.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/astram-chain/astram/internal/ledger"
	"github.com/astram-chain/astram/internal/mempool"
	"github.com/astram-chain/astram/internal/validator"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/types"
)

// Errors returned by ProcessBlock. Every other error it returns is a
// typed validator error (see internal/validator/errors.go) wrapped with
// context.
var (
	// ErrBlockKnown is returned when the block's hash is already
	// stored. Accepting the same block twice is a no-op; the caller
	// should treat this as success.
	ErrBlockKnown = errors.New("chain: block already known")

	// ErrOrphaned is returned when the block's parent has not been
	// seen yet. The block is held in the orphan pool and will be
	// reconsidered automatically once its parent arrives.
	ErrOrphaned = errors.New("chain: parent not found, block held pending its arrival")

	// ErrBadHeight is returned when a block's index does not
	// immediately follow its parent's.
	ErrBadHeight = errors.New("chain: block index does not follow its parent")

	// ErrNotGenesis is returned by ProcessBlock when handed an
	// index-0 block; genesis is only ever admitted via
	// InitFromGenesis.
	ErrNotGenesis = errors.New("chain: genesis block must be installed via InitFromGenesis")

	// ErrAlreadyInitialized is returned by InitFromGenesis on a chain
	// that already has a tip.
	ErrAlreadyInitialized = errors.New("chain: already initialized")
)

const (
	defaultMaxOrphans = 100
	defaultOrphanTTL  = 30 * time.Minute
)

// Chain tracks the current tip and mediates every block admission
// against the ledger store and validator. It does not itself perform
// proof-of-work checks or UTXO bookkeeping — validator.Validator does
// that; Chain decides what becomes the tip and reconciles forks.
//
// Balance, UTXO, and historical block/transaction lookups are not
// wrapped here: callers read those directly from the ledger.Store,
// which serves them without taking Chain's guard.
type Chain struct {
	mu sync.Mutex

	store     *ledger.Store
	validator *validator.Validator
	pool      *mempool.Pool // nil if this node relays no mempool.

	hasTip bool
	tip    types.Hash
	height uint64

	orphans    map[types.Hash]orphanEntry
	maxOrphans int
	orphanTTL  time.Duration
}

// New builds a Chain over store and v, recovering its current tip from
// store if one has already been persisted (e.g. after a restart). pool
// may be nil; if non-nil, confirmed transactions are evicted from it on
// block acceptance and transactions undone by a reorg are requeued
// into it.
func New(store *ledger.Store, v *validator.Validator, pool *mempool.Pool) (*Chain, error) {
	if store == nil {
		return nil, fmt.Errorf("chain: ledger store is nil")
	}
	if v == nil {
		return nil, fmt.Errorf("chain: validator is nil")
	}
	c := &Chain{
		store:      store,
		validator:  v,
		pool:       pool,
		orphans:    make(map[types.Hash]orphanEntry),
		maxOrphans: defaultMaxOrphans,
		orphanTTL:  defaultOrphanTTL,
	}
	tip, err := store.Tip()
	if errors.Is(err, ledger.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chain: recover tip: %w", err)
	}
	header, err := store.LoadHeader(tip)
	if err != nil {
		return nil, fmt.Errorf("chain: recover tip header: %w", err)
	}
	c.tip, c.height, c.hasTip = tip, header.Index, true
	return c, nil
}

// Height returns the current tip's height. Meaningless (returns 0)
// before InitFromGenesis has run; check Tip's ok return to tell the
// difference between height 0 and an uninitialized chain.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Tip returns the current tip hash and whether the chain has been
// initialized at all.
func (c *Chain) Tip() (types.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip, c.hasTip
}

// OrphanCount returns the number of blocks currently held pending
// their parent's arrival.
func (c *Chain) OrphanCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orphans)
}

// InitFromGenesis installs blk, which must be a fully sealed (valid
// proof of work) genesis block, as height 0. Use CreateGenesisBlock to
// build one from a config.Genesis and internal/pow.Seal to seal it
// before calling this.
func (c *Chain) InitFromGenesis(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasTip {
		return fmt.Errorf("%w: at height %d", ErrAlreadyInitialized, c.height)
	}
	if blk == nil || blk.Header == nil || !blk.Header.IsGenesis() {
		return fmt.Errorf("chain: not a genesis block")
	}

	res, err := c.validator.Validate(blk)
	if err != nil {
		return fmt.Errorf("chain: validate genesis: %w", err)
	}
	hash := blk.Header.Hash()
	if err := res.Batch.SetHeightIndex(0, hash); err != nil {
		return fmt.Errorf("chain: stage genesis height index: %w", err)
	}
	if err := res.Batch.SetTip(hash); err != nil {
		return fmt.Errorf("chain: stage genesis tip: %w", err)
	}
	if err := res.Batch.Commit(); err != nil {
		return fmt.Errorf("chain: commit genesis: %w", err)
	}

	c.tip, c.height, c.hasTip = hash, 0, true
	return nil
}

// ProcessBlock admits blk into the chain. It returns nil on acceptance:
// as the new tip, as part of a winning fork, or as a valid side-branch
// block that is stored without changing the tip. It returns ErrBlockKnown
// if the block was already stored, ErrOrphaned if its parent has not
// been seen yet (blk is held and will be retried automatically), or a
// wrapped validator/chain error if blk is invalid.
func (c *Chain) ProcessBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupOrphans()
	err := c.processBlockLocked(blk)
	if err == nil {
		c.resolveOrphans()
	}
	return err
}

// processBlockLocked implements ProcessBlock's logic; c.mu must be
// held. It is also the entry point resolveOrphans uses to retry held
// blocks, which is why orphan handling lives in ProcessBlock rather
// than here — re-entrant orphan resolution must not re-trigger its own
// cleanup/resolve pass.
func (c *Chain) processBlockLocked(blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("chain: nil block or header")
	}
	header := blk.Header
	hash := header.Hash()

	if header.IsGenesis() {
		return ErrNotGenesis
	}

	known, err := c.store.HasHeader(hash)
	if err != nil {
		return fmt.Errorf("chain: check known header: %w", err)
	}
	if known {
		return ErrBlockKnown
	}

	parentHeader, err := c.store.LoadHeader(header.PreviousHash)
	if errors.Is(err, ledger.ErrNotFound) {
		c.addOrphan(blk)
		return ErrOrphaned
	}
	if err != nil {
		return fmt.Errorf("chain: load parent header: %w", err)
	}
	if header.Index != parentHeader.Index+1 {
		return fmt.Errorf("%w: parent height %d, block index %d", ErrBadHeight, parentHeader.Index, header.Index)
	}

	if !c.hasTip || header.PreviousHash == c.tip {
		return c.acceptFastPath(blk, hash)
	}
	return c.acceptForkBlock(blk, hash)
}

// acceptFastPath validates blk and commits it as an extension of the
// live tip.
func (c *Chain) acceptFastPath(blk *block.Block, hash types.Hash) error {
	res, err := c.validator.Validate(blk)
	if err != nil {
		if errors.Is(err, validator.ErrOrphanParentMissing) {
			c.addOrphan(blk)
			return ErrOrphaned
		}
		return err
	}
	if err := res.Batch.SetHeightIndex(blk.Header.Index, hash); err != nil {
		return fmt.Errorf("chain: stage height index: %w", err)
	}
	if err := res.Batch.SetTip(hash); err != nil {
		return fmt.Errorf("chain: stage tip: %w", err)
	}
	if err := res.Batch.Commit(); err != nil {
		return fmt.Errorf("chain: commit block: %w", err)
	}

	c.tip, c.height, c.hasTip = hash, blk.Header.Index, true
	if c.pool != nil && len(blk.Transactions) > 1 {
		c.pool.RemoveConfirmed(blk.Transactions[1:])
	}
	return nil
}

// acceptForkBlock validates blk against every rule that doesn't depend
// on chain position (structure, signatures, proof of work) and persists
// it without applying its UTXO effects — it is not yet part of the
// live chain. If it extends a branch that is now longer than the
// current tip, a reorg promotes it.
func (c *Chain) acceptForkBlock(blk *block.Block, hash types.Hash) error {
	if err := c.validator.ValidateStructure(blk); err != nil {
		return err
	}

	batch := c.store.NewBatch()
	if err := batch.PutHeader(blk.Header); err != nil {
		return fmt.Errorf("chain: stage fork header: %w", err)
	}
	if err := batch.PutBlock(blk); err != nil {
		return fmt.Errorf("chain: stage fork block: %w", err)
	}
	for _, t := range blk.Transactions {
		if err := batch.PutTransaction(t, blk.Header.Index); err != nil {
			return fmt.Errorf("chain: stage fork tx: %w", err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("chain: commit fork block: %w", err)
	}

	if blk.Header.Index > c.height {
		if err := c.reorgTo(hash); err != nil {
			return fmt.Errorf("chain: reorg to %s: %w", hash, err)
		}
	}
	return nil
}
