// Package miner produces candidate blocks and seals them with the
// memory-hard proof of work of internal/pow, submitting each winning
// block to internal/chain. It is adapted from the teacher's ticker-driven
// internal/miner/miner.go, reshaped around a nonce search that can run for
// an unbounded time instead of a fixed block-time ticker: spec.md has no
// fixed block interval, so production here is "mine continuously, restart
// whenever someone else's block changes the target height" rather than
// "wake up once per block-time and check if it's your turn".
package miner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/internal/chain"
	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/internal/ledger"
	"github.com/astram-chain/astram/internal/mempool"
	"github.com/astram-chain/astram/internal/pow"
	"github.com/astram-chain/astram/internal/reward"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
	"github.com/rs/zerolog"
)

// maxPooledTxs bounds how many mempool transactions a single candidate
// block includes: config.MaxBlockTxs minus the coinbase's own slot.
const maxPooledTxs = config.MaxBlockTxs - 1

// tipPollInterval is how often a mining attempt checks whether the
// chain's tip advanced past its target height while it was searching
// for a nonce. spec.md §5 ties cancellation to "whenever a peer block
// is accepted whose height is >= the current mining target"; since the
// core has no event bus of its own (peer delivery is an external
// collaborator, spec.md §1), this poll is the mechanism, grounded on
// the cooperative-yield polling the spec already asks PoW search
// itself to do every 10^5 nonces.
const tipPollInterval = 200 * time.Millisecond

// Datasets supplies the epoch DAG a candidate header is sealed against.
// *dag.Manager satisfies this.
type Datasets interface {
	Get(epoch uint64) *dag.Dataset
}

// Store is the read access a candidate block needs from the ledger:
// the current tip header, for its hash, height, and difficulty.
type Store interface {
	TipHeader() (*block.Header, error)
}

// Miner assembles candidate blocks from the mempool's highest fee-rate
// transactions, pays itself the block reward plus their fees in a
// coinbase, and searches for a satisfying nonce.
type Miner struct {
	store    Store
	chain    *chain.Chain
	pool     *mempool.Pool
	datasets Datasets
	coinbase types.Address
}

// New builds a Miner. store and chain may point at the same underlying
// ledger; store is used for read-only candidate assembly, chain for
// submitting sealed blocks and reading the live height for cancellation.
func New(store Store, ch *chain.Chain, pool *mempool.Pool, datasets Datasets, coinbase types.Address) *Miner {
	return &Miner{store: store, chain: ch, pool: pool, datasets: datasets, coinbase: coinbase}
}

// buildCandidate assembles an unsealed block extending the current tip:
// a coinbase paying reward(height)+fees to m.coinbase, followed by the
// mempool's highest fee-rate transactions.
func (m *Miner) buildCandidate() (*block.Block, error) {
	tipHeader, err := m.store.TipHeader()
	if err != nil {
		return nil, fmt.Errorf("miner: load tip header: %w", err)
	}

	height := tipHeader.Index + 1
	selected := m.pool.SelectForBlock(maxPooledTxs)

	totalFees := types.ZeroAmount()
	for _, t := range selected {
		fee := m.pool.GetFee(t.Hash())
		totalFees, err = totalFees.Add(fee)
		if err != nil {
			return nil, fmt.Errorf("miner: fee accumulation overflow: %w", err)
		}
	}

	allowance, err := reward.Reward(height).Add(totalFees)
	if err != nil {
		return nil, fmt.Errorf("miner: reward+fee overflow: %w", err)
	}
	coinbase := &tx.Transaction{
		Outputs:   []tx.Output{{ToAddress: m.coinbase, Amount: allowance}},
		Timestamp: time.Now().Unix(),
	}

	// block.Validate requires coinbase first, then every remaining
	// transaction in ascending hash order; fee-rate selection above
	// picks *which* mempool transactions ride along, not the order
	// they're serialized in, so re-sort before assembling the block.
	sort.Slice(selected, func(i, j int) bool {
		hi, hj := selected[i].Hash(), selected[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})

	txs := make([]*tx.Transaction, 0, len(selected)+1)
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	txids := make([]types.Hash, len(txs))
	for i, t := range txs {
		txids[i] = t.Hash()
	}

	header := &block.Header{
		Index:        height,
		PreviousHash: tipHeader.Hash(),
		MerkleRoot:   block.ComputeMerkleRoot(txids),
		Timestamp:    time.Now().Unix(),
		Difficulty:   tipHeader.Difficulty,
	}
	return block.NewBlock(header, txs), nil
}

// Mine assembles one candidate block and searches for a satisfying
// nonce, returning pow.ErrCancelled if ctx is done first.
func (m *Miner) Mine(ctx context.Context) (*block.Block, error) {
	blk, err := m.buildCandidate()
	if err != nil {
		return nil, err
	}
	ds := m.datasets.Get(dag.Epoch(blk.Header.Index))
	if err := pow.Seal(ctx, blk.Header, ds); err != nil {
		return nil, err
	}
	return blk, nil
}

// Run mines continuously until ctx is cancelled, submitting each sealed
// block to the chain manager. A mining attempt is cancelled early
// whenever the chain's height reaches or passes the height the attempt
// is targeting — almost always because a peer's block for that height
// was accepted first — so the miner restarts against the new tip rather
// than finish a nonce search that can no longer be accepted.
func (m *Miner) Run(ctx context.Context, logger zerolog.Logger) {
	for ctx.Err() == nil {
		target := m.chain.Height() + 1
		attemptCtx, cancel := context.WithCancel(ctx)
		stop := m.watchTip(attemptCtx, cancel, target)

		blk, err := m.Mine(attemptCtx)
		cancel()
		<-stop

		if err != nil {
			if errors.Is(err, pow.ErrCancelled) {
				continue
			}
			logger.Error().Err(err).Msg("mining attempt failed")
			continue
		}

		if err := m.chain.ProcessBlock(blk); err != nil {
			if errors.Is(err, chain.ErrBlockKnown) {
				continue
			}
			logger.Error().Err(err).Uint64("height", blk.Header.Index).Msg("mined block rejected")
			continue
		}
		logger.Info().
			Uint64("height", blk.Header.Index).
			Str("hash", blk.Header.Hash().String()).
			Int("txs", len(blk.Transactions)).
			Msg("mined block accepted")
	}
}

// watchTip polls the chain's height until it reaches target, cancelling
// the in-flight mining attempt, or until attemptCtx is done for any
// other reason. The returned channel closes once the watcher exits, so
// callers can wait for it before starting the next attempt.
func (m *Miner) watchTip(attemptCtx context.Context, cancel context.CancelFunc, target uint64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(tipPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-attemptCtx.Done():
				return
			case <-ticker.C:
				if m.chain.Height() >= target {
					cancel()
					return
				}
			}
		}
	}()
	return done
}

var _ Store = (*ledger.Store)(nil)
