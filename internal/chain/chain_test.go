package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/internal/ledger"
	"github.com/astram-chain/astram/internal/mempool"
	"github.com/astram-chain/astram/internal/pow"
	"github.com/astram-chain/astram/internal/reward"
	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/internal/validator"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

// fixedDatasets serves one tiny, deterministic dataset for every epoch
// so tests never generate the real multi-gigabyte DAG.
type fixedDatasets struct{ ds *dag.Dataset }

func (f fixedDatasets) Get(uint64) *dag.Dataset { return f.ds }

func newTestEnv(t *testing.T) (*ledger.Store, *validator.Validator, *mempool.Pool, *Chain) {
	t.Helper()
	store := ledger.Open(storage.NewMemory())
	datasets := fixedDatasets{ds: dag.GenerateSize(0, 64)}
	v := validator.New(store, datasets)
	pool := mempool.New(store, 100)
	c, err := New(store, v, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, v, pool, c
}

func seal(t *testing.T, header *block.Header) {
	t.Helper()
	ds := dag.GenerateSize(0, 64)
	if err := pow.Seal(context.Background(), header, ds); err != nil {
		t.Fatalf("seal: %v", err)
	}
}

// sealedGenesisBlock builds and seals a zero-difficulty genesis block
// paying the full initial subsidy to coinbaseTo.
func sealedGenesisBlock(t *testing.T, coinbaseTo types.Address) *block.Block {
	t.Helper()
	gen := &config.Genesis{
		Timestamp:         time.Now().Unix(),
		Alloc:             map[string]string{addrToAllocKey(coinbaseTo): reward.Reward(0).String()},
		InitialDifficulty: 0,
	}
	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		t.Fatalf("CreateGenesisBlock: %v", err)
	}
	seal(t, blk.Header)
	return blk
}

// addrToAllocKey renders addr the way config.Genesis.Alloc keys its
// entries: the bech32 form from Address.String, which types.ParseAddress
// reads back; see pkg/types/address_test.go for the encoding's round trip.
func addrToAllocKey(addr types.Address) string {
	return addr.String()
}

// childBlock builds and seals a single-coinbase block extending parent,
// paying the full block reward for its height to coinbaseTo.
func childBlock(t *testing.T, parent *block.Header, coinbaseTo types.Address) *block.Block {
	t.Helper()
	height := parent.Index + 1
	cb := &tx.Transaction{
		Outputs:   []tx.Output{{ToAddress: coinbaseTo, Amount: reward.Reward(height)}},
		Timestamp: time.Now().Unix(),
	}
	root := block.ComputeMerkleRoot([]types.Hash{cb.Hash()})
	header := &block.Header{
		Index:        height,
		PreviousHash: parent.Hash(),
		MerkleRoot:   root,
		Timestamp:    time.Now().Unix(),
	}
	seal(t, header)
	return block.NewBlock(header, []*tx.Transaction{cb})
}

func TestChainInitFromGenesis(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})

	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	tip, ok := c.Tip()
	if !ok {
		t.Fatal("expected chain to be initialized")
	}
	if tip != genesis.Header.Hash() {
		t.Error("tip does not match genesis hash")
	}
	if c.Height() != 0 {
		t.Errorf("Height() = %d, want 0", c.Height())
	}
}

func TestChainInitFromGenesisRejectsSecondCall(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	if err := c.InitFromGenesis(genesis); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestChainProcessBlockExtendsTip(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	blk1 := childBlock(t, genesis.Header, types.Address{0x02})
	if err := c.ProcessBlock(blk1); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if c.Height() != 1 {
		t.Errorf("Height() = %d, want 1", c.Height())
	}
	tip, _ := c.Tip()
	if tip != blk1.Header.Hash() {
		t.Error("tip did not advance to blk1")
	}
}

func TestChainProcessBlockKnownIsBenign(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	blk1 := childBlock(t, genesis.Header, types.Address{0x02})
	if err := c.ProcessBlock(blk1); err != nil {
		t.Fatalf("first ProcessBlock: %v", err)
	}
	if err := c.ProcessBlock(blk1); !errors.Is(err, ErrBlockKnown) {
		t.Fatalf("expected ErrBlockKnown, got %v", err)
	}
}

func TestChainProcessBlockOrphan(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	blk1 := childBlock(t, genesis.Header, types.Address{0x02})
	blk2 := childBlock(t, blk1.Header, types.Address{0x03})

	if err := c.ProcessBlock(blk2); !errors.Is(err, ErrOrphaned) {
		t.Fatalf("expected ErrOrphaned, got %v", err)
	}
	if c.OrphanCount() != 1 {
		t.Fatalf("OrphanCount() = %d, want 1", c.OrphanCount())
	}
	if c.Height() != 0 {
		t.Errorf("Height() = %d, want 0 (orphan must not move the tip)", c.Height())
	}
}

func TestChainResolvesOrphanOnParentArrival(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	blk1 := childBlock(t, genesis.Header, types.Address{0x02})
	blk2 := childBlock(t, blk1.Header, types.Address{0x03})

	if err := c.ProcessBlock(blk2); !errors.Is(err, ErrOrphaned) {
		t.Fatalf("expected ErrOrphaned, got %v", err)
	}
	if err := c.ProcessBlock(blk1); err != nil {
		t.Fatalf("ProcessBlock(blk1): %v", err)
	}
	if c.Height() != 2 {
		t.Fatalf("Height() = %d, want 2 (blk2 should resolve automatically)", c.Height())
	}
	if c.OrphanCount() != 0 {
		t.Errorf("OrphanCount() = %d, want 0 after resolution", c.OrphanCount())
	}
	tip, _ := c.Tip()
	if tip != blk2.Header.Hash() {
		t.Error("tip did not advance to blk2 after orphan resolution")
	}
}

func TestChainReorgToLongerFork(t *testing.T) {
	_, _, _, c := newTestEnv(t)
	genesis := sealedGenesisBlock(t, types.Address{0x01})
	if err := c.InitFromGenesis(genesis); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	// Branch A: a single block, becomes the tip first.
	a1 := childBlock(t, genesis.Header, types.Address{0xA1})
	if err := c.ProcessBlock(a1); err != nil {
		t.Fatalf("ProcessBlock(a1): %v", err)
	}

	// Branch B: two blocks from genesis, longer once fully submitted.
	b1 := childBlock(t, genesis.Header, types.Address{0xB1})
	if err := c.ProcessBlock(b1); err != nil {
		t.Fatalf("ProcessBlock(b1): %v", err)
	}
	if c.Height() != 1 {
		t.Fatalf("Height() = %d, want 1 (b1 alone does not overtake a1)", c.Height())
	}
	tip, _ := c.Tip()
	if tip != a1.Header.Hash() {
		t.Fatal("expected a1 to remain tip while b1 is the same height")
	}

	b2 := childBlock(t, b1.Header, types.Address{0xB2})
	if err := c.ProcessBlock(b2); err != nil {
		t.Fatalf("ProcessBlock(b2): %v", err)
	}
	if c.Height() != 2 {
		t.Fatalf("Height() = %d, want 2 after reorg to branch B", c.Height())
	}
	tip, _ = c.Tip()
	if tip != b2.Header.Hash() {
		t.Fatal("expected tip to reorg onto b2")
	}
}
