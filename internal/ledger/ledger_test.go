package ledger

import (
	"testing"
	"time"

	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
)

func testAddress(b byte) types.Address {
	var a types.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func coinbaseTx(to types.Address, amount uint64) *tx.Transaction {
	return &tx.Transaction{
		Outputs:   []tx.Output{{ToAddress: to, Amount: types.NewAmount(amount)}},
		Timestamp: time.Now().Unix(),
	}
}

func TestStorePutAndLoadHeader(t *testing.T) {
	s := Open(storage.NewMemory())
	h := &block.Header{Index: 0, Timestamp: 1}
	b := s.NewBatch()
	if err := b.PutHeader(h); err != nil {
		t.Fatalf("PutHeader: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.LoadHeader(h.Hash())
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}
	if got.Hash() != h.Hash() {
		t.Error("loaded header hash mismatch")
	}
}

func TestStoreHeaderNotFound(t *testing.T) {
	s := Open(storage.NewMemory())
	if _, err := s.LoadHeader(types.Hash{}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUTXOLifecycle(t *testing.T) {
	s := Open(storage.NewMemory())
	addr := testAddress(1)
	ct := coinbaseTx(addr, 1000)
	op := types.Outpoint{TxID: ct.Hash(), Index: 0}

	b := s.NewBatch()
	if err := b.PutUTXO(UTXO{TxID: op.TxID, Vout: 0, ToAddress: addr, Amount: types.NewAmount(1000)}); err != nil {
		t.Fatalf("PutUTXO: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !s.HasUTXO(op.TxID, op.Index) {
		t.Fatal("expected UTXO to exist")
	}
	amount, to, err := s.GetUTXO(op.TxID, op.Index)
	if err != nil {
		t.Fatalf("GetUTXO: %v", err)
	}
	if to != addr || amount.Cmp(types.NewAmount(1000)) != 0 {
		t.Errorf("unexpected utxo contents: %v %v", to, amount)
	}

	bal, err := s.Balance(addr)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Cmp(types.NewAmount(1000)) != 0 {
		t.Errorf("Balance = %s, want 1000", bal)
	}

	// Spend it.
	b2 := s.NewBatch()
	if err := b2.DeleteUTXO(op, addr); err != nil {
		t.Fatalf("DeleteUTXO: %v", err)
	}
	if err := b2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if s.HasUTXO(op.TxID, op.Index) {
		t.Error("expected UTXO to be gone after spend")
	}
	bal, err = s.Balance(addr)
	if err != nil {
		t.Fatalf("Balance after spend: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("Balance after spend = %s, want 0", bal)
	}
}

func TestStoreTipAndHeightIndex(t *testing.T) {
	s := Open(storage.NewMemory())
	h := &block.Header{Index: 5, Timestamp: 1}
	hash := h.Hash()

	b := s.NewBatch()
	if err := b.PutHeader(h); err != nil {
		t.Fatal(err)
	}
	if err := b.SetHeightIndex(5, hash); err != nil {
		t.Fatal(err)
	}
	if err := b.SetTip(hash); err != nil {
		t.Fatal(err)
	}
	if err := b.Commit(); err != nil {
		t.Fatal(err)
	}

	tip, err := s.Tip()
	if err != nil || tip != hash {
		t.Errorf("Tip() = %v, %v; want %v, nil", tip, err, hash)
	}
	heightHash, err := s.HeightHash(5)
	if err != nil || heightHash != hash {
		t.Errorf("HeightHash(5) = %v, %v; want %v, nil", heightHash, err, hash)
	}
}

func TestStoreBlockRoundTrip(t *testing.T) {
	s := Open(storage.NewMemory())
	ct := coinbaseTx(testAddress(9), 500)
	merkle := block.ComputeMerkleRoot([]types.Hash{ct.Hash()})
	h := &block.Header{Index: 0, MerkleRoot: merkle, Timestamp: 42}
	blk := block.NewBlock(h, []*tx.Transaction{ct})

	b := s.NewBatch()
	if err := b.PutHeader(h); err != nil {
		t.Fatal(err)
	}
	if err := b.PutBlock(blk); err != nil {
		t.Fatal(err)
	}
	if err := b.PutTransaction(ct, h.Index); err != nil {
		t.Fatal(err)
	}
	if err := b.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadBlock(h.Hash())
	if err != nil {
		t.Fatalf("LoadBlock: %v", err)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Hash() != ct.Hash() {
		t.Error("round-tripped block transactions mismatch")
	}

	gotTx, err := s.LoadTransaction(ct.Hash())
	if err != nil {
		t.Fatalf("LoadTransaction: %v", err)
	}
	if gotTx.Hash() != ct.Hash() {
		t.Error("round-tripped transaction hash mismatch")
	}

	gotTx2, height, err := s.Transaction(ct.Hash())
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if gotTx2.Hash() != ct.Hash() {
		t.Error("Transaction: hash mismatch")
	}
	if height != h.Index {
		t.Errorf("Transaction height = %d, want %d", height, h.Index)
	}
}

func TestStoreTransactionHeightNotFound(t *testing.T) {
	s := Open(storage.NewMemory())
	if _, err := s.TransactionHeight(types.Hash{}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Transaction(types.Hash{}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBlocksFromHeightStopsAtChainEnd(t *testing.T) {
	s := Open(storage.NewMemory())
	for i := uint64(0); i < 3; i++ {
		h := &block.Header{Index: i, Timestamp: int64(i) + 1}
		blk := block.NewBlock(h, nil)
		b := s.NewBatch()
		if err := b.PutHeader(h); err != nil {
			t.Fatal(err)
		}
		if err := b.PutBlock(blk); err != nil {
			t.Fatal(err)
		}
		if err := b.SetHeightIndex(i, h.Hash()); err != nil {
			t.Fatal(err)
		}
		if err := b.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	blocks, err := s.BlocksFromHeight(1, 10)
	if err != nil {
		t.Fatalf("BlocksFromHeight: %v", err)
	}
	if len(blocks) != 2 {
		t.Errorf("got %d blocks, want 2", len(blocks))
	}
}
