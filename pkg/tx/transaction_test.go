package tx

import (
	"testing"

	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

func TestTransaction_Hash_Deterministic(t *testing.T) {
	transaction := &Transaction{
		Inputs:  []Input{{PrevTxID: types.Hash{0x01}, Vout: 0}},
		Outputs: []Output{{ToAddress: types.Address{0x02}, Amount: types.NewAmount(1000)}},
	}

	h1 := transaction.Hash()
	h2 := transaction.Hash()
	if h1 != h2 {
		t.Error("Hash() should be deterministic")
	}
	if h1.IsZero() {
		t.Error("Hash() should not be zero")
	}
}

func TestTransaction_Hash_ChangesWithContent(t *testing.T) {
	tx1 := &Transaction{
		Inputs:  []Input{{PrevTxID: types.Hash{0x01}, Vout: 0}},
		Outputs: []Output{{ToAddress: types.Address{0x02}, Amount: types.NewAmount(1000)}},
	}
	tx2 := &Transaction{
		Inputs:  []Input{{PrevTxID: types.Hash{0x01}, Vout: 0}},
		Outputs: []Output{{ToAddress: types.Address{0x02}, Amount: types.NewAmount(2000)}},
	}

	if tx1.Hash() == tx2.Hash() {
		t.Error("different transactions should have different hashes")
	}
}

func TestTransaction_Hash_IgnoresSignature(t *testing.T) {
	transaction := &Transaction{
		Inputs:  []Input{{PrevTxID: types.Hash{0x01}, Vout: 0, PubKey: []byte("some key")}},
		Outputs: []Output{{ToAddress: types.Address{0x02}, Amount: types.NewAmount(1000)}},
	}

	h1 := transaction.Hash()

	transaction.Inputs[0].Signature = []byte("some signature")

	h2 := transaction.Hash()

	if h1 != h2 {
		t.Error("Hash() should not change when signatures are added")
	}
}

func TestTransaction_SigningDigest_DiffersFromHash(t *testing.T) {
	transaction := &Transaction{
		Outputs: []Output{{ToAddress: types.Address{0x02}, Amount: types.NewAmount(1000)}},
	}
	if transaction.Hash() == transaction.SigningDigest() {
		t.Error("txid (sha256d) must not equal the signing digest (sha256)")
	}
}

func TestTransaction_IsCoinbase(t *testing.T) {
	coinbase := &Transaction{Outputs: []Output{{Amount: types.NewAmount(1)}}}
	if !coinbase.IsCoinbase() {
		t.Error("transaction with no inputs should be a coinbase")
	}

	spend := &Transaction{
		Inputs:  []Input{{PrevTxID: types.Hash{0x01}}},
		Outputs: []Output{{Amount: types.NewAmount(1)}},
	}
	if spend.IsCoinbase() {
		t.Error("transaction with inputs should not be a coinbase")
	}
}

func TestTransaction_TotalOutputValue(t *testing.T) {
	transaction := &Transaction{
		Outputs: []Output{
			{Amount: types.NewAmount(1000)},
			{Amount: types.NewAmount(2000)},
			{Amount: types.NewAmount(3000)},
		},
	}
	got, err := transaction.TotalOutputValue()
	if err != nil {
		t.Fatalf("TotalOutputValue() error: %v", err)
	}
	if got.Cmp(types.NewAmount(6000)) != 0 {
		t.Errorf("TotalOutputValue() = %s, want 6000", got)
	}
}

func TestTransaction_TotalOutputValue_Empty(t *testing.T) {
	transaction := &Transaction{}
	got, err := transaction.TotalOutputValue()
	if err != nil {
		t.Fatalf("TotalOutputValue() error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("TotalOutputValue() empty = %s, want 0", got)
	}
}

func TestTransaction_Encode_Decode_Roundtrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	b := NewBuilder().
		AddInput(types.Hash{0x01}, 0).
		AddOutput(types.Address{0x02}, types.NewAmount(5000)).
		SetTimestamp(1234)
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	original := b.Build()

	decoded, err := Decode(original.Encode())
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if decoded.Hash() != original.Hash() {
		t.Errorf("decoded hash = %s, want %s", decoded.Hash(), original.Hash())
	}
	if len(decoded.Inputs) != 1 || decoded.Inputs[0].Vout != 0 {
		t.Errorf("decoded inputs mismatch: %+v", decoded.Inputs)
	}
	if len(decoded.Outputs) != 1 || decoded.Outputs[0].Amount.Cmp(types.NewAmount(5000)) != 0 {
		t.Errorf("decoded outputs mismatch: %+v", decoded.Outputs)
	}
}

func TestTransaction_Decode_CoinbaseRoundtrip(t *testing.T) {
	coinbase := &Transaction{
		Outputs:   []Output{{ToAddress: types.Address{0x03}, Amount: types.NewAmount(8_000_000_000_000_000_000)}},
		Timestamp: 42,
	}
	decoded, err := Decode(coinbase.Encode())
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !decoded.IsCoinbase() {
		t.Error("decoded coinbase should have zero inputs")
	}
	if decoded.Hash() != coinbase.Hash() {
		t.Error("decoded coinbase hash mismatch")
	}
}

func TestBuilder_BuildAndSign(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	b := NewBuilder().
		AddInput(crypto.SHA256D([]byte("prev tx")), 0).
		AddOutput(addr, types.NewAmount(5000))

	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	transaction := b.Build()

	if len(transaction.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(transaction.Inputs))
	}
	if len(transaction.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(transaction.Outputs))
	}

	if err := transaction.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := transaction.VerifySignatures(); err != nil {
		t.Errorf("VerifySignatures() error: %v", err)
	}
}

func TestBuilder_MultipleInputsOutputs(t *testing.T) {
	key, _ := crypto.GenerateKey()

	b := NewBuilder().
		AddInput(types.Hash{0x01}, 0).
		AddInput(types.Hash{0x02}, 1).
		AddOutput(types.Address{0x03}, types.NewAmount(3000)).
		AddOutput(types.Address{0x04}, types.NewAmount(2000))

	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	transaction := b.Build()

	if len(transaction.Inputs) != 2 {
		t.Errorf("input count = %d, want 2", len(transaction.Inputs))
	}
	if len(transaction.Outputs) != 2 {
		t.Errorf("output count = %d, want 2", len(transaction.Outputs))
	}
	if err := transaction.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := transaction.VerifySignatures(); err != nil {
		t.Errorf("VerifySignatures() error: %v", err)
	}
}

func TestBuilder_SignMulti(t *testing.T) {
	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()

	addr1 := crypto.AddressFromPubKey(key1.PublicKey())
	addr2 := crypto.AddressFromPubKey(key2.PublicKey())

	txid1 := crypto.SHA256D([]byte("tx1"))
	txid2 := crypto.SHA256D([]byte("tx2"))

	b := NewBuilder().
		AddInput(txid1, 0).
		AddInput(txid2, 1).
		AddOutput(types.Address{0x99}, types.NewAmount(3000))

	signers := map[types.Address]*crypto.PrivateKey{
		addr1: key1,
		addr2: key2,
	}
	outpointAddr := map[outpointKey]types.Address{
		{txid1, 0}: addr1,
		{txid2, 1}: addr2,
	}

	if err := b.SignMulti(signers, outpointAddr); err != nil {
		t.Fatalf("SignMulti() error: %v", err)
	}

	transaction := b.Build()

	if err := transaction.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := transaction.VerifySignatures(); err != nil {
		t.Errorf("VerifySignatures() error: %v", err)
	}

	if string(transaction.Inputs[0].PubKey) == string(transaction.Inputs[1].PubKey) {
		t.Error("inputs should have different pubkeys")
	}
}

func TestBuilder_SignMulti_SameKeyTwoInputs(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	txid1 := crypto.SHA256D([]byte("tx1"))
	txid2 := crypto.SHA256D([]byte("tx2"))

	b := NewBuilder().
		AddInput(txid1, 0).
		AddInput(txid2, 0).
		AddOutput(types.Address{0x99}, types.NewAmount(5000))

	signers := map[types.Address]*crypto.PrivateKey{addr: key}
	outpointAddr := map[outpointKey]types.Address{
		{txid1, 0}: addr,
		{txid2, 0}: addr,
	}

	if err := b.SignMulti(signers, outpointAddr); err != nil {
		t.Fatalf("SignMulti() error: %v", err)
	}

	transaction := b.Build()
	if err := transaction.VerifySignatures(); err != nil {
		t.Errorf("VerifySignatures() error: %v", err)
	}

	if string(transaction.Inputs[0].Signature) != string(transaction.Inputs[1].Signature) {
		t.Error("same key should produce same signature (cache)")
	}
}

func TestBuilder_SignMulti_MissingAddress(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	txid1 := types.Hash{0x01}

	b := NewBuilder().
		AddInput(txid1, 0).
		AddOutput(types.Address{}, types.NewAmount(1000))

	signers := map[types.Address]*crypto.PrivateKey{addr: key}
	outpointAddr := map[outpointKey]types.Address{}

	if err := b.SignMulti(signers, outpointAddr); err == nil {
		t.Fatal("expected error for missing address mapping")
	}
}

func TestBuilder_SignMulti_MissingSigner(t *testing.T) {
	txid1 := types.Hash{0x01}
	addr := types.Address{0xAA}

	b := NewBuilder().
		AddInput(txid1, 0).
		AddOutput(types.Address{}, types.NewAmount(1000))

	signers := map[types.Address]*crypto.PrivateKey{}
	outpointAddr := map[outpointKey]types.Address{{txid1, 0}: addr}

	if err := b.SignMulti(signers, outpointAddr); err == nil {
		t.Fatal("expected error for missing signer")
	}
}
