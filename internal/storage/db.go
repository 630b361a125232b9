// Package storage provides database abstractions.
package storage

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch accumulates Put/Delete operations for an all-or-nothing commit.
// The ledger store uses a Batch to keep a block's header, transaction,
// UTXO, height-index, and tip writes atomic: either every key changes or
// none does.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by a DB that supports atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns db's native batch if it implements Batcher, or a
// buffered fallback that applies writes directly (non-atomically) on
// Commit otherwise.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &fallbackBatch{db: db}
}

type fallbackBatch struct {
	db  DB
	ops []fallbackOp
}

type fallbackOp struct {
	key   []byte
	value []byte // nil means delete
}

func (f *fallbackBatch) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := make([]byte, len(value))
	copy(v, value)
	f.ops = append(f.ops, fallbackOp{key: k, value: v})
	return nil
}

func (f *fallbackBatch) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	f.ops = append(f.ops, fallbackOp{key: k, value: nil})
	return nil
}

func (f *fallbackBatch) Commit() error {
	for _, op := range f.ops {
		if op.value == nil {
			if err := f.db.Delete(op.key); err != nil {
				return err
			}
		} else if err := f.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}
