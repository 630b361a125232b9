package codec

import (
	"bytes"
	"testing"
)

func TestWriterReader_Roundtrip(t *testing.T) {
	w := NewWriter(0)
	w.PutUint32(0xdeadbeef)
	w.PutUint64(0x0123456789abcdef)
	w.PutInt64(-42)
	w.PutBytes([]byte{1, 2, 3, 4})
	w.PutLengthPrefixed([]byte("hello world"))
	w.PutListLen(3)

	r := NewReader(w.Bytes())

	u32, err := r.Uint32()
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("Uint32() = %x, %v", u32, err)
	}
	u64, err := r.Uint64()
	if err != nil || u64 != 0x0123456789abcdef {
		t.Fatalf("Uint64() = %x, %v", u64, err)
	}
	i64, err := r.Int64()
	if err != nil || i64 != -42 {
		t.Fatalf("Int64() = %d, %v", i64, err)
	}
	raw, err := r.Bytes(4)
	if err != nil || !bytes.Equal(raw, []byte{1, 2, 3, 4}) {
		t.Fatalf("Bytes(4) = %v, %v", raw, err)
	}
	lp, err := r.LengthPrefixed()
	if err != nil || string(lp) != "hello world" {
		t.Fatalf("LengthPrefixed() = %q, %v", lp, err)
	}
	n, err := r.ListLen()
	if err != nil || n != 3 {
		t.Fatalf("ListLen() = %d, %v", n, err)
	}
	if !r.AtEnd() {
		t.Errorf("expected AtEnd() after consuming every field")
	}
}

func TestWriter_PutLengthPrefixed_Empty(t *testing.T) {
	w := NewWriter(0)
	w.PutLengthPrefixed(nil)
	r := NewReader(w.Bytes())
	b, err := r.LengthPrefixed()
	if err != nil {
		t.Fatalf("LengthPrefixed() error: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty slice, got %v", b)
	}
}

func TestReader_Uint32_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.Uint32(); err == nil {
		t.Error("expected error reading u32 from 2-byte buffer")
	}
}

func TestReader_Uint64_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Uint64(); err == nil {
		t.Error("expected error reading u64 from 3-byte buffer")
	}
}

func TestReader_Bytes_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Bytes(10); err == nil {
		t.Error("expected error reading 10 bytes from 3-byte buffer")
	}
}

func TestReader_LengthPrefixed_TruncatedPayload(t *testing.T) {
	w := NewWriter(0)
	w.PutUint64(100) // claims 100 bytes but none follow
	r := NewReader(w.Bytes())
	if _, err := r.LengthPrefixed(); err == nil {
		t.Error("expected error for truncated length-prefixed payload")
	}
}

func TestReader_Remaining(t *testing.T) {
	w := NewWriter(0)
	w.PutBytes([]byte{1, 2, 3, 4, 5})
	r := NewReader(w.Bytes())
	if r.Remaining() != 5 {
		t.Errorf("Remaining() = %d, want 5", r.Remaining())
	}
	r.Bytes(2)
	if r.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", r.Remaining())
	}
}

func TestReader_AtEnd_EmptyBuffer(t *testing.T) {
	r := NewReader(nil)
	if !r.AtEnd() {
		t.Error("empty reader should start AtEnd")
	}
}

func FuzzReader_NoPanic(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(data)
		r.Uint32()
		r.Uint64()
		r.Int64()
		r.Bytes(16)
		r.LengthPrefixed()
		r.ListLen()
		r.Remaining()
		r.AtEnd()
	})
}
