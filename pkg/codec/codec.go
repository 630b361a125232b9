// Package codec implements the one true consensus encoding: a
// field-by-field concatenation where u64/u32/i64 use fixed-length
// little-endian, strings are length-prefixed by a fixed-length u64, and
// lists are length-prefixed by a fixed-length u64. This encoding is fixed
// forever; every peer must agree on it byte-for-byte.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates the canonical byte encoding of a header or
// transaction, field by field, in declared order.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with room for size bytes preallocated.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// PutUint32 appends a fixed-length little-endian u32.
func (w *Writer) PutUint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// PutUint64 appends a fixed-length little-endian u64.
func (w *Writer) PutUint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// PutInt64 appends a fixed-length little-endian i64.
func (w *Writer) PutInt64(v int64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
	return w
}

// PutBytes appends raw bytes with no length prefix; used for fixed-size
// fields (hashes, public keys, signatures) whose length is implied by
// the field itself.
func (w *Writer) PutBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// PutLengthPrefixed appends a u64 length prefix followed by the bytes.
// Used for variable-length strings.
func (w *Writer) PutLengthPrefixed(b []byte) *Writer {
	w.PutUint64(uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// PutListLen appends a u64 list-length prefix; callers then append each
// element's encoding in order.
func (w *Writer) PutListLen(n int) *Writer {
	w.PutUint64(uint64(n))
	return w
}

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader decodes a canonical encoding produced by Writer, field by field.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("codec: short buffer: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

// Uint32 reads a fixed-length little-endian u32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// Uint64 reads a fixed-length little-endian u64.
func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Int64 reads a fixed-length little-endian i64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Bytes reads n raw bytes with no length prefix.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// LengthPrefixed reads a u64 length prefix followed by that many bytes.
func (r *Reader) LengthPrefixed() ([]byte, error) {
	n, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// ListLen reads a u64 list-length prefix.
func (r *Reader) ListLen() (uint64, error) {
	return r.Uint64()
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// AtEnd reports whether every byte has been consumed.
func (r *Reader) AtEnd() bool {
	return r.pos == len(r.buf)
}
