// Package buffer provides a growable byte buffer with big-endian fixed-width
// helpers, shared by every wire codec in this module.
package buffer

import (
	"encoding/binary"
	"errors"
)

// Buffer is a growable byte slice with a read cursor. The zero value is an
// empty, ready to use Buffer.
type Buffer struct {
	b   []byte
	off int // read offset
}

// New returns a Buffer wrapping b. The buffer takes ownership of b.
func New(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Reset discards all buffered data and resets the read cursor.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
	b.off = 0
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.b) - b.off
}

// Cap returns the capacity of the underlying storage.
func (b *Buffer) Cap() int {
	return cap(b.b)
}

// Bytes returns the unread portion of the buffer. The returned slice is
// valid only until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.b[b.off:]
}

// Append appends p to the buffer, growing it as necessary.
func (b *Buffer) Append(p []byte) {
	b.b = append(b.b, p...)
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// WriteString appends s to the buffer.
func (b *Buffer) WriteString(s string) {
	b.b = append(b.b, s...)
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// WriteUint16 appends n in big-endian order.
func (b *Buffer) WriteUint16(n uint16) {
	b.b = append(b.b, byte(n>>8), byte(n))
}

// WriteUint32 appends n in big-endian order.
func (b *Buffer) WriteUint32(n uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	b.b = append(b.b, tmp[:]...)
}

// WriteUint64 appends n in big-endian order.
func (b *Buffer) WriteUint64(n uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	b.b = append(b.b, tmp[:]...)
}

// ErrInsufficientData is returned by the read helpers when fewer bytes
// remain than requested.
var ErrInsufficientData = errors.New("buffer: insufficient data")

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrInsufficientData
	}
	c := b.b[b.off]
	b.off++
	return c, nil
}

// PeekByte returns the next unread byte without advancing the cursor.
func (b *Buffer) PeekByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrInsufficientData
	}
	return b.b[b.off], nil
}

// ReadUint16 reads a big-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	if b.Len() < 2 {
		return 0, ErrInsufficientData
	}
	n := binary.BigEndian.Uint16(b.b[b.off:])
	b.off += 2
	return n, nil
}

// ReadUint32 reads a big-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.Len() < 4 {
		return 0, ErrInsufficientData
	}
	n := binary.BigEndian.Uint32(b.b[b.off:])
	b.off += 4
	return n, nil
}

// ReadUint64 reads a big-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	if b.Len() < 8 {
		return 0, ErrInsufficientData
	}
	n := binary.BigEndian.Uint64(b.b[b.off:])
	b.off += 8
	return n, nil
}

// Next returns the next n unread bytes and advances the cursor. If fewer
// than n bytes remain, the short slice is returned along with false.
func (b *Buffer) Next(n int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	if b.Len() < n {
		p := b.b[b.off:]
		b.off = len(b.b)
		return p, false
	}
	p := b.b[b.off : b.off+n]
	b.off += n
	return p, true
}

// Skip advances the read cursor by n bytes without returning them.
func (b *Buffer) Skip(n int) error {
	if b.Len() < n {
		return ErrInsufficientData
	}
	b.off += n
	return nil
}
