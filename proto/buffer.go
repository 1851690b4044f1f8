// Package proto implements the binary client protocol framing: a fixed
// 14-byte little-endian frame header followed by length-prefixed variable
// data, accessed zero-copy through a flyweight view over a caller-owned
// buffer.
package proto

import "encoding/binary"

// Buffer is a little-endian view over an externally owned byte slice.
// It does not own the memory and performs no bounds checking of its own:
// accesses outside the slice range panic, exactly as the underlying slice
// would. Frame-level validation belongs to Message, which checks offsets
// once at wrap time instead of per field access.
type Buffer struct {
	b []byte
}

// NewBuffer wraps b without copying.
func NewBuffer(b []byte) Buffer {
	return Buffer{b: b}
}

// Len returns the addressable length of the underlying slice.
func (b Buffer) Len() int {
	return len(b.b)
}

// Uint8 reads one byte at off.
func (b Buffer) Uint8(off int) uint8 {
	return b.b[off]
}

// PutUint8 writes one byte at off.
func (b Buffer) PutUint8(off int, v uint8) {
	b.b[off] = v
}

// Uint16 reads a little-endian 16-bit value at off.
func (b Buffer) Uint16(off int) uint16 {
	return binary.LittleEndian.Uint16(b.b[off:])
}

// PutUint16 writes a little-endian 16-bit value at off.
func (b Buffer) PutUint16(off int, v uint16) {
	binary.LittleEndian.PutUint16(b.b[off:], v)
}

// Uint32 reads a little-endian 32-bit value at off.
func (b Buffer) Uint32(off int) uint32 {
	return binary.LittleEndian.Uint32(b.b[off:])
}

// PutUint32 writes a little-endian 32-bit value at off.
func (b Buffer) PutUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.b[off:], v)
}

// Slice returns the n bytes starting at off as a sub-view of the backing
// slice. No copy is made; the result aliases the buffer.
func (b Buffer) Slice(off, n int) []byte {
	return b.b[off : off+n : off+n]
}

// Put copies p into the buffer at off.
func (b Buffer) Put(off int, p []byte) {
	copy(b.b[off:off+len(p)], p)
}
