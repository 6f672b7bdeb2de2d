// Package bitstream provides bit-level access to a byte-oriented input
// source. A Decoder feeds one or more Registers in lockstep from an
// io.Reader and exposes peek/decode/align/bulk operations with exact byte
// accounting; format decoders (e.g. package deflate) are built on top.
package bitstream

import "fmt"

const (
	// Capacity is the number of bits a Register can buffer.
	Capacity = 64

	// MaxPeek is the widest single peek or decode a caller may request.
	// The bound keeps a worst-case feed (MaxPeek requested with 7 bits
	// already buffered) inside Capacity.
	MaxPeek = 32
)

// A Register is a fixed-capacity bit queue. Bytes are appended at the
// back eight bits at a time; the front of the queue is inspected and
// discarded at single-bit granularity. The bit order, meaning which end
// of a fed byte becomes the front of the queue, is a fixed property of the
// concrete type and never changes at runtime. A decoder that needs both
// orders over one stream uses two registers, not a flag.
//
// All methods treat contract violations (overfeeding, peeking or
// discarding more bits than are buffered) as programmer errors and panic.
// They are never data-dependent: the Decoder feeds exactly the bytes a
// request needs and checks request widths before touching a register.
type Register interface {
	// FeedByte appends the 8 bits of b to the back of the queue.
	FeedByte(b byte)
	// Peek returns the front count bits as an unsigned integer without
	// mutating state. 0 <= count <= MaxPeek and count <= BitCount().
	Peek(count int) uint32
	// Discard removes the front count bits. count <= BitCount().
	Discard(count int)
	// BitCount returns the number of buffered bits.
	BitCount() int
	// Clear empties the queue, dropping any unconsumed bits.
	Clear()
}

// LSBRegister buffers bits with the least-significant bit of the oldest
// fed byte at the front of the queue, the DEFLATE bit order. Peek
// assembles the front bits with the first-received bit in the result's
// least-significant position. The zero value is an empty register.
type LSBRegister struct {
	bits uint64
	n    int
}

func (r *LSBRegister) FeedByte(b byte) {
	checkFeed(r.n)
	r.bits |= uint64(b) << r.n
	r.n += 8
}

func (r *LSBRegister) Peek(count int) uint32 {
	checkPeek(count, r.n)
	return uint32(r.bits & (1<<uint(count) - 1))
}

func (r *LSBRegister) Discard(count int) {
	checkDiscard(count, r.n)
	r.bits >>= uint(count)
	r.n -= count
}

func (r *LSBRegister) BitCount() int { return r.n }

func (r *LSBRegister) Clear() {
	r.bits = 0
	r.n = 0
}

// MSBRegister buffers bits with the most-significant bit of the oldest
// fed byte at the front of the queue, the bit order of bzip2, GRIB and
// most big-endian bit formats. Peek assembles the front bits with the
// first-received bit in the result's most-significant position. The zero
// value is an empty register.
type MSBRegister struct {
	bits uint64
	n    int
}

func (r *MSBRegister) FeedByte(b byte) {
	checkFeed(r.n)
	r.bits = r.bits<<8 | uint64(b)
	r.n += 8
}

func (r *MSBRegister) Peek(count int) uint32 {
	checkPeek(count, r.n)
	return uint32(r.bits >> uint(r.n-count) & (1<<uint(count) - 1))
}

func (r *MSBRegister) Discard(count int) {
	checkDiscard(count, r.n)
	r.n -= count
	if r.n < Capacity {
		r.bits &= 1<<uint(r.n) - 1
	}
}

func (r *MSBRegister) BitCount() int { return r.n }

func (r *MSBRegister) Clear() {
	r.bits = 0
	r.n = 0
}

func checkFeed(n int) {
	if n+8 > Capacity {
		panic(fmt.Sprintf("bitstream: FeedByte past register capacity (%d bits buffered)", n))
	}
}

func checkPeek(count, n int) {
	if count < 0 || count > MaxPeek {
		panic(fmt.Sprintf("bitstream: Peek count %d out of range [0, %d]", count, MaxPeek))
	}
	if count > n {
		panic(fmt.Sprintf("bitstream: Peek %d bits with only %d buffered", count, n))
	}
}

func checkDiscard(count, n int) {
	if count < 0 || count > n {
		panic(fmt.Sprintf("bitstream: Discard %d bits with %d buffered", count, n))
	}
}
