package bitstream

import (
	"fmt"
	"io"

	"github.com/geal-ai/compress"
)

// Decoder supplies bits from an io.Reader to one or more Registers and
// keeps exact account of the bytes consumed.
//
// All registers are fed the same bytes in the same order and have the same
// bits discarded on every decode, even though only one register is
// inspected per call. A caller can therefore hold several simultaneous
// bit-order views of the identical stream without them drifting apart.
//
// An optional trailing-byte buffer extends the stream once the real
// source is exhausted: bit requests are satisfied from the virtual tail
// instead of failing, until the tail too runs out. Formats that must peek
// past their final real byte (DEFLATE symbol resolution near end of
// stream, for example) declare the zero padding they need at construction
// and never special-case EOF at their call sites. Once a trailing byte
// has been consumed the real source is never read again.
//
// A Decoder is not safe for concurrent use; it is owned by exactly one
// decode session at a time. Reads block per the source's own semantics.
type Decoder struct {
	regs        []Register
	trailing    []byte
	trailingIdx int
	totalBits   uint64
	readBuf     [8]byte
}

// NewDecoder returns a Decoder over the given registers, which must be
// non-empty. trailing is the optional virtual padding appended after the
// real source is exhausted; it is copied.
func NewDecoder(registers []Register, trailing []byte) *Decoder {
	if len(registers) == 0 {
		panic("bitstream: NewDecoder with no registers")
	}
	for i, reg := range registers {
		if reg == nil {
			panic(fmt.Sprintf("bitstream: NewDecoder with nil register %d", i))
		}
	}
	d := &Decoder{
		regs:     append([]Register(nil), registers...),
		trailing: append([]byte(nil), trailing...),
	}
	return d
}

// Reset restores the decoder to its initial state: all registers cleared,
// byte accounting and the trailing cursor zeroed.
func (d *Decoder) Reset() {
	for _, reg := range d.regs {
		reg.Clear()
	}
	d.trailingIdx = 0
	d.totalBits = 0
}

// Clear drops all buffered-but-undiscarded bits, counting them as
// consumed. It resynchronizes the decoder to the next byte of input
// without losing byte accounting.
func (d *Decoder) Clear() {
	d.totalBits += uint64(d.regs[0].BitCount())
	for _, reg := range d.regs {
		reg.Clear()
	}
}

// TotalIn returns the total number of input bytes consumed so far,
// rounded up from bits. Peeked-but-undiscarded bits do not count.
func (d *Decoder) TotalIn() int64 {
	return int64((d.totalBits + 7) >> 3)
}

// PeekBits returns the next count bits from register 0 without
// consuming them.
func (d *Decoder) PeekBits(src io.Reader, count int) (uint32, error) {
	return d.PeekBitsReg(src, count, 0)
}

// PeekBitsReg returns the next count bits as seen by the given register
// without consuming them. All registers are fed as needed, so a
// subsequent peek on another register observes the same stream position.
func (d *Decoder) PeekBitsReg(src io.Reader, count, register int) (uint32, error) {
	d.checkArgs(src, count, register)
	if err := d.feed(src, count); err != nil {
		return 0, err
	}
	return d.regs[register].Peek(count), nil
}

// DecodeBits returns the next count bits from register 0 and consumes
// them from every register.
func (d *Decoder) DecodeBits(src io.Reader, count int) (uint32, error) {
	return d.DecodeBitsReg(src, count, 0)
}

// DecodeBitsReg returns the next count bits as seen by the given register
// and consumes them. The discard is applied to every register, keeping
// all views in lockstep; this is deliberate and load-bearing, not an
// optimization target.
func (d *Decoder) DecodeBitsReg(src io.Reader, count, register int) (uint32, error) {
	bits, err := d.PeekBitsReg(src, count, register)
	if err != nil {
		return 0, err
	}
	d.totalBits += uint64(count)
	for _, reg := range d.regs {
		reg.Discard(count)
	}
	return bits, nil
}

// AlignToByte discards buffered bits until consumption is a multiple of
// eight. Buffered counts are a multiple of 8 right after a feed but drift
// after partial decodes; callers align before switching to the bulk byte
// path. Calling it twice is the same as calling it once.
func (d *Decoder) AlignToByte() {
	discard := d.regs[0].BitCount() % 8
	if discard == 0 {
		return
	}
	d.totalBits += uint64(discard)
	for _, reg := range d.regs {
		reg.Discard(discard)
	}
}

// ReadBytes fills dst with byte-aligned data: first whole bytes already
// buffered in the registers, then one direct read from src into the
// remainder of dst, bypassing the bit buffers entirely. It returns the
// number of bytes produced, or (0, io.EOF) when both the buffers and the
// source are exhausted. The trailing-byte buffer is not consulted; end of
// the real stream is a normal termination condition here.
func (d *Decoder) ReadBytes(src io.Reader, dst []byte) (int, error) {
	if src == nil {
		panic("bitstream: ReadBytes with nil source")
	}
	if dst == nil {
		panic("bitstream: ReadBytes with nil destination")
	}
	d.AlignToByte()

	reg0 := d.regs[0]
	n := 0
	for reg0.BitCount() > 0 && n < len(dst) {
		dst[n] = byte(reg0.Peek(8))
		for _, reg := range d.regs {
			reg.Discard(8)
		}
		n++
	}

	if n < len(dst) {
		direct, err := src.Read(dst[n:])
		n += direct
		if err != nil && err != io.EOF {
			d.totalBits += uint64(n) * 8
			return n, err
		}
		if n == 0 && err == io.EOF {
			return 0, io.EOF
		}
	}
	d.totalBits += uint64(n) * 8
	return n, nil
}

// ReadByte returns one byte-aligned byte: a buffered one if available,
// otherwise a single direct read from src. Returns io.EOF at end of
// stream.
func (d *Decoder) ReadByte(src io.Reader) (byte, error) {
	if src == nil {
		panic("bitstream: ReadByte with nil source")
	}
	d.AlignToByte()

	reg0 := d.regs[0]
	if reg0.BitCount() > 0 {
		b := byte(reg0.Peek(8))
		d.totalBits += 8
		for _, reg := range d.regs {
			reg.Discard(8)
		}
		return b, nil
	}

	if _, err := io.ReadFull(src, d.readBuf[:1]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	d.totalBits += 8
	return d.readBuf[0], nil
}

// feed tops up all registers until register 0 holds at least count bits.
// Bytes come from the real source while the trailing cursor is still at
// its start, then from the trailing buffer. Registers stay in lockstep,
// so register 0's count is representative for all of them.
func (d *Decoder) feed(src io.Reader, count int) error {
	have := d.regs[0].BitCount()
	if count <= have {
		return nil
	}
	remaining := (count - have + 7) / 8

	if d.trailingIdx == 0 {
		buf := d.readBuf[:remaining]
		read, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		for _, b := range buf[:read] {
			for _, reg := range d.regs {
				reg.FeedByte(b)
			}
		}
		remaining -= read
	}
	for remaining > 0 {
		if d.trailingIdx >= len(d.trailing) {
			need := (count - have + 7) / 8
			return &compress.InsufficientDataError{Requested: need, Read: need - remaining}
		}
		b := d.trailing[d.trailingIdx]
		d.trailingIdx++
		for _, reg := range d.regs {
			reg.FeedByte(b)
		}
		remaining--
	}
	return nil
}

func (d *Decoder) checkArgs(src io.Reader, count, register int) {
	if src == nil {
		panic("bitstream: nil source")
	}
	if count < 0 || count > MaxPeek {
		panic(fmt.Sprintf("bitstream: bit count %d out of range [0, %d]", count, MaxPeek))
	}
	if register < 0 || register >= len(d.regs) {
		panic(fmt.Sprintf("bitstream: register index %d out of range [0, %d)", register, len(d.regs)))
	}
}
