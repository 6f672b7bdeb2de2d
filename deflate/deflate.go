// Package deflate decodes raw DEFLATE (RFC 1951) streams on top of the
// bitstream engine. It is the module's native format decoder: all bit
// access goes through a bitstream.Decoder with a single LSB register, and
// the decoder's trailing-byte mechanism supplies the virtual zero padding
// that lets Huffman resolution peek past the final real byte.
package deflate

import (
	"errors"
	"io"

	"github.com/geal-ai/compress"
	"github.com/geal-ai/compress/bitstream"
)

func init() {
	compress.Register("deflate", func(src io.Reader) (io.ReadCloser, error) {
		return NewReader(src), nil
	})
}

// maxMatch is the longest back-reference RFC 1951 encodes.
const maxMatch = 258

// trailingZeros is the virtual padding handed to the bit decoder. Symbol
// resolution peeks up to 15 bits; at end of stream the worst case needs
// two bytes beyond the final real one, and the padding is consumed
// cumulatively, so four bytes leave comfortable slack.
var trailingZeros = []byte{0, 0, 0, 0}

type blockKind int

const (
	blockNone blockKind = iota // between blocks: a header comes next
	blockStored
	blockHuffman
)

// Reader decompresses a raw DEFLATE stream. It implements io.ReadCloser.
// Not safe for concurrent use.
type Reader struct {
	src io.Reader
	bd  *bitstream.Decoder
	win window

	kind       blockKind
	final      bool // current block is the last
	eof        bool // final block fully decoded
	err        error
	closed     bool
	storedLeft int // remaining payload bytes of a stored block

	lit  prefixTable // literal/length code of the current Huffman block
	dist prefixTable // distance code of the current Huffman block

	// Overflow staging for a back-reference longer than the space left
	// in the caller's buffer.
	pendBuf  [maxMatch]byte
	pendHead int
	pendTail int
}

// NewReader returns a Reader decoding the raw DEFLATE stream in src.
// Close does not close src.
func NewReader(src io.Reader) *Reader {
	if src == nil {
		panic("deflate: NewReader with nil source")
	}
	return &Reader{
		src: src,
		bd:  bitstream.NewDecoder([]bitstream.Register{&bitstream.LSBRegister{}}, trailingZeros),
	}
}

// Reset prepares the Reader for a fresh stream from src, dropping all
// block, window and accounting state.
func (r *Reader) Reset(src io.Reader) {
	if src == nil {
		panic("deflate: Reset with nil source")
	}
	r.src = src
	r.bd.Reset()
	r.win.reset()
	r.kind = blockNone
	r.final = false
	r.eof = false
	r.err = nil
	r.closed = false
	r.storedLeft = 0
	r.pendHead = 0
	r.pendTail = 0
}

// TotalIn returns the number of compressed input bytes consumed so far.
// After a full decode it equals the exact compressed length, which
// container formats use for frame validation.
func (r *Reader) TotalIn() int64 { return r.bd.TotalIn() }

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("deflate: read from closed reader")
	}
	n := 0
	for n < len(p) {
		if r.pendHead < r.pendTail {
			c := copy(p[n:], r.pendBuf[r.pendHead:r.pendTail])
			r.pendHead += c
			n += c
			if r.pendHead == r.pendTail {
				r.pendHead, r.pendTail = 0, 0
			}
			continue
		}
		if r.err != nil || r.eof {
			break
		}
		switch r.kind {
		case blockNone:
			r.err = r.nextBlock()
		case blockStored:
			c, err := r.readStored(p[n:])
			n += c
			r.err = err
		default:
			c, err := r.huffmanStep(p[n:])
			n += c
			r.err = err
		}
	}
	if n > 0 {
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if r.eof && r.pendHead == r.pendTail {
		return 0, io.EOF
	}
	return 0, nil
}

// Close marks the reader finished. It does not close the underlying
// source.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// nextBlock consumes a block header and sets up the block state.
func (r *Reader) nextBlock() error {
	bfinal, err := r.bd.DecodeBits(r.src, 1)
	if err != nil {
		return err
	}
	btype, err := r.bd.DecodeBits(r.src, 2)
	if err != nil {
		return err
	}
	r.final = bfinal == 1

	switch btype {
	case 0:
		return r.beginStored()
	case 1:
		r.lit = fixedLit
		r.dist = fixedDist
		r.kind = blockHuffman
		return nil
	case 2:
		if err := r.readDynamicHeader(); err != nil {
			return err
		}
		r.kind = blockHuffman
		return nil
	default:
		return invalidData(uint64(btype))
	}
}

// beginStored validates a stored-block header. The payload itself moves
// through the bit decoder's byte-aligned bulk path.
func (r *Reader) beginStored() error {
	r.bd.AlignToByte()
	length, err := r.bd.DecodeBits(r.src, 16)
	if err != nil {
		return err
	}
	nlength, err := r.bd.DecodeBits(r.src, 16)
	if err != nil {
		return err
	}
	if length != ^nlength&0xFFFF {
		return invalidData(uint64(length), uint64(nlength))
	}
	r.storedLeft = int(length)
	if r.storedLeft == 0 {
		r.finishBlock()
		return nil
	}
	r.kind = blockStored
	return nil
}

// readStored copies stored-block payload through the bulk fast path,
// mirroring every byte into the history window so following blocks may
// reference it.
func (r *Reader) readStored(p []byte) (int, error) {
	m := r.storedLeft
	if m > len(p) {
		m = len(p)
	}
	n, err := r.bd.ReadBytes(r.src, p[:m])
	if err == io.EOF {
		return 0, &compress.InsufficientDataError{Requested: m, Read: 0}
	}
	if err != nil {
		return n, err
	}
	for _, b := range p[:n] {
		r.win.write(b)
	}
	r.storedLeft -= n
	if r.storedLeft == 0 {
		r.finishBlock()
	}
	return n, nil
}

// huffmanStep decodes one symbol: a literal byte, an end-of-block, or one
// length/distance pair expanded through the window.
func (r *Reader) huffmanStep(p []byte) (int, error) {
	sym, err := r.lit.decode(r.bd, r.src)
	if err != nil {
		return 0, err
	}
	switch {
	case sym < 256:
		p[0] = byte(sym)
		r.win.write(byte(sym))
		return 1, nil
	case sym == 256:
		r.finishBlock()
		return 0, nil
	case sym > 285:
		return 0, invalidData(uint64(sym))
	}

	length := lengthBase[sym-257]
	if extra := lengthExtra[sym-257]; extra > 0 {
		bits, err := r.bd.DecodeBits(r.src, extra)
		if err != nil {
			return 0, err
		}
		length += int(bits)
	}

	distSym, err := r.dist.decode(r.bd, r.src)
	if err != nil {
		return 0, err
	}
	if distSym > 29 {
		return 0, invalidData(uint64(distSym))
	}
	dist := distBase[distSym]
	if extra := distExtra[distSym]; extra > 0 {
		bits, err := r.bd.DecodeBits(r.src, extra)
		if err != nil {
			return 0, err
		}
		dist += int(bits)
	}

	n := 0
	for i := 0; i < length; i++ {
		b, ok := r.win.byteAt(dist)
		if !ok {
			return n, invalidData(uint64(dist), uint64(r.win.size))
		}
		r.win.write(b)
		if n < len(p) {
			p[n] = b
			n++
		} else {
			r.pendBuf[r.pendTail] = b
			r.pendTail++
		}
	}
	return n, nil
}

func (r *Reader) finishBlock() {
	r.kind = blockNone
	if r.final {
		r.eof = true
	}
}

// readDynamicHeader decodes the HLIT/HDIST/HCLEN header and the
// run-length-encoded code lengths of a dynamic Huffman block.
func (r *Reader) readDynamicHeader() error {
	hlit, err := r.bd.DecodeBits(r.src, 5)
	if err != nil {
		return err
	}
	hdist, err := r.bd.DecodeBits(r.src, 5)
	if err != nil {
		return err
	}
	hclen, err := r.bd.DecodeBits(r.src, 4)
	if err != nil {
		return err
	}
	nlit := int(hlit) + 257
	ndist := int(hdist) + 1
	nclen := int(hclen) + 4
	if nlit > 286 || ndist > 30 {
		return invalidData(uint64(nlit), uint64(ndist))
	}

	var clenLengths [19]int
	for i := 0; i < nclen; i++ {
		v, err := r.bd.DecodeBits(r.src, 3)
		if err != nil {
			return err
		}
		clenLengths[codeLengthOrder[i]] = int(v)
	}
	var clenTable prefixTable
	if err := clenTable.build(clenLengths[:]); err != nil {
		return err
	}

	lengths := make([]int, nlit+ndist)
	for i := 0; i < len(lengths); {
		sym, err := clenTable.decode(r.bd, r.src)
		if err != nil {
			return err
		}
		var repeat, value int
		switch {
		case sym < 16:
			lengths[i] = sym
			i++
			continue
		case sym == 16:
			if i == 0 {
				return invalidData(uint64(sym))
			}
			bits, err := r.bd.DecodeBits(r.src, 2)
			if err != nil {
				return err
			}
			repeat = 3 + int(bits)
			value = lengths[i-1]
		case sym == 17:
			bits, err := r.bd.DecodeBits(r.src, 3)
			if err != nil {
				return err
			}
			repeat = 3 + int(bits)
		default: // 18
			bits, err := r.bd.DecodeBits(r.src, 7)
			if err != nil {
				return err
			}
			repeat = 11 + int(bits)
		}
		if i+repeat > len(lengths) {
			return invalidData(uint64(sym), uint64(repeat))
		}
		for ; repeat > 0; repeat-- {
			lengths[i] = value
			i++
		}
	}

	// A block without an end-of-block code can never terminate.
	if lengths[256] == 0 {
		return invalidData(256)
	}
	if err := r.lit.build(lengths[:nlit]); err != nil {
		return err
	}
	return r.dist.build(lengths[nlit:])
}
