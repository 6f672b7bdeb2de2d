package deflate

import (
	"io"

	"github.com/geal-ai/compress"
	"github.com/geal-ai/compress/bitstream"
)

// maxCodeLen is the longest Huffman code RFC 1951 permits.
const maxCodeLen = 15

// tableEntry resolves one peeked bit pattern to a symbol. width 0 marks a
// pattern no code maps to.
type tableEntry struct {
	sym   uint16
	width uint8
}

// prefixTable is a single-level lookup table for a canonical prefix code.
// It is indexed by the next maxBits stream bits as peeked LSB-first, so
// each code of width w occupies 1<<(maxBits-w) slots, one per possible
// suffix. Resolution peeks once and discards exactly the matched width;
// near end of stream the peek runs into the decoder's virtual trailing
// zeros, which never alter the matched code because codes are prefix-free.
type prefixTable struct {
	maxBits int
	entries []tableEntry
}

// build constructs the table from per-symbol code lengths (0 = unused).
// Over-subscribed length sets are invalid data. Incomplete sets are
// accepted only in the degenerate single-code form RFC 1951 allows for
// distance trees; an all-zero set yields a table that rejects every
// pattern, which is legal as long as it is never consulted.
func (t *prefixTable) build(lengths []int) error {
	var count [maxCodeLen + 1]int
	codes := 0
	maxBits := 0
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		count[l]++
		codes++
		if l > maxBits {
			maxBits = l
		}
	}

	// Kraft check: over-subscribed is always invalid, incomplete only
	// tolerated as a lone 1-bit code.
	space := 1
	for l := 1; l <= maxCodeLen; l++ {
		space <<= 1
		space -= count[l]
		if space < 0 {
			return invalidData(uint64(l), uint64(count[l]))
		}
	}
	if space > 0 && codes > 1 {
		return invalidData(uint64(codes))
	}

	t.maxBits = maxBits
	t.entries = make([]tableEntry, 1<<uint(maxBits))

	// Canonical code assignment in symbol order, filled at every
	// possible suffix of the bit-reversed code.
	var nextCode [maxCodeLen + 1]int
	code := 0
	for l := 1; l <= maxBits; l++ {
		code = (code + count[l-1]) << 1
		nextCode[l] = code
	}
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		rev := reverseBits(uint32(nextCode[l]), l)
		nextCode[l]++
		entry := tableEntry{sym: uint16(sym), width: uint8(l)}
		for idx := int(rev); idx < len(t.entries); idx += 1 << uint(l) {
			t.entries[idx] = entry
		}
	}
	return nil
}

// decode resolves the next symbol: one peek at the table width, then a
// discard of the matched code's exact width.
func (t *prefixTable) decode(bd *bitstream.Decoder, src io.Reader) (int, error) {
	v, err := bd.PeekBits(src, t.maxBits)
	if err != nil {
		return 0, err
	}
	e := t.entries[v]
	if e.width == 0 {
		return 0, invalidData(uint64(v))
	}
	if _, err := bd.DecodeBits(src, int(e.width)); err != nil {
		return 0, err
	}
	return int(e.sym), nil
}

// reverseBits mirrors the low n bits of v.
func reverseBits(v uint32, n int) uint32 {
	var r uint32
	for i := 0; i < n; i++ {
		r = r<<1 | v&1
		v >>= 1
	}
	return r
}

func invalidData(values ...uint64) error {
	return &compress.InvalidDataError{Format: "deflate", Values: values}
}

// Fixed-tree code lengths and the length/distance value tables, per
// RFC 1951 §3.2.5–§3.2.6.
var (
	lengthBase = [29]int{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]int{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
	distBase = [30]int{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
		8193, 12289, 16385, 24577,
	}
	distExtra = [30]int{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}

	// codeLengthOrder is the transmission order of the code-length
	// alphabet's own lengths in a dynamic block header.
	codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

	fixedLit  prefixTable
	fixedDist prefixTable
)

func init() {
	lengths := make([]int, 288)
	for i := 0; i <= 143; i++ {
		lengths[i] = 8
	}
	for i := 144; i <= 255; i++ {
		lengths[i] = 9
	}
	for i := 256; i <= 279; i++ {
		lengths[i] = 7
	}
	for i := 280; i <= 287; i++ {
		lengths[i] = 8
	}
	if err := fixedLit.build(lengths); err != nil {
		panic(err)
	}

	// All 32 distance codes are 5 bits wide; 30 and 31 never occur in
	// valid data and are rejected when decoded.
	distLengths := make([]int, 32)
	for i := range distLengths {
		distLengths[i] = 5
	}
	if err := fixedDist.build(distLengths); err != nil {
		panic(err)
	}
}
