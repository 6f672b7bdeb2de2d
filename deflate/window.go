package deflate

// windowSize is the DEFLATE history span: back-references may reach at
// most 32 KiB behind the current output position.
const windowSize = 32768

// window is the circular history buffer backing LZ77 back-references.
// Every produced output byte is appended; byteAt looks dist bytes back.
type window struct {
	buf  [windowSize]byte
	pos  int // next write position
	size int // bytes of valid history, capped at windowSize
}

func (w *window) write(b byte) {
	w.buf[w.pos] = b
	w.pos = (w.pos + 1) % windowSize
	if w.size < windowSize {
		w.size++
	}
}

// byteAt returns the byte dist positions behind the write cursor, or
// false when dist reaches past the accumulated history.
func (w *window) byteAt(dist int) (byte, bool) {
	if dist <= 0 || dist > w.size {
		return 0, false
	}
	return w.buf[(w.pos-dist+windowSize)%windowSize], true
}

func (w *window) reset() {
	w.pos = 0
	w.size = 0
}
