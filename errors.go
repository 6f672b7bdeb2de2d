package compress

import (
	"fmt"
	"io"
	"strings"
)

// InsufficientDataError reports that the byte source (and any trailing
// bytes) were exhausted before a requested amount of data could be
// supplied. It is an expected, data-dependent condition: any caller
// decoding a real stream must be prepared to handle it.
//
// It unwraps to io.ErrUnexpectedEOF, so errors.Is(err, io.ErrUnexpectedEOF)
// matches truncated input regardless of which decoder produced the error.
type InsufficientDataError struct {
	Requested int // bytes needed to satisfy the request
	Read      int // bytes actually obtained
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: requested %d bytes, read %d", e.Requested, e.Read)
}

func (e *InsufficientDataError) Unwrap() error { return io.ErrUnexpectedEOF }

// InvalidDataError reports a decoded field value that is semantically
// illegal for the format being decoded. It is produced by format decoders,
// never by the bit engine itself.
type InvalidDataError struct {
	Format string   // format name, e.g. "deflate"
	Values []uint64 // offending values, rendered in hex
}

func (e *InvalidDataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Format)
	b.WriteString(": invalid data")
	for i, v := range e.Values {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#x", v)
	}
	return b.String()
}
