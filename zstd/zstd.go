// Package zstd adapts the klauspost Zstandard codec to the toolkit's
// reader interface.
package zstd

import (
	"io"

	kzstd "github.com/klauspost/compress/zstd"

	"github.com/geal-ai/compress"
)

func init() {
	compress.Register("zstd", func(src io.Reader) (io.ReadCloser, error) {
		return NewReader(src)
	})
}

// NewReader returns a ReadCloser decoding the zstd stream in src. Close
// releases the decoder's resources but does not close src.
func NewReader(src io.Reader) (io.ReadCloser, error) {
	dec, err := kzstd.NewReader(src, kzstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// NewWriter returns a WriteCloser producing a zstd stream; the
// counterpart of NewReader for round trips.
func NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return kzstd.NewWriter(dst)
}
