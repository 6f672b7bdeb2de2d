// Package snappy adapts the golang/snappy framed-stream codec to the
// toolkit's reader interface. Unlike package deflate it performs no bit
// decoding of its own; it exists so callers address every supported
// format through one registry.
package snappy

import (
	"io"

	gsnappy "github.com/golang/snappy"

	"github.com/geal-ai/compress"
)

func init() {
	compress.Register("snappy", func(src io.Reader) (io.ReadCloser, error) {
		return NewReader(src), nil
	})
}

type reader struct {
	*gsnappy.Reader
}

func (reader) Close() error { return nil }

// NewReader returns a ReadCloser decoding the snappy framed stream in
// src. Close does not close src.
func NewReader(src io.Reader) io.ReadCloser {
	return reader{gsnappy.NewReader(src)}
}

// NewWriter returns a WriteCloser producing a snappy framed stream; the
// counterpart of NewReader for round trips.
func NewWriter(dst io.Writer) io.WriteCloser {
	return gsnappy.NewBufferedWriter(dst)
}
