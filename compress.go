// Package compress is a decompression toolkit built around a shared
// bit-level stream decoding engine (package bitstream). Format decoders
// register themselves here by name so callers can open any supported
// format uniformly:
//
//	rc, err := compress.NewReader("deflate", f)
//
// The native DEFLATE decoder lives in package deflate; packages snappy and
// zstd wrap third-party codecs behind the same interface.
package compress

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// ReaderFunc constructs a decoding reader over src for one format.
type ReaderFunc func(src io.Reader) (io.ReadCloser, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ReaderFunc)
)

// Register makes a format available under name. It is intended to be
// called from init functions of format packages; registering a duplicate
// name panics, as that is a wiring bug.
func Register(name string, fn ReaderFunc) {
	if fn == nil {
		panic("compress: Register with nil ReaderFunc")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("compress: Register called twice for " + name)
	}
	registry[name] = fn
}

// NewReader opens a decoding reader for the named format.
func NewReader(name string, src io.Reader) (io.ReadCloser, error) {
	registryMu.RLock()
	fn, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("compress: unknown format %q (registered: %v)", name, Formats())
	}
	return fn(src)
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
