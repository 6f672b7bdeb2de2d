// Command decompress decodes a compressed stream to a file or stdout.
//
// Usage:
//
//	decompress [flags] [input]
//	decompress -list
//
// Examples:
//
//	decompress -f deflate payload.bin
//	decompress -f zstd -o out.dat archive.zst
//	cat stream.snappy | decompress -f snappy > out
//	decompress -c profile.yaml payload.bin
//	decompress -list
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geal-ai/compress"
	_ "github.com/geal-ai/compress/deflate"
	_ "github.com/geal-ai/compress/snappy"
	_ "github.com/geal-ai/compress/zstd"
)

// profile is the optional YAML configuration selecting defaults that
// flags may override.
type profile struct {
	Format     string `yaml:"format"`
	BufferSize int    `yaml:"buffer_size"`
}

func defaultProfile() profile {
	return profile{Format: "deflate", BufferSize: 64 * 1024}
}

func loadProfile(path string) (profile, error) {
	p := defaultProfile()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse %s: %w", path, err)
	}
	if p.BufferSize <= 0 {
		return p, fmt.Errorf("%s: buffer_size must be positive, got %d", path, p.BufferSize)
	}
	return p, nil
}

func main() {
	format := flag.String("f", "", "Input format (see -list); overrides the config file")
	output := flag.String("o", "", "Output file (default: stdout)")
	configPath := flag.String("c", "", "YAML profile with default format and buffer size")
	listFormats := flag.Bool("list", false, "Print registered formats and exit")
	verbose := flag.Bool("v", false, "Verbose logging to stderr")
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *listFormats {
		for _, name := range compress.Formats() {
			fmt.Println(name)
		}
		os.Exit(0)
	}

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "error: at most one input file")
		usage()
		os.Exit(2)
	}

	prof := defaultProfile()
	if *configPath != "" {
		var err error
		prof, err = loadProfile(*configPath)
		if err != nil {
			fatalf("config: %v", err)
		}
		slog.Debug("profile loaded", "path", *configPath, "format", prof.Format, "buffer_size", prof.BufferSize)
	}
	if *format != "" {
		prof.Format = *format
	}

	in := os.Stdin
	inName := "stdin"
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		in = f
		inName = flag.Arg(0)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		out = f
	}

	rc, err := compress.NewReader(prof.Format, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		usage()
		os.Exit(2)
	}
	defer rc.Close()

	slog.Debug("decoding", "input", inName, "format", prof.Format)
	written, err := io.CopyBuffer(out, rc, make([]byte, prof.BufferSize))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			fatalf("%s: input truncated: %v", inName, err)
		}
		fatalf("%s: %v", inName, err)
	}
	slog.Debug("done", "input", inName, "bytes_out", written)
}

func usage() {
	fmt.Fprintln(os.Stderr, `decompress: decode a compressed stream

Usage:
  decompress [flags] [input]
  decompress -list

Flags:`)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Examples:
  decompress -f deflate payload.bin
  decompress -f zstd -o out.dat archive.zst
  cat stream.snappy | decompress -f snappy > out
  decompress -c profile.yaml payload.bin
  decompress -list`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
