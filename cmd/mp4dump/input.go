package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	mp4 "github.com/tetsuo/mp4inspect"
)

// input is an opened source for the parser.
type input struct {
	r     io.ReaderAt
	size  int64
	close func() error
}

// decompressors maps a file extension to a reader that expands it.
var decompressors = map[string]func(io.Reader) (io.ReadCloser, error){
	".zst": func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	},
	".gz": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	".lz4": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(r)), nil
	},
	".br": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	},
}

// openInput opens path for parsing. Plain files are read in place;
// compressed files are expanded into memory, up to limit bytes.
func openInput(path string, limit int64) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	newReader, ok := decompressors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &input{r: f, size: fi.Size(), close: f.Close}, nil
	}
	defer f.Close()

	rc, err := newReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("decompress %s: %w: expands beyond %d bytes", path, mp4.ErrPayloadTooLarge, limit)
	}
	return &input{r: bytes.NewReader(b), size: int64(len(b)), close: func() error { return nil }}, nil
}
