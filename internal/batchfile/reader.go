// Package batchfile reads the record files referenced by BATCH messages.
// Files are jsonl, optionally gzip or zstd compressed, and may live on the
// local disk, behind HTTP(S) or in S3.
package batchfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"pgtarget/internal/datasource"
	"pgtarget/internal/singer"
)

// FormatJSONL is the only supported file format.
const FormatJSONL = "jsonl"

// Reader iterates the records of a BATCH manifest.
type Reader struct {
	opener *datasource.Opener
	log    *zap.Logger
}

// NewReader returns a Reader that resolves manifest URLs with opener.
func NewReader(opener *datasource.Opener, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{opener: opener, log: log}
}

// Each calls fn for every record of every file in manifest, in order. It
// stops at the first error from a file or from fn.
func (r *Reader) Each(ctx context.Context, enc singer.Encoding, manifest []string, fn func(map[string]any) error) error {
	if f := strings.ToLower(enc.Format); f != "" && f != FormatJSONL {
		return fmt.Errorf("batchfile: unsupported format %q", enc.Format)
	}
	for _, u := range manifest {
		start := time.Now()
		n, err := r.file(ctx, enc, u, fn)
		if err != nil {
			return fmt.Errorf("batchfile: %s: %w", u, err)
		}
		r.log.Debug("read batch file",
			zap.String("url", u),
			zap.Int("records", n),
			zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
		)
	}
	return nil
}

func (r *Reader) file(ctx context.Context, enc singer.Encoding, rawURL string, fn func(map[string]any) error) (n int, err error) {
	src, err := r.opener.Source(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	zr, err := Decompress(rc, enc.Compression)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := zr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	dec := NewDecoder(zr)
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := fn(rec); err != nil {
			return n, err
		}
		n++
	}
}
