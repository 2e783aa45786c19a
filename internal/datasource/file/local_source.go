// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// Local is a filesystem data source that opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// FromURL resolves a file:// URL. "file:///abs/x.jsonl" names an absolute
// path; "file://rel/x.jsonl" and a bare "rel/x.jsonl" are relative to root
// (the working directory when root is empty).
func FromURL(u *url.URL, root string) (*Local, error) {
	if u.Scheme != "file" {
		return nil, fmt.Errorf("file: expected file:// scheme, got %q", u.Scheme)
	}
	p := u.Host + u.Path
	if p == "" {
		return nil, fmt.Errorf("file: empty path in %q", u.String())
	}
	p = filepath.FromSlash(p)
	if root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return NewLocal(p), nil
}

// Path returns the resolved path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A canceled context is reported without
// touching the filesystem. Filesystem errors keep their cause for errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
