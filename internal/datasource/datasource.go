// Package datasource opens the files named by BATCH manifests. A manifest
// entry is a URL; its scheme picks the backend:
//
//	file://   local disk (internal/datasource/file)
//	http(s):// HTTP GET with retries (internal/datasource/httpds)
//	s3://     S3 or an S3-compatible store (internal/datasource/s3src)
package datasource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"pgtarget/internal/datasource/file"
	"pgtarget/internal/datasource/httpds"
	"pgtarget/internal/datasource/s3src"
)

// Source is one openable file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Opener resolves manifest URLs to Sources. The S3 client is built on the
// first s3:// URL.
type Opener struct {
	root string
	http *httpds.Client
	s3   s3src.Config

	s3Once sync.Once
	s3API  s3src.GetObjectAPI
	s3Err  error
}

// NewOpener returns an Opener. root resolves relative file:// URLs.
func NewOpener(root string, http *httpds.Client, s3 s3src.Config) *Opener {
	if http == nil {
		http = httpds.NewClient(httpds.Config{MaxRetries: 3})
	}
	return &Opener{root: root, http: http, s3: s3}
}

// WithS3API replaces the S3 client, mainly for tests.
func (o *Opener) WithS3API(api s3src.GetObjectAPI) *Opener {
	o.s3Once.Do(func() {})
	o.s3API = api
	return o
}

// Source resolves rawURL.
func (o *Opener) Source(ctx context.Context, rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("datasource: parse %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "file", "":
		if u.Scheme == "" {
			u = &url.URL{Scheme: "file", Path: rawURL}
		}
		return file.FromURL(u, o.root)
	case "http", "https":
		return o.http.Source(rawURL), nil
	case "s3":
		o.s3Once.Do(func() {
			o.s3API, o.s3Err = s3src.NewClient(ctx, o.s3)
		})
		if o.s3Err != nil {
			return nil, o.s3Err
		}
		return s3src.NewSource(o.s3API, rawURL)
	default:
		return nil, fmt.Errorf("datasource: unsupported scheme %q in %q", u.Scheme, rawURL)
	}
}
