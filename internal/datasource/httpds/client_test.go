package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noSleep(context.Context, time.Duration) error { return nil }

// TestNewClient_Defaults verifies defaults and TLS settings when no custom
// Transport is supplied.
func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true, MaxRetries: -1})

	if c.httpClient.Timeout <= 0 {
		t.Fatalf("expected non-zero timeout, got %v", c.httpClient.Timeout)
	}
	if c.maxRetries != 0 {
		t.Fatalf("expected maxRetries=0, got %d", c.maxRetries)
	}
	if c.initialBackoff <= 0 || c.maxBackoff <= 0 {
		t.Fatalf("expected positive backoff defaults, got %v/%v", c.initialBackoff, c.maxBackoff)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}
}

// TestSource_Open covers success, retry on 5xx, giving up, and final 4xx.
func TestSource_Open(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statuses   []int // status per attempt; the last repeats
		maxRetries int
		wantHits   int32
		wantErr    string
	}{
		{name: "ok first try", statuses: []int{200}, maxRetries: 3, wantHits: 1},
		{name: "retry then ok", statuses: []int{500, 503, 200}, maxRetries: 3, wantHits: 3},
		{name: "429 retried", statuses: []int{429, 200}, maxRetries: 1, wantHits: 2},
		{name: "gives up", statuses: []int{502}, maxRetries: 2, wantHits: 3, wantErr: "status 502"},
		{name: "404 not retried", statuses: []int{404}, maxRetries: 3, wantHits: 1, wantErr: "status 404"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(atomic.AddInt32(&hits, 1))
				if r.Header.Get("X-Token") != "t" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				code := tt.statuses[len(tt.statuses)-1]
				if n <= len(tt.statuses) {
					code = tt.statuses[n-1]
				}
				w.WriteHeader(code)
				_, _ = io.WriteString(w, `{"id":1}`+"\n")
			}))
			defer srv.Close()

			c := NewClient(Config{MaxRetries: tt.maxRetries, Headers: http.Header{"X-Token": {"t"}}})
			c.sleep = noSleep

			rc, err := c.Source(srv.URL + "/batch.jsonl").Open(context.Background())
			if got := atomic.LoadInt32(&hits); got != tt.wantHits {
				t.Fatalf("hits = %d, want %d", got, tt.wantHits)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Open() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			body, _ := io.ReadAll(rc)
			if string(body) != `{"id":1}`+"\n" {
				t.Fatalf("body = %q", body)
			}
		})
	}
}

// TestGet_ContextCanceledDuringBackoff verifies that cancellation stops the
// retry loop.
func TestGet_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour})
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := c.Get(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
}

// TestBackoff verifies exponential growth and clamping.
func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second},
		{64, time.Second},
	}
	for _, tt := range tests {
		if got := backoff(100*time.Millisecond, tt.retry, time.Second); got != tt.want {
			t.Fatalf("backoff(retry=%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

// TestRetryable verifies which statuses are treated as transient.
func TestRetryable(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{200: false, 400: false, 404: false, 429: true, 500: true, 503: true, 599: true} {
		if got := retryable(code); got != want {
			t.Fatalf("retryable(%d) = %v, want %v", code, got, want)
		}
	}
}
