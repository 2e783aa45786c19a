// Package datadog sends loader metrics to a DogStatsD agent. Labels become
// "key:value" tags; labels with empty values are left off so run-level
// measurements carry no blank stream or table tags.
package datadog

import (
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"pgtarget/internal/metrics"
)

// Config configures a Backend.
type Config struct {
	// Addr is the agent address: "host:port", "unix:///path" or
	// "unixgram:///path". Required.
	Addr string
	// Namespace prefixes every metric name, e.g. "pgtarget.".
	Namespace string
	// Tags are added to every metric.
	Tags []string
}

// Backend implements metrics.Backend.
type Backend struct {
	client statsd.ClientInterface
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend opens a DogStatsD client. Nothing is sent until the first
// measurement, so a missing agent is not an error here.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: agent address is required")
	}
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.Tags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.Tags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a count; deltas are whole records or steps.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(name, int64(delta), tags(l), 1)
}

// ObserveHistogram sends durations as timings and everything else as a
// distribution.
func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if b.client == nil {
		return
	}
	if name == metrics.StepDurationSeconds {
		_ = b.client.TimeInMilliseconds(name, value*1000, tags(l), 1)
		return
	}
	_ = b.client.Distribution(name, value, tags(l), 1)
}

func (b *Backend) SetGauge(name string, value float64, l metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Gauge(name, value, tags(l), 1)
}

// Flush sends whatever the client has buffered. The client stays open.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Flush()
}

// Close flushes and releases the client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// tags renders l sorted by key, skipping empty values.
func tags(l metrics.Labels) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for k, v := range l {
		if v != "" {
			out = append(out, k+":"+v)
		}
	}
	sort.Strings(out)
	return out
}
