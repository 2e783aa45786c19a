// Package prompush collects loader metrics in a private Prometheus registry
// and pushes them to a Pushgateway on Flush. A load is a batch job with no
// scrape endpoint, so the gateway holds the last pushed values per job.
package prompush

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"pgtarget/internal/metrics"
)

// Namespace prefixes every metric name.
const Namespace = "pgtarget"

var (
	scopeLabels = []string{metrics.LabelStream, metrics.LabelTable, metrics.LabelMode}
	stepLabels  = append(append([]string{}, scopeLabels...), metrics.LabelStep, metrics.LabelStatus)
	rowLabels   = append(append([]string{}, scopeLabels...), metrics.LabelOutcome)
)

type family struct {
	help    string
	labels  []string
	buckets []float64
}

var (
	counterFamilies = map[string]family{
		metrics.StepTotal:    {help: "Load steps executed, by step and status.", labels: stepLabels},
		metrics.RecordsTotal: {help: "Records by outcome (inserted, failed, rejected).", labels: rowLabels},
		metrics.BatchesTotal: {help: "Batches loaded.", labels: scopeLabels},
	}
	histogramFamilies = map[string]family{
		metrics.StepDurationSeconds: {
			help:    "Duration of load steps in seconds.",
			labels:  stepLabels,
			buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		metrics.BatchRows: {
			help:    "Rows per loaded batch.",
			labels:  scopeLabels,
			buckets: prometheus.ExponentialBuckets(10, 2, 15),
		},
	}
	gaugeFamilies = map[string]family{
		metrics.BatchThreshold: {help: "Batch size chosen for the next flush.", labels: scopeLabels},
	}
)

// Config configures a Backend.
type Config struct {
	URL string // Pushgateway base URL, required
	Job string // grouping job; "pgtarget" when empty
}

// Backend implements metrics.Backend.
type Backend struct {
	pusher *push.Pusher
	reg    *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend registers every loader metric in a fresh registry.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if cfg.Job == "" {
		cfg.Job = "pgtarget"
	}

	b := &Backend{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec, len(counterFamilies)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histogramFamilies)),
		gauges:     make(map[string]*prometheus.GaugeVec, len(gaugeFamilies)),
	}
	for name, f := range counterFamilies {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: f.help}, f.labels)
		if err := b.reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.counters[name] = v
	}
	for name, f := range histogramFamilies {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Name: name, Help: f.help, Buckets: f.buckets}, f.labels)
		if err := b.reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.histograms[name] = v
	}
	for name, f := range gaugeFamilies {
		v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Name: name, Help: f.help}, f.labels)
		if err := b.reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.gauges[name] = v
	}
	b.pusher = push.New(cfg.URL, cfg.Job).Gatherer(b.reg)
	return b, nil
}

// values orders l by the family's label names; missing labels are empty.
func values(names []string, l metrics.Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = l[n]
	}
	return out
}

// IncCounter ignores names it does not know.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	if v, ok := b.counters[name]; ok {
		v.WithLabelValues(values(counterFamilies[name].labels, l)...).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if v, ok := b.histograms[name]; ok {
		v.WithLabelValues(values(histogramFamilies[name].labels, l)...).Observe(value)
	}
}

func (b *Backend) SetGauge(name string, value float64, l metrics.Labels) {
	if v, ok := b.gauges[name]; ok {
		v.WithLabelValues(values(gaugeFamilies[name].labels, l)...).Set(value)
	}
}

// Flush replaces the job's metrics on the gateway with the registry's.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
