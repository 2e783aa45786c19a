// Package metrics records what the loader does, per stream and table, through
// a pluggable Backend. The default backend discards everything, so callers
// never check whether metrics are enabled. Concrete backends live in
// subpackages (prompush, datadog) and add their own namespace to the bare
// names below.
package metrics

import (
	"sync"
	"time"
)

// Metric names, without a namespace.
const (
	StepTotal           = "step_total"
	StepDurationSeconds = "step_duration_seconds"
	RecordsTotal        = "records_total"
	BatchesTotal        = "batches_total"
	BatchRows           = "batch_rows"
	BatchThreshold      = "batch_threshold"
)

// Label names.
const (
	LabelStream  = "stream"
	LabelTable   = "table"
	LabelMode    = "mode"
	LabelStep    = "step"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
)

// Record outcomes.
const (
	Inserted = "inserted"
	Failed   = "failed"
	Rejected = "rejected"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives every measurement.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes buffered data, if the backend buffers.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. nil restores the discarding backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}

// Scope names the stream, table and write mode a measurement belongs to.
// Run-level measurements use the zero Scope.
type Scope struct {
	Stream string
	Table  string
	Mode   string
}

func (s Scope) labels(extra ...string) Labels {
	l := Labels{LabelStream: s.Stream, LabelTable: s.Table, LabelMode: s.Mode}
	for i := 0; i+1 < len(extra); i += 2 {
		l[extra[i]] = extra[i+1]
	}
	return l
}

// RecordStep counts one execution of step ("resolve", "flush", "run") and
// observes its duration.
func RecordStep(s Scope, step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := s.labels(LabelStep, step, LabelStatus, status)
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts n records with the given outcome (Inserted, Failed or
// Rejected). Non-positive counts are ignored.
func RecordRows(s Scope, outcome string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), s.labels(LabelOutcome, outcome))
}

// RecordBatch counts a loaded batch, observes its size and publishes the
// batch size the controller chose for the next one.
func RecordBatch(s Scope, rows int64, next int) {
	l := s.labels()
	b := current()
	b.IncCounter(BatchesTotal, 1, l)
	b.ObserveHistogram(BatchRows, float64(rows), l)
	b.SetGauge(BatchThreshold, float64(next), l)
}
