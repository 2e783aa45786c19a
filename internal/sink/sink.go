// Package sink buffers the records of one stream and loads them into the
// destination table in adaptively sized batches.
//
// A Sink resolves its table lazily on first use: it drops the table when the
// load method is overwrite, creates it when missing, otherwise reconciles it
// by adding missing columns and renaming columns whose names differ only by
// case. The write statement is rendered once and cached for the life of the
// sink.
//
// A Sink is not safe for concurrent use. Distinct sinks share nothing and may
// be flushed concurrently.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pgtarget/internal/codec"
	"pgtarget/internal/conform"
	"pgtarget/internal/ddl"
	"pgtarget/internal/jsonschema"
	"pgtarget/internal/metrics"
	"pgtarget/internal/perftimer"
	"pgtarget/internal/planner"
	"pgtarget/internal/storage"
	"pgtarget/internal/typemap"
)

// LoadMethod is the configured load_method.
type LoadMethod string

const (
	LoadInsert    LoadMethod = "insert"
	LoadUpsert    LoadMethod = "upsert"
	LoadOverwrite LoadMethod = "overwrite"
)

// OnConflict is the configured on_conflict behavior for non-upsert loads.
type OnConflict string

const (
	ConflictFail OnConflict = "fail"
	ConflictSkip OnConflict = "skip"
)

// DefaultInitialThreshold is the batch size a new sink starts with.
const DefaultInitialThreshold = 5000

// Options configures a Sink.
type Options struct {
	Stream string
	// Table is the destination table, optionally schema-qualified.
	Table  string
	Schema *jsonschema.Schema
	Keys   []string

	Repo      storage.Repository
	Mapper    typemap.Mapper
	Codec     codec.Codec
	Conformer *conform.Conformer // built from Codec when nil

	LoadMethod LoadMethod
	OnConflict OnConflict

	InitialThreshold int
	Target           time.Duration // flush time budget; 1s when zero
	MaxAge           time.Duration // flush a partial buffer this old; Target when zero

	Logger *zap.Logger
	Now    func() time.Time
}

// Stats are the running totals of a sink.
type Stats struct {
	Inserted int64
	Failed   int64
	Rejected int64
	Batches  int64
}

// Sink loads the records of one stream.
type Sink struct {
	opts  Options
	log   *zap.Logger
	now   func() time.Time
	conf  *conform.Conformer
	plan  ddl.TableDef
	mode  storage.Mode
	timer *perftimer.BatchTimer
	scope metrics.Scope

	resolved bool
	stmt     storage.Statement

	buf      [][]any
	bufSince time.Time

	start     time.Time
	lastFlush time.Time
	stats     Stats
}

// New plans the destination table for the stream. Schema problems surface
// here as *jsonschema.SchemaError; no SQL is issued until the first flush.
func New(opts Options) (*Sink, error) {
	if opts.Repo == nil {
		return nil, errors.New("sink: repository is required")
	}
	if opts.Table == "" {
		opts.Table = opts.Stream
	}
	if opts.LoadMethod == "" {
		opts.LoadMethod = LoadInsert
	}
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictFail
	}
	if opts.InitialThreshold <= 0 {
		opts.InitialThreshold = DefaultInitialThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("stream", opts.Stream), zap.String("table", opts.Table))

	plan, err := planner.PlanTable(opts.Table, opts.Schema, opts.Keys, opts.Mapper)
	if err != nil {
		return nil, err
	}
	if missing := planner.UndeclaredKeys(opts.Schema, opts.Keys); len(missing) > 0 {
		log.Warn("key properties not declared in schema; not part of the primary key",
			zap.Strings("keys", missing))
	}

	conf := opts.Conformer
	if conf == nil {
		conf = conform.New(opts.Codec, log)
	}

	s := &Sink{
		opts:  opts,
		log:   log,
		now:   opts.Now,
		conf:  conf,
		plan:  plan,
		mode:  modeFor(opts.LoadMethod, opts.OnConflict, plan.PrimaryKeys()),
		timer: perftimer.NewBatchTimer(opts.InitialThreshold, opts.Target, opts.Now),
	}
	s.scope = metrics.Scope{Stream: opts.Stream, Table: plan.FQN, Mode: s.mode.String()}
	s.start = s.now()
	s.lastFlush = s.start
	return s, nil
}

// modeFor picks the write mode. Upsert needs both declared keys and the
// upsert load method; everything else follows on_conflict.
func modeFor(m LoadMethod, c OnConflict, keys []string) storage.Mode {
	if m == LoadUpsert && len(keys) > 0 {
		return storage.ModeUpsert
	}
	if c == ConflictSkip {
		return storage.ModeSkip
	}
	return storage.ModeInsert
}

// Stream returns the stream name.
func (s *Sink) Stream() string { return s.opts.Stream }

// Plan returns the planned table definition.
func (s *Sink) Plan() ddl.TableDef { return s.plan }

// Mode returns the write mode.
func (s *Sink) Mode() storage.Mode { return s.mode }

// Threshold returns the current batch size threshold.
func (s *Sink) Threshold() int { return s.timer.Threshold() }

// Buffered returns the number of rows waiting for the next flush.
func (s *Sink) Buffered() int { return len(s.buf) }

// Stats returns the running totals.
func (s *Sink) Stats() Stats { return s.stats }

// Accept conforms rec and buffers it. The buffer is flushed when it reaches
// the current threshold or when its oldest row has waited as long as the
// flush time budget (MaxAge when set, otherwise Target).
//
// A record that cannot be conformed or bound is rejected with an error and
// never buffered. A flush that fails in the database has already been logged
// and does not fail Accept.
func (s *Sink) Accept(ctx context.Context, rec map[string]any) error {
	row, err := s.row(rec)
	if err != nil {
		s.stats.Rejected++
		metrics.RecordRows(s.scope, metrics.Rejected, 1)
		return err
	}
	if len(s.buf) == 0 {
		s.bufSince = s.now()
	}
	s.buf = append(s.buf, row)

	if !s.due() {
		return nil
	}
	_, err = s.Flush(ctx)
	return handled(err)
}

func (s *Sink) due() bool {
	if len(s.buf) >= s.timer.Threshold() {
		return true
	}
	return s.now().Sub(s.bufSince) >= s.maxAge()
}

func (s *Sink) maxAge() time.Duration {
	if s.opts.MaxAge > 0 {
		return s.opts.MaxAge
	}
	return s.timer.Target()
}

// LoadBatch conforms and loads records as one batch, bypassing the buffer.
// Any record that fails to conform or bind aborts the whole batch before
// SQL is issued. It returns the row count reported by the database.
func (s *Sink) LoadBatch(ctx context.Context, records []map[string]any) (int64, error) {
	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		row, err := s.row(rec)
		if err != nil {
			s.stats.Rejected += int64(len(records))
			metrics.RecordRows(s.scope, metrics.Rejected, int64(len(records)))
			return 0, fmt.Errorf("sink: record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return s.write(ctx, rows)
}

// Flush writes the buffered rows as one batch. The buffer is cleared on both
// success and failure; failed rows are not retried.
func (s *Sink) Flush(ctx context.Context) (int64, error) {
	rows := s.buf
	s.buf = nil
	return s.write(ctx, rows)
}

// Drain flushes whatever is buffered. It is called at end of input and
// before STATE is emitted. Database failures have been logged and counted
// and are not returned.
func (s *Sink) Drain(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	_, err := s.Flush(ctx)
	return handled(err)
}

// handled filters out errors the sink has already logged and accounted for.
func handled(err error) error {
	var ee *storage.ExecError
	if errors.As(err, &ee) {
		return nil
	}
	return err
}

// row conforms rec and binds its values in planned column order. Keys the
// schema does not declare are ignored.
func (s *Sink) row(rec map[string]any) ([]any, error) {
	c, err := s.conf.Conform(rec, s.opts.Schema)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(s.plan.Columns))
	for i, col := range s.plan.Columns {
		v, err := s.opts.Codec.Bind(col.Type, c[col.Name])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

// write resolves the table when needed and writes rows in one transaction,
// timing the write as a lap of the batch controller.
func (s *Sink) write(ctx context.Context, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.resolve(ctx); err != nil {
		return 0, s.fail(err, len(rows), 0)
	}

	if err := s.timer.Start(); err != nil {
		return 0, err
	}
	n, werr := s.opts.Repo.Write(ctx, s.stmt, rows)
	lap, err := s.timer.Stop()
	if err != nil {
		return 0, err
	}
	if werr != nil {
		return 0, s.fail(werr, len(rows), lap)
	}

	prev := s.timer.Threshold()
	next := s.timer.NextThreshold()
	s.progress(n, lap, prev, next)
	return n, nil
}

// fail logs a failed batch once and records it. Buffered rows are dropped by
// the caller.
func (s *Sink) fail(err error, rows int, lap time.Duration) error {
	s.stats.Failed += int64(rows)
	metrics.RecordRows(s.scope, metrics.Failed, int64(rows))
	metrics.RecordStep(s.scope, "flush", err, lap)

	fields := []zap.Field{zap.Int("rows", rows), zap.Error(err)}
	var ee *storage.ExecError
	if errors.As(err, &ee) {
		fields = append(fields, zap.String("op", ee.Op), zap.String("code", ee.Code), zap.String("detail", ee.Detail))
	}
	s.log.Error("batch load failed", fields...)
	return err
}

// progress emits the per-flush line with running totals and the rate since
// the previous flush.
func (s *Sink) progress(n int64, lap time.Duration, prev, next int) {
	s.stats.Inserted += n
	s.stats.Batches++
	metrics.RecordRows(s.scope, metrics.Inserted, n)
	metrics.RecordBatch(s.scope, n, next)
	metrics.RecordStep(s.scope, "flush", nil, lap)

	now := s.now()
	sinceLast := now.Sub(s.lastFlush)
	rps := float64(0)
	if lap > 0 {
		rps = float64(n) / lap.Seconds()
	}
	s.log.Info("batch loaded",
		zap.Int64("batch", s.stats.Batches),
		zap.Int64("inserted", n),
		zap.Int64("total_inserted", s.stats.Inserted),
		zap.Float64("rps", rps),
		zap.Duration("lap", lap.Truncate(time.Millisecond)),
		zap.Duration("since_last", sinceLast.Truncate(time.Millisecond)),
		zap.Duration("elapsed", now.Sub(s.start).Truncate(time.Millisecond)),
		zap.Int("threshold", prev),
		zap.Int("next_threshold", next),
	)
	s.lastFlush = now
}
