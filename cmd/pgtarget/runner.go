package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pgtarget/internal/batchfile"
	"pgtarget/internal/codec"
	"pgtarget/internal/config"
	"pgtarget/internal/conform"
	"pgtarget/internal/jsonschema"
	"pgtarget/internal/metrics"
	"pgtarget/internal/singer"
	"pgtarget/internal/sink"
	"pgtarget/internal/storage"
	"pgtarget/internal/typemap"
)

// runner routes Singer messages to one sink per stream and emits STATE once
// every record that preceded it has been loaded.
type runner struct {
	target  config.Target
	repo    storage.Repository
	batches *batchfile.Reader
	codec   codec.Codec
	mapper  typemap.Mapper
	conf    *conform.Conformer
	log     *zap.Logger
	now     func() time.Time

	state   *singer.Writer
	pending json.RawMessage

	streams map[string]*stream
	counts  map[singer.Type]int
	badLine int
}

// stream is the runner's view of one Singer stream.
type stream struct {
	name        string
	sink        *sink.Sink
	fingerprint uint64
	keys        []string
	failed      error
	dropped     int64
}

func newRunner(t config.Target, repo storage.Repository, batches *batchfile.Reader, out io.Writer, log *zap.Logger) *runner {
	if log == nil {
		log = zap.NewNop()
	}
	c := codec.New()
	return &runner{
		target:  t,
		repo:    repo,
		batches: batches,
		codec:   c,
		mapper:  typemap.New(t.HDJSONSchemaTypes, log),
		conf:    conform.New(c, log),
		log:     log,
		now:     time.Now,
		state:   singer.NewWriter(out, c),
		streams: map[string]*stream{},
		counts:  map[singer.Type]int{},
	}
}

// run consumes in until EOF, then drains every sink and emits the last
// STATE. Lines that cannot be decoded are logged and skipped.
func (r *runner) run(ctx context.Context, in io.Reader) (err error) {
	start := r.now()
	defer func() { metrics.RecordStep(metrics.Scope{}, "run", err, r.now().Sub(start)) }()

	rd := singer.NewReader(in, r.codec)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var me *singer.MessageError
		if errors.As(err, &me) {
			r.badLine++
			r.log.Warn("skipping unreadable message", zap.Int("line", me.Line), zap.Error(me.Err))
			continue
		}
		if err != nil {
			return err
		}
		r.counts[m.Type]++
		if err := r.handle(ctx, m); err != nil {
			return fmt.Errorf("line %d: %w", rd.Line(), err)
		}
	}

	if err := r.drainAll(ctx); err != nil {
		return err
	}
	if err := r.emitState(); err != nil {
		return err
	}
	r.summary(start)
	return nil
}

func (r *runner) handle(ctx context.Context, m singer.Message) error {
	switch m.Type {
	case singer.TypeSchema:
		return r.onSchema(ctx, m)
	case singer.TypeRecord:
		return r.onRecord(ctx, m)
	case singer.TypeBatch:
		return r.onBatch(ctx, m)
	case singer.TypeState:
		r.pending = m.Value
		if r.buffered() == 0 {
			return r.emitState()
		}
		return nil
	case singer.TypeActivateVersion:
		r.log.Debug("activate version ignored", zap.String("stream", m.Stream), zap.Int64("version", *m.Version))
		return nil
	}
	return nil
}

// onSchema opens a sink for a new stream or replaces it when the schema or
// its keys changed. Records buffered under the old schema are loaded first.
func (r *runner) onSchema(ctx context.Context, m singer.Message) error {
	schema, err := jsonschema.Parse(m.Schema)
	if err == nil && schema.Len() == 0 {
		err = &jsonschema.SchemaError{Stream: m.Stream, Reason: "schema declares no properties"}
	}

	st, ok := r.streams[m.Stream]
	if ok && err == nil && st.failed == nil && st.fingerprint == schema.Fingerprint && equalKeys(st.keys, m.KeyProperties) {
		return nil
	}
	if ok && st.sink != nil {
		if derr := st.sink.Drain(ctx); derr != nil && !errors.Is(derr, storage.ErrUnsupportedOperation) {
			return derr
		}
	}
	if !ok {
		st = &stream{name: m.Stream}
		r.streams[m.Stream] = st
	}
	st.sink, st.failed = nil, nil
	st.keys = m.KeyProperties
	if err != nil {
		return r.failStream(st, err)
	}
	st.fingerprint = schema.Fingerprint

	s, err := sink.New(sink.Options{
		Stream:           m.Stream,
		Table:            tableName(m.Stream, r.target.DefaultTargetSchema),
		Schema:           schema,
		Keys:             m.KeyProperties,
		Repo:             r.repo,
		Mapper:           r.mapper,
		Codec:            r.codec,
		Conformer:        r.conf,
		LoadMethod:       sink.LoadMethod(r.target.LoadMethod),
		OnConflict:       sink.OnConflict(r.target.OnConflict),
		InitialThreshold: r.target.Batch.InitialSize,
		Target:           seconds(r.target.Batch.TargetSeconds),
		MaxAge:           seconds(r.target.Batch.MaxAgeSeconds),
		Logger:           r.log,
		Now:              r.now,
	})
	if err != nil {
		return r.failStream(st, err)
	}
	st.sink = s
	r.log.Info("stream schema",
		zap.String("stream", m.Stream),
		zap.String("table", s.Plan().FQN),
		zap.Int("columns", len(s.Plan().Columns)),
		zap.Strings("keys", m.KeyProperties),
		zap.Stringer("mode", s.Mode()),
	)
	return nil
}

func (r *runner) onRecord(ctx context.Context, m singer.Message) error {
	st, err := r.sinkFor(m.Stream)
	if st == nil || err != nil {
		return err
	}
	before := st.sink.Stats().Batches
	if err := st.sink.Accept(ctx, m.Record); err != nil {
		return r.sinkError(st, err)
	}
	if st.sink.Stats().Batches != before && r.pending != nil {
		return r.checkpoint(ctx)
	}
	return nil
}

// onBatch loads the files of a BATCH message in chunks of the sink's current
// threshold. A chunk with a bad record is rejected as a whole.
func (r *runner) onBatch(ctx context.Context, m singer.Message) error {
	st, err := r.sinkFor(m.Stream)
	if st == nil || err != nil {
		return err
	}
	if err := st.sink.Drain(ctx); err != nil {
		return r.sinkError(st, err)
	}

	enc := m.Encoding
	if enc.Format == "" {
		enc.Format = r.target.BatchConfig.Encoding.Format
	}
	if enc.Compression == "" {
		enc.Compression = r.target.BatchConfig.Encoding.Compression
	}

	var chunk []map[string]any
	load := func() error {
		if len(chunk) == 0 {
			return nil
		}
		_, err := st.sink.LoadBatch(ctx, chunk)
		chunk = chunk[:0]
		if err == nil {
			return nil
		}
		return r.sinkError(st, err)
	}
	err = r.batches.Each(ctx, enc, m.Manifest, func(rec map[string]any) error {
		chunk = append(chunk, rec)
		if len(chunk) < st.sink.Threshold() {
			return nil
		}
		return load()
	})
	if err == nil {
		err = load()
	}
	if err != nil {
		return err
	}
	if r.pending != nil {
		return r.checkpoint(ctx)
	}
	return nil
}

// sinkFor returns the live stream, or nil when records for it are dropped.
func (r *runner) sinkFor(name string) (*stream, error) {
	st, ok := r.streams[name]
	if !ok {
		return nil, fmt.Errorf("record for stream %q arrived before its schema", name)
	}
	if st.failed != nil {
		st.dropped++
		return nil, nil
	}
	return st, nil
}

// sinkError classifies an error from a sink. Rejected records are logged and
// skipped; unsupported operations fail the stream; anything else is fatal.
func (r *runner) sinkError(st *stream, err error) error {
	var ce *conform.ConformError
	var be *codec.BindError
	switch {
	case errors.As(err, &ce), errors.As(err, &be):
		r.log.Warn("record rejected", zap.String("stream", st.name), zap.Error(err))
		return nil
	case errors.Is(err, storage.ErrUnsupportedOperation):
		return r.failStream(st, err)
	default:
		return err
	}
}

func (r *runner) failStream(st *stream, err error) error {
	var se *jsonschema.SchemaError
	if errors.As(err, &se) && se.Stream == "" {
		se.Stream = st.name
	}
	st.failed = err
	r.log.Error("stream failed; its records are dropped", zap.String("stream", st.name), zap.Error(err))
	return nil
}

// checkpoint loads every buffered record and emits the pending STATE.
func (r *runner) checkpoint(ctx context.Context) error {
	if err := r.drainAll(ctx); err != nil {
		return err
	}
	return r.emitState()
}

// drainAll flushes every sink with buffered rows. Sinks share nothing, so
// they are drained concurrently.
func (r *runner) drainAll(ctx context.Context) error {
	var live []*stream
	for _, st := range r.streams {
		if st.sink != nil && st.sink.Buffered() > 0 {
			live = append(live, st)
		}
	}
	unsupported := make([]error, len(live))

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range live {
		i, st := i, st
		g.Go(func() error {
			err := st.sink.Drain(gctx)
			if errors.Is(err, storage.ErrUnsupportedOperation) {
				unsupported[i] = err
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, err := range unsupported {
		if err != nil {
			_ = r.failStream(live[i], err)
		}
	}
	return nil
}

func (r *runner) emitState() error {
	if r.pending == nil {
		return nil
	}
	if err := r.state.WriteState(r.pending); err != nil {
		return fmt.Errorf("emit state: %w", err)
	}
	r.pending = nil
	return nil
}

func (r *runner) buffered() int {
	n := 0
	for _, st := range r.streams {
		if st.sink != nil {
			n += st.sink.Buffered()
		}
	}
	return n
}

func (r *runner) summary(start time.Time) {
	names := make([]string, 0, len(r.streams))
	for n := range r.streams {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		st := r.streams[n]
		fields := []zap.Field{zap.String("stream", n)}
		if st.sink != nil {
			s := st.sink.Stats()
			fields = append(fields,
				zap.Int64("inserted", s.Inserted),
				zap.Int64("failed", s.Failed),
				zap.Int64("rejected", s.Rejected),
				zap.Int64("batches", s.Batches),
			)
		}
		if st.failed != nil {
			fields = append(fields, zap.Int64("dropped", st.dropped), zap.NamedError("stream_error", st.failed))
		}
		r.log.Info("stream done", fields...)
	}
	r.log.Info("input done",
		zap.Int("schema", r.counts[singer.TypeSchema]),
		zap.Int("record", r.counts[singer.TypeRecord]),
		zap.Int("state", r.counts[singer.TypeState]),
		zap.Int("batch", r.counts[singer.TypeBatch]),
		zap.Int("unreadable", r.badLine),
		zap.Duration("elapsed", r.now().Sub(start).Truncate(time.Millisecond)),
	)
}

// tableName derives the destination table from a stream name. A stream named
// "schema-table" (or "db-schema-table") carries its own schema; the
// configured default schema wins when set.
func tableName(stream, defaultSchema string) string {
	parts := strings.Split(stream, "-")
	table := conform.Name(parts[len(parts)-1])
	schema := defaultSchema
	if schema == "" && len(parts) > 1 {
		schema = conform.Name(parts[len(parts)-2])
	}
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
