package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgtarget/internal/batchfile"
	"pgtarget/internal/config"
	"pgtarget/internal/datasource"
	"pgtarget/internal/datasource/s3src"
	"pgtarget/internal/jsonschema"
	"pgtarget/internal/storage/sqlite"
)

const usersSchema = `{"type":"SCHEMA","stream":"users","schema":{"properties":{"id":{"type":"integer"},"name":{"type":["string","null"]}}},"key_properties":["id"]}`

func testTarget() config.Target {
	return config.Target{
		LoadMethod: "insert",
		OnConflict: "fail",
		Batch:      config.Batch{InitialSize: 2, TargetSeconds: 60},
		BatchConfig: config.BatchConfig{
			Encoding: config.BatchEncoding{Format: "jsonl", Compression: "gzip"},
		},
	}
}

// newTestRunner returns a runner over an in-memory SQLite database plus the
// buffer STATE is written to.
func newTestRunner(t *testing.T, target config.Target) (*runner, *sql.DB, *bytes.Buffer) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var out bytes.Buffer
	batches := batchfile.NewReader(datasource.NewOpener("", nil, s3src.Config{}), nil)
	return newRunner(target, sqlite.New(db, nil), batches, &out, nil), db, &out
}

func lines(ls ...string) *strings.Reader {
	return strings.NewReader(strings.Join(ls, "\n") + "\n")
}

func rowCount(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

// TestTableName verifies how stream names map onto tables.
func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stream, schema, want string
	}{
		{"users", "", "users"},
		{"Users", "", "users"},
		{"users", "raw", "raw.users"},
		{"public-users", "", "public.users"},
		{"public-users", "raw", "raw.users"},
		{"db-sales-orders", "", "sales.orders"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tableName(tt.stream, tt.schema), "%s/%s", tt.stream, tt.schema)
	}
}

// TestRun_StateFollowsLoadedRecords verifies that STATE is held until the
// records before it are stored and that the latest pending STATE wins.
func TestRun_StateFollowsLoadedRecords(t *testing.T) {
	t.Parallel()

	r, db, out := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(
		`{"type":"STATE","value":{"n":0}}`,
		usersSchema,
		`{"type":"RECORD","stream":"users","record":{"id":1,"name":"a"}}`,
		`{"type":"STATE","value":{"n":1}}`,
		`{"type":"RECORD","stream":"users","record":{"id":2,"name":"b"}}`,
		`{"type":"RECORD","stream":"users","record":{"id":3,"name":"c"}}`,
		`{"type":"STATE","value":{"n":2}}`,
		`{"type":"STATE","value":{"n":3}}`,
	))
	require.NoError(t, err)

	assert.Equal(t, "{\"n\":0}\n{\"n\":1}\n{\"n\":3}\n", out.String())
	assert.Equal(t, 3, rowCount(t, db, "users"))
}

// TestRun_SchemaErrorDropsOnlyThatStream verifies that a bad schema fails
// its stream while other streams keep loading.
func TestRun_SchemaErrorDropsOnlyThatStream(t *testing.T) {
	t.Parallel()

	r, db, _ := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(
		`{"type":"SCHEMA","stream":"bad","schema":{"type":"object"},"key_properties":[]}`,
		`{"type":"RECORD","stream":"bad","record":{"x":1}}`,
		usersSchema,
		`{"type":"RECORD","stream":"users","record":{"id":1}}`,
	))
	require.NoError(t, err)

	var se *jsonschema.SchemaError
	require.True(t, errors.As(r.streams["bad"].failed, &se))
	assert.Equal(t, "bad", se.Stream)
	assert.Equal(t, int64(1), r.streams["bad"].dropped)
	assert.Equal(t, 1, rowCount(t, db, "users"))
}

// TestRun_RecordBeforeSchema verifies that an unknown stream is fatal.
func TestRun_RecordBeforeSchema(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(`{"type":"RECORD","stream":"ghost","record":{"id":1}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before its schema")
}

// TestRun_SkipsBadInput verifies that unreadable lines and unbindable
// records are skipped without stopping the load.
func TestRun_SkipsBadInput(t *testing.T) {
	t.Parallel()

	r, db, _ := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(
		usersSchema,
		`{"type":`,
		`{"type":"HEARTBEAT"}`,
		`{"type":"RECORD","stream":"users","record":{"id":"abc"}}`,
		`{"type":"RECORD","stream":"users","record":{"id":7}}`,
		`{"type":"ACTIVATE_VERSION","stream":"users","version":1}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 2, r.badLine)
	assert.Equal(t, int64(1), r.streams["users"].sink.Stats().Rejected)
	assert.Equal(t, 1, rowCount(t, db, "users"))
}

// TestRun_SchemaChangeAddsColumn verifies that a changed schema drains the
// old sink and reconciles the table.
func TestRun_SchemaChangeAddsColumn(t *testing.T) {
	t.Parallel()

	r, db, _ := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(
		usersSchema,
		`{"type":"RECORD","stream":"users","record":{"id":1,"name":"a"}}`,
		`{"type":"SCHEMA","stream":"users","schema":{"properties":{"id":{"type":"integer"},"name":{"type":["string","null"]},"email":{"type":["string","null"]}}},"key_properties":["id"]}`,
		`{"type":"RECORD","stream":"users","record":{"id":2,"name":"b","email":"b@example.com"}}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 2, rowCount(t, db, "users"))
	var email sql.NullString
	require.NoError(t, db.QueryRow(`SELECT "email" FROM "users" WHERE "id" = 2`).Scan(&email))
	assert.Equal(t, "b@example.com", email.String)
}

// TestRun_SameSchemaKeepsSink verifies that a repeated SCHEMA does not
// replace the sink.
func TestRun_SameSchemaKeepsSink(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRunner(t, testTarget())
	require.NoError(t, r.run(context.Background(), lines(usersSchema)))
	first := r.streams["users"].sink
	require.NoError(t, r.run(context.Background(), lines(usersSchema)))
	assert.Same(t, first, r.streams["users"].sink)
}

// TestRun_Batch verifies loading a gzip jsonl BATCH file.
func TestRun_Batch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, l := range []string{`{"id":1,"name":"a"}`, `{"id":2}`, `{"id":3,"name":"c"}`} {
		_, err := zw.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "users-0001.jsonl.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r, db, out := newTestRunner(t, testTarget())
	err := r.run(context.Background(), lines(
		usersSchema,
		`{"type":"BATCH","stream":"users","encoding":{"format":"jsonl","compression":"gzip"},"manifest":["file://`+filepath.ToSlash(path)+`"]}`,
		`{"type":"STATE","value":{"batch":1}}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 3, rowCount(t, db, "users"))
	assert.Equal(t, int64(2), r.streams["users"].sink.Stats().Batches)
	assert.Equal(t, "{\"batch\":1}\n", out.String())
}

// TestRun_Canceled verifies that a canceled context stops reading.
func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _, _ := newTestRunner(t, testTarget())
	err := r.run(ctx, lines(usersSchema))
	assert.ErrorIs(t, err, context.Canceled)
}
