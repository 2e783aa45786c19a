package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgtarget/internal/codec"
	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
)

func usersStatement(mode storage.Mode) storage.Statement {
	return storage.Statement{
		Table: "public.users",
		Columns: []storage.StatementColumn{
			{Name: "id", Type: gddl.Of(gddl.KindInteger)},
			{Name: "name", Type: gddl.Varchar(50)},
		},
		Keys: []string{"id"},
		Mode: mode,
	}
}

// TestPrepareWrite_SQL verifies the rendered statement for each mode.
func TestPrepareWrite_SQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode storage.Mode
		want string
	}{
		{
			name: "insert",
			mode: storage.ModeInsert,
			want: `INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2)`,
		},
		{
			name: "skip",
			mode: storage.ModeSkip,
			want: `INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO NOTHING`,
		},
		{
			name: "upsert",
			mode: storage.ModeUpsert,
			want: `INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`,
		},
	}

	r := &Repository{}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st, err := r.PrepareWrite(usersStatement(tt.mode))
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.SQL)
		})
	}
}

// TestPrepareWrite_UpsertAllKeys verifies a key-only table degrades to DO
// NOTHING.
func TestPrepareWrite_UpsertAllKeys(t *testing.T) {
	t.Parallel()

	st, err := (&Repository{}).PrepareWrite(storage.Statement{
		Table:   "t",
		Columns: []storage.StatementColumn{{Name: "id", Type: gddl.Of(gddl.KindBigInt)}},
		Keys:    []string{"id"},
		Mode:    storage.ModeUpsert,
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("id") VALUES ($1) ON CONFLICT ("id") DO NOTHING`, st.SQL)
}

// TestUseCopy verifies COPY is only chosen for plain inserts without MONEY.
func TestUseCopy(t *testing.T) {
	t.Parallel()

	assert.True(t, useCopy(usersStatement(storage.ModeInsert)))
	assert.False(t, useCopy(usersStatement(storage.ModeUpsert)))

	st := usersStatement(storage.ModeInsert)
	st.Columns = append(st.Columns, storage.StatementColumn{Name: "price", Type: gddl.Of(gddl.KindMoney)})
	assert.False(t, useCopy(st))
}

// TestEncodeRows verifies string forms become pgtype values.
func TestEncodeRows(t *testing.T) {
	t.Parallel()

	st := storage.Statement{
		Table: "t",
		Columns: []storage.StatementColumn{
			{Name: "amount", Type: gddl.Numeric(10, 2)},
			{Name: "ref", Type: gddl.Of(gddl.KindUUID)},
			{Name: "at", Type: gddl.Of(gddl.KindTime)},
			{Name: "price", Type: gddl.Of(gddl.KindMoney)},
			{Name: "note", Type: gddl.Varchar(0)},
		},
	}
	rows := [][]any{{"12.34", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "07:08:09", "1.50", "hi"}}
	require.NoError(t, encodeRows(st, rows))

	n, ok := rows[0][0].(pgtype.Numeric)
	require.True(t, ok, "amount is %T", rows[0][0])
	assert.Equal(t, int32(-2), n.Exp)
	assert.Equal(t, int64(1234), n.Int.Int64())

	u, ok := rows[0][1].(pgtype.UUID)
	require.True(t, ok)
	assert.True(t, u.Valid)

	tm, ok := rows[0][2].(pgtype.Time)
	require.True(t, ok)
	assert.Equal(t, int64((7*3600+8*60+9)*1_000_000), tm.Microseconds)

	assert.Equal(t, "1.50", rows[0][3])
	assert.Equal(t, "hi", rows[0][4])
}

// TestEncodeValue_ExponentDecimal verifies that NUMERIC values written in
// exponent form reach pgtype as exact numerics instead of failing the batch.
func TestEncodeValue_ExponentDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      json.Number
		wantInt int64
		wantExp int32
	}{
		{in: "1e5", wantInt: 1, wantExp: 5},
		{in: "1.5E+3", wantInt: 15, wantExp: 2},
		{in: "-25e-4", wantInt: -25, wantExp: -4},
		{in: "1.50e1", wantInt: 150, wantExp: -1},
		{in: "12.34", wantInt: 1234, wantExp: -2},
	}

	c := codec.New()
	typ := gddl.Numeric(10, 2)
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.in), func(t *testing.T) {
			t.Parallel()

			bound, err := c.Bind(typ, tt.in)
			require.NoError(t, err)
			v, err := encodeValue(typ, bound)
			require.NoError(t, err)

			n, ok := v.(pgtype.Numeric)
			require.True(t, ok, "value is %T", v)
			assert.True(t, n.Valid)
			assert.Equal(t, tt.wantInt, n.Int.Int64())
			assert.Equal(t, tt.wantExp, n.Exp)
		})
	}
}

// TestEncodeRows_Mismatch verifies row width is checked.
func TestEncodeRows_Mismatch(t *testing.T) {
	t.Parallel()

	err := encodeRows(usersStatement(storage.ModeInsert), [][]any{{1}})
	assert.Error(t, err)
}

// TestExecError_PgError verifies SQLSTATE and detail are lifted out of the
// driver error, even when wrapped.
func TestExecError_PgError(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value", Detail: "Key (id)=(1) already exists."}
	err := execError("write", "public.users", 2, fmt.Errorf("row 1: %w", pgErr))

	var ee *storage.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "23505", ee.Code)
	assert.Equal(t, "Key (id)=(1) already exists.", ee.Detail)
	assert.Equal(t, 2, ee.Rows)
	assert.True(t, errors.As(err, &pgErr))
}

// TestCreateTable_TemporaryUnsupported verifies temp tables are rejected
// before any SQL is sent.
func TestCreateTable_TemporaryUnsupported(t *testing.T) {
	t.Parallel()

	err := (&Repository{}).CreateTable(context.Background(), gddl.TableDef{
		FQN:       "tmp",
		Temporary: true,
		Columns:   []gddl.ColumnDef{{Name: "id", Type: gddl.Of(gddl.KindInteger)}},
	})
	assert.ErrorIs(t, err, storage.ErrUnsupportedOperation)
}
