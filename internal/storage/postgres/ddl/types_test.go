package ddl

import (
	"testing"

	gddl "pgtarget/internal/ddl"
)

// TestTypeSQL verifies the Postgres spelling of every column kind.
func TestTypeSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   gddl.ColumnType
		want string
	}{
		{name: "varchar sized", in: gddl.Varchar(50), want: "VARCHAR(50)"},
		{name: "varchar unbounded", in: gddl.Varchar(0), want: "VARCHAR"},
		{name: "text", in: gddl.Of(gddl.KindText), want: "TEXT"},
		{name: "binary sized", in: gddl.Binary(16), want: "BYTEA"},
		{name: "boolean", in: gddl.Of(gddl.KindBoolean), want: "BOOLEAN"},
		{name: "date", in: gddl.Of(gddl.KindDate), want: "DATE"},
		{name: "time", in: gddl.Of(gddl.KindTime), want: "TIME"},
		{name: "timestamp", in: gddl.Of(gddl.KindTimestamp), want: "TIMESTAMP"},
		{name: "uuid", in: gddl.Of(gddl.KindUUID), want: "UUID"},
		{name: "smallint", in: gddl.Of(gddl.KindSmallInt), want: "SMALLINT"},
		{name: "integer", in: gddl.Of(gddl.KindInteger), want: "INTEGER"},
		{name: "bigint", in: gddl.Of(gddl.KindBigInt), want: "BIGINT"},
		{name: "numeric", in: gddl.Numeric(7, 2), want: "NUMERIC(7,2)"},
		{name: "numeric unconstrained", in: gddl.Numeric(0, 4), want: "NUMERIC"},
		{name: "money", in: gddl.Of(gddl.KindMoney), want: "MONEY"},
		{name: "float", in: gddl.Of(gddl.KindFloat), want: "DOUBLE PRECISION"},
		{name: "real", in: gddl.Of(gddl.KindReal), want: "REAL"},
		{name: "json", in: gddl.Of(gddl.KindJSON), want: "JSONB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := (Dialect{}).TypeSQL(tt.in); got != tt.want {
				t.Fatalf("TypeSQL(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestQuote verifies identifier and FQN quoting.
func TestQuote(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	if got := d.QuoteIdent(`weird"name`); got != `"weird""name"` {
		t.Fatalf("QuoteIdent = %s", got)
	}
	if got := d.QuoteFQN("public.users"); got != `"public"."users"` {
		t.Fatalf("QuoteFQN = %s", got)
	}
	if got := d.QuoteFQN("users"); got != `"users"` {
		t.Fatalf("QuoteFQN = %s", got)
	}
}

// TestCreateTable verifies the full statement for a keyed table.
func TestCreateTable(t *testing.T) {
	t.Parallel()

	sql, err := gddl.BuildCreateTableSQL(Dialect{}, gddl.TableDef{
		FQN: "public.users",
		Columns: []gddl.ColumnDef{
			{Name: "id", Type: gddl.Of(gddl.KindInteger), PrimaryKey: true},
			{Name: "name", Type: gddl.Varchar(50), Nullable: true},
		},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE \"public\".\"users\" (\n  \"id\" INTEGER NOT NULL,\n  \"name\" VARCHAR(50),\n  PRIMARY KEY (\"id\")\n);"
	if sql != want {
		t.Fatalf("sql =\n%s\nwant\n%s", sql, want)
	}
}
