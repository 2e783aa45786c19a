package ddl

import (
	"fmt"
	"strings"
)

// Kind enumerates the logical column types the type mapper can produce.
// Backends translate a Kind into their own SQL spelling.
type Kind int

const (
	KindVarchar Kind = iota + 1
	KindText
	KindBinary
	KindBoolean
	KindDate
	KindTime
	KindTimestamp
	KindUUID
	KindSmallInt
	KindInteger
	KindBigInt
	KindNumeric
	KindMoney
	KindFloat
	KindReal
	KindJSON
)

var kindNames = map[Kind]string{
	KindVarchar:   "VARCHAR",
	KindText:      "TEXT",
	KindBinary:    "BINARY",
	KindBoolean:   "BOOLEAN",
	KindDate:      "DATE",
	KindTime:      "TIME",
	KindTimestamp: "TIMESTAMP",
	KindUUID:      "UUID",
	KindSmallInt:  "SMALLINT",
	KindInteger:   "INTEGER",
	KindBigInt:    "BIGINT",
	KindNumeric:   "NUMERIC",
	KindMoney:     "MONEY",
	KindFloat:     "FLOAT",
	KindReal:      "REAL",
	KindJSON:      "JSON",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ColumnType is an immutable, dialect-neutral column type.
//
// Length applies to VARCHAR and BINARY (0 means unbounded). Precision and
// Scale apply to NUMERIC; a zero Precision means an unconstrained NUMERIC.
type ColumnType struct {
	Kind      Kind
	Length    int
	Precision int
	Scale     int
}

// Of returns a ColumnType with no size modifiers.
func Of(k Kind) ColumnType { return ColumnType{Kind: k} }

// Varchar returns a VARCHAR of the given length (0 for unbounded).
func Varchar(length int) ColumnType { return ColumnType{Kind: KindVarchar, Length: length} }

// Binary returns a BINARY of the given length (0 for unbounded).
func Binary(length int) ColumnType { return ColumnType{Kind: KindBinary, Length: length} }

// Numeric returns an exact numeric type.
func Numeric(precision, scale int) ColumnType {
	return ColumnType{Kind: KindNumeric, Precision: precision, Scale: scale}
}

// String renders the type in a neutral notation, e.g. VARCHAR(50) or
// NUMERIC(7,2). It is meant for logs and tests, not for DDL.
func (t ColumnType) String() string {
	switch t.Kind {
	case KindVarchar, KindBinary:
		if t.Length > 0 {
			return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
		}
	case KindNumeric:
		if t.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", t.Kind, t.Precision, t.Scale)
		}
	}
	return t.Kind.String()
}

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - Type: dialect-neutral column type
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression, emitted verbatim
type ColumnDef struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table").
type TableDef struct {
	FQN       string
	Columns   []ColumnDef
	Temporary bool
}

// Column returns the column with the given name, compared case-insensitively.
func (t TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// PrimaryKeys returns the primary-key column names in column order.
func (t TableDef) PrimaryKeys() []string {
	var out []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}
