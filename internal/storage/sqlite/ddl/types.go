// Package ddl contains SQLite-specific helpers for generating DDL.
//
// SQLite is dynamically typed, so declared types mostly pick an affinity.
// Declared names are kept readable where the affinity is right (DATE,
// TIMESTAMP, NUMERIC) and replaced where it is not (UUID and JSON become
// TEXT).
package ddl

import (
	"fmt"
	"strings"

	gddl "pgtarget/internal/ddl"
)

// Dialect renders SQLite identifiers and column types.
type Dialect struct{}

var _ gddl.Dialect = Dialect{}

// QuoteIdent quotes a single identifier segment, e.g. weird"name becomes
// "weird""name".
func (Dialect) QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes the table part of fqn. SQLite has no schemas in the
// Postgres sense, so a "schema." prefix is dropped.
func (d Dialect) QuoteFQN(fqn string) string {
	return d.QuoteIdent(Table(fqn))
}

// Table returns the last dotted segment of fqn.
func Table(fqn string) string {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

// TypeSQL spells a column type for SQLite.
func (Dialect) TypeSQL(t gddl.ColumnType) string {
	switch t.Kind {
	case gddl.KindVarchar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "TEXT"
	case gddl.KindBinary:
		return "BLOB"
	case gddl.KindUUID, gddl.KindJSON, gddl.KindTime:
		return "TEXT"
	case gddl.KindNumeric:
		if t.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
		}
		return "NUMERIC"
	case gddl.KindMoney:
		return "NUMERIC"
	case gddl.KindFloat:
		return "DOUBLE"
	default:
		return t.Kind.String()
	}
}
