// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	gddl "pgtarget/internal/ddl"
)

// Dialect renders Postgres identifiers and column types. It implements
// ddl.Dialect.
type Dialect struct{}

var _ gddl.Dialect = Dialect{}

// QuoteIdent quotes a single identifier segment, e.g.:
//
//	QuoteIdent(`pcv`)        => `"pcv"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func (Dialect) QuoteIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

// QuoteFQN quotes a possibly schema-qualified name like "public.users" to
// `"public"."users"`. Empty segments are ignored.
func (Dialect) QuoteFQN(fqn string) string {
	return Identifier(fqn).Sanitize()
}

// Identifier converts "schema.table" into a pgx.Identifier.
func Identifier(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// TypeSQL spells a column type in Postgres:
//
//	VARCHAR(n), VARCHAR   -> VARCHAR(n), VARCHAR
//	BINARY                -> BYTEA
//	NUMERIC(p,s)          -> NUMERIC(p,s); precision 0 -> NUMERIC
//	FLOAT                 -> DOUBLE PRECISION
//	JSON                  -> JSONB
//	TIMESTAMP             -> TIMESTAMP
//	everything else       -> the kind's own name
func (Dialect) TypeSQL(t gddl.ColumnType) string {
	switch t.Kind {
	case gddl.KindVarchar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR"
	case gddl.KindBinary:
		return "BYTEA"
	case gddl.KindNumeric:
		if t.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
		}
		return "NUMERIC"
	case gddl.KindFloat:
		return "DOUBLE PRECISION"
	case gddl.KindJSON:
		return "JSONB"
	default:
		return t.Kind.String()
	}
}
