// Package ddl contains MSSQL-specific helpers for generating DDL.
//
// It maps column types into SQL Server types. The mapping is conservative
// and biased toward safe, widely-supported choices: Unicode strings, and
// DECIMAL(38, 10) when no precision is known.
package ddl

import (
	"fmt"
	"strings"

	gddl "pgtarget/internal/ddl"
)

const maxPrecision = 38

// Dialect renders SQL Server identifiers and column types.
type Dialect struct{}

var _ gddl.Dialect = Dialect{}

// QuoteIdent brackets a SQL Server identifier, escaping ].
func (Dialect) QuoteIdent(id string) string {
	return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]`
}

// QuoteFQN quotes a possibly schema-qualified name like "dbo.hr_events" to
// "[dbo].[hr_events]".
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// TypeSQL spells a column type for SQL Server.
func (Dialect) TypeSQL(t gddl.ColumnType) string {
	switch t.Kind {
	case gddl.KindVarchar:
		if t.Length > 0 && t.Length <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", t.Length)
		}
		return "NVARCHAR(MAX)"
	case gddl.KindText, gddl.KindJSON:
		return "NVARCHAR(MAX)"
	case gddl.KindBinary:
		if t.Length > 0 && t.Length <= 8000 {
			return fmt.Sprintf("VARBINARY(%d)", t.Length)
		}
		return "VARBINARY(MAX)"
	case gddl.KindBoolean:
		return "BIT"
	case gddl.KindTimestamp:
		return "DATETIME2"
	case gddl.KindUUID:
		return "UNIQUEIDENTIFIER"
	case gddl.KindInteger:
		return "INT"
	case gddl.KindNumeric:
		if t.Precision <= 0 {
			return "DECIMAL(38, 10)"
		}
		p, s := t.Precision, t.Scale
		if p > maxPrecision {
			p = maxPrecision
		}
		if s > p {
			s = p
		}
		if s < 0 {
			s = 0
		}
		return fmt.Sprintf("DECIMAL(%d, %d)", p, s)
	default:
		return t.Kind.String()
	}
}
