// Package ddl contains MySQL-specific helpers for generating DDL.
package ddl

import (
	"fmt"
	"strings"

	gddl "pgtarget/internal/ddl"
)

// Widest DECIMAL MySQL accepts; used for unconstrained NUMERIC.
const (
	maxPrecision = 65
	maxScale     = 30
)

// Dialect renders MySQL identifiers and column types.
type Dialect struct{}

var _ gddl.Dialect = Dialect{}

// QuoteIdent quotes an identifier with backticks, doubling embedded ones.
func (Dialect) QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// QuoteFQN quotes "database.table" segment by segment.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, d.QuoteIdent(p))
		}
	}
	return strings.Join(out, ".")
}

// TypeSQL spells a column type for MySQL. Unbounded strings become TEXT
// and UUIDs CHAR(36); NUMERIC is clamped to what DECIMAL accepts.
func (Dialect) TypeSQL(t gddl.ColumnType) string {
	switch t.Kind {
	case gddl.KindVarchar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "TEXT"
	case gddl.KindText:
		return "LONGTEXT"
	case gddl.KindBinary:
		if t.Length > 0 {
			return fmt.Sprintf("VARBINARY(%d)", t.Length)
		}
		return "LONGBLOB"
	case gddl.KindTime:
		return "TIME(6)"
	case gddl.KindTimestamp:
		return "DATETIME(6)"
	case gddl.KindUUID:
		return "CHAR(36)"
	case gddl.KindInteger:
		return "INT"
	case gddl.KindNumeric:
		return decimal(t.Precision, t.Scale)
	case gddl.KindMoney:
		return "DECIMAL(19,4)"
	case gddl.KindFloat:
		return "DOUBLE"
	case gddl.KindReal:
		return "FLOAT"
	default:
		return t.Kind.String()
	}
}

func decimal(p, s int) string {
	if p <= 0 {
		return fmt.Sprintf("DECIMAL(%d,%d)", maxPrecision, maxScale)
	}
	if p > maxPrecision {
		p = maxPrecision
	}
	if s > p {
		s = p
	}
	if s > maxScale {
		s = maxScale
	}
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("DECIMAL(%d,%d)", p, s)
}
