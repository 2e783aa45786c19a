// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE and ALTER TABLE statements from that model.
//
// Rendering is driven by a Dialect, which owns identifier quoting and the
// SQL spelling of each ColumnType. Backend packages under internal/storage
// provide their dialects; this package stays free of any SQL flavor.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect supplies the backend-specific pieces of DDL rendering.
type Dialect interface {
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent(name string) string
	// QuoteFQN quotes a possibly schema-qualified name such as "public.t".
	QuoteFQN(fqn string) string
	// TypeSQL spells a ColumnType in the dialect.
	TypeSQL(t ColumnType) string
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty and at least one column is required.
//
//   - A column is rendered as:
//
//     <Name> <Type> [NOT NULL] [DEFAULT <Default>]
//
//     where NOT NULL is added when Nullable == false or the column is part
//     of the primary key.
//
//   - Primary-key columns are collected, in column order, into a trailing
//     PRIMARY KEY (...) clause.
//
//   - Temporary tables render as CREATE TEMPORARY TABLE.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		def, err := columnSQL(d, fqn, c)
		if err != nil {
			return "", err
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(strings.TrimSpace(c.Name)))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	verb := "CREATE TABLE"
	if t.Temporary {
		verb = "CREATE TEMPORARY TABLE"
	}

	return fmt.Sprintf(
		"%s %s (\n  %s\n);",
		verb,
		d.QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildAddColumnSQL renders ALTER TABLE ... ADD COLUMN for one column. Added
// columns are always nullable: existing rows have no value for them.
func BuildAddColumnSQL(d Dialect, fqn string, c ColumnDef) (string, error) {
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	c.Nullable = true
	c.PrimaryKey = false
	def, err := columnSQL(d, fqn, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteFQN(fqn), def), nil
}

func columnSQL(d Dialect, fqn string, c ColumnDef) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
	}
	if c.Type.Kind == 0 {
		return "", fmt.Errorf("ddl: column %s missing type", name)
	}

	var sb strings.Builder
	sb.WriteString(d.QuoteIdent(name))
	sb.WriteByte(' ')
	sb.WriteString(d.TypeSQL(c.Type))

	if !c.Nullable || c.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	if def := strings.TrimSpace(c.Default); def != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(def)
	}
	return sb.String(), nil
}
