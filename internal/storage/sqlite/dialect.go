package sqlite

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	msqlite "modernc.org/sqlite"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
	"pgtarget/internal/storage/sqldb"
	sqliteddl "pgtarget/internal/storage/sqlite/ddl"
)

// dialect implements sqldb.Dialect for modernc.org/sqlite.
type dialect struct {
	sqliteddl.Dialect
}

var _ sqldb.Dialect = dialect{}

func (dialect) DriverName() string { return "sqlite" }

func (dialect) TableExistsQuery(_, table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}

func (dialect) ColumnsQuery(_, table string) (string, []any) {
	return `SELECT name, type, CASE WHEN "notnull" = 0 AND pk = 0 THEN 1 ELSE 0 END
  FROM pragma_table_info(?)
 ORDER BY cid`, []any{table}
}

func (d dialect) DropTableSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
}

func (d dialect) AddColumnSQL(fqn string, c gddl.ColumnDef) (string, error) {
	return gddl.BuildAddColumnSQL(d, fqn, c)
}

// RenameColumnSQL goes through an intermediate name when from and to differ
// only by case: SQLite compares column names case-insensitively and would
// reject the direct rename as a duplicate.
func (d dialect) RenameColumnSQL(fqn, from, to string) []string {
	rename := func(a, b string) string {
		return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", d.QuoteFQN(fqn), d.QuoteIdent(a), d.QuoteIdent(b))
	}
	if strings.EqualFold(from, to) {
		tmp := to + "__rename"
		return []string{rename(from, tmp), rename(tmp, to)}
	}
	return []string{rename(from, to)}
}

func (d dialect) InsertSQL(st storage.Statement) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(st.Table),
		sqldb.QuoteList(d, st.Names()),
		sqldb.Placeholders(len(st.Columns), sqldb.Question))

	switch st.Mode {
	case storage.ModeSkip:
		b.WriteString(" ON CONFLICT DO NOTHING")
	case storage.ModeUpsert:
		fmt.Fprintf(&b, " ON CONFLICT (%s)", sqldb.QuoteList(d, st.Keys))
		if upd := st.UpdateColumns(); len(upd) > 0 {
			fmt.Fprintf(&b, " DO UPDATE SET %s", sqldb.Assignments(d, upd, func(q string) string { return "excluded." + q }))
		} else {
			b.WriteString(" DO NOTHING")
		}
	}
	return b.String(), nil
}

func (dialect) SupportsTemporary() bool { return true }

func (dialect) ErrorPayload(err error) (string, string, bool) {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return strconv.Itoa(se.Code()), se.Error(), true
	}
	return "", "", false
}
