package mysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
	mysqlddl "pgtarget/internal/storage/mysql/ddl"
	"pgtarget/internal/storage/sqldb"
)

// dialect implements sqldb.Dialect for github.com/go-sql-driver/mysql.
type dialect struct {
	mysqlddl.Dialect
}

var _ sqldb.Dialect = dialect{}

func (dialect) DriverName() string { return "mysql" }

func (dialect) TableExistsQuery(schema, table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables
 WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?`, []any{schema, table}
}

func (dialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT column_name, data_type, CASE WHEN is_nullable = 'YES' THEN 1 ELSE 0 END
  FROM information_schema.columns
 WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?
 ORDER BY ordinal_position`, []any{schema, table}
}

// DropTableSQL accepts CASCADE for portability; MySQL ignores it.
func (d dialect) DropTableSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn) + " CASCADE"
}

func (d dialect) AddColumnSQL(fqn string, c gddl.ColumnDef) (string, error) {
	return gddl.BuildAddColumnSQL(d, fqn, c)
}

func (d dialect) RenameColumnSQL(fqn, from, to string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteFQN(fqn), d.QuoteIdent(from), d.QuoteIdent(to))}
}

// InsertSQL renders INSERT, INSERT IGNORE, or INSERT ... ON DUPLICATE KEY
// UPDATE for the three modes.
func (d dialect) InsertSQL(st storage.Statement) (string, error) {
	verb := "INSERT INTO"
	if st.Mode == storage.ModeSkip {
		verb = "INSERT IGNORE INTO"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) VALUES (%s)",
		verb,
		d.QuoteFQN(st.Table),
		sqldb.QuoteList(d, st.Names()),
		sqldb.Placeholders(len(st.Columns), sqldb.Question))

	if st.Mode == storage.ModeUpsert {
		upd := st.UpdateColumns()
		if len(upd) == 0 {
			// Nothing to overwrite: a self-assignment keeps the key row.
			upd = st.Keys[:1]
		}
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s",
			sqldb.Assignments(d, upd, func(q string) string { return "VALUES(" + q + ")" }))
	}
	return b.String(), nil
}

func (dialect) SupportsTemporary() bool { return true }

func (dialect) ErrorPayload(err error) (string, string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return strconv.Itoa(int(me.Number)), me.Message, true
	}
	return "", "", false
}
