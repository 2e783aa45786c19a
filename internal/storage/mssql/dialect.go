package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
	msddl "pgtarget/internal/storage/mssql/ddl"
	"pgtarget/internal/storage/sqldb"
)

// dialect implements sqldb.Dialect and sqldb.BulkInserter for SQL Server.
type dialect struct {
	msddl.Dialect
}

var (
	_ sqldb.Dialect      = dialect{}
	_ sqldb.BulkInserter = dialect{}
)

func (dialect) DriverName() string { return "sqlserver" }

func (dialect) TableExistsQuery(schema, table string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
 WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME()) AND TABLE_NAME = @p2`, []any{schema, table}
}

func (dialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END
  FROM INFORMATION_SCHEMA.COLUMNS
 WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME()) AND TABLE_NAME = @p2
 ORDER BY ORDINAL_POSITION`, []any{schema, table}
}

// DropTableSQL has no CASCADE: SQL Server refuses to drop a table that is
// still referenced by a foreign key.
func (d dialect) DropTableSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
}

// AddColumnSQL renders T-SQL's "ALTER TABLE t ADD col TYPE NULL".
func (d dialect) AddColumnSQL(fqn string, c gddl.ColumnDef) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" || c.Type.Kind == 0 {
		return "", fmt.Errorf("mssql ddl: column %q needs a name and a type", c.Name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s NULL;", d.QuoteFQN(fqn), d.QuoteIdent(name), d.TypeSQL(c.Type)), nil
}

func (d dialect) RenameColumnSQL(fqn, from, to string) []string {
	lit := func(s string) string { return "N'" + strings.ReplaceAll(s, "'", "''") + "'" }
	return []string{fmt.Sprintf("EXEC sp_rename %s, %s, N'COLUMN'", lit(fqn+"."+from), lit(to))}
}

// InsertSQL renders the bulk-copy statement. SQL Server has no single-row
// ON CONFLICT form; skip and upsert would need MERGE and are not offered.
func (d dialect) InsertSQL(st storage.Statement) (string, error) {
	if st.Mode != storage.ModeInsert {
		return "", fmt.Errorf("mssql: %s into %s: %w", st.Mode, st.Table, storage.ErrUnsupportedOperation)
	}
	return mssql.CopyIn(d.QuoteFQN(st.Table), mssql.BulkOptions{}, st.Names()...), nil
}

// BulkInsert streams rows through the TDS bulk-copy protocol.
func (dialect) BulkInsert(ctx context.Context, tx *sql.Tx, st storage.Statement, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, st.SQL)
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	return res.RowsAffected()
}

func (dialect) SupportsTemporary() bool { return false }

func (dialect) ErrorPayload(err error) (string, string, bool) {
	var me mssql.Error
	if errors.As(err, &me) {
		return strconv.Itoa(int(me.Number)), me.Message, true
	}
	return "", "", false
}
