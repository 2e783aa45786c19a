// Package sqldb is the database/sql engine shared by the SQLite, MySQL and
// SQL Server backends. Each backend supplies a Dialect; the engine owns
// transactions, statement preparation and error wrapping.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pgtarget/internal/ddl"
	"pgtarget/internal/storage"
)

// Dialect is the per-backend SQL surface.
type Dialect interface {
	ddl.Dialect

	// DriverName is the database/sql driver name.
	DriverName() string
	// TableExistsQuery returns a query yielding one row with a count.
	TableExistsQuery(schema, table string) (string, []any)
	// ColumnsQuery returns a query yielding (name, type, nullable) rows in
	// ordinal order, where nullable is 1 or 0.
	ColumnsQuery(schema, table string) (string, []any)
	DropTableSQL(fqn string) string
	AddColumnSQL(fqn string, c ddl.ColumnDef) (string, error)
	// RenameColumnSQL may return several statements, run in order.
	RenameColumnSQL(fqn, from, to string) []string
	// InsertSQL renders the write statement for st, or wraps
	// storage.ErrUnsupportedOperation when the mode is not available.
	InsertSQL(st storage.Statement) (string, error)
	SupportsTemporary() bool
	// ErrorPayload extracts the driver code and message from err.
	ErrorPayload(err error) (code, detail string, ok bool)
}

// BulkInserter is implemented by dialects with a native bulk-load path for
// plain inserts.
type BulkInserter interface {
	BulkInsert(ctx context.Context, tx *sql.Tx, st storage.Statement, rows [][]any) (int64, error)
}

// Pool holds database/sql pool sizing.
type Pool struct {
	MaxConns int32
	MinConns int32
}

// Repository implements storage.Repository over database/sql.
type Repository struct {
	db  *sql.DB
	d   Dialect
	log *zap.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open opens and pings a pool for d and returns a Repository plus a Close
// function for cleanup.
func Open(ctx context.Context, d Dialect, dsn string, pool Pool, log *zap.Logger) (*Repository, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("%s: DSN must not be empty", d.DriverName())
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: open: %w", d.DriverName(), err)
	}
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(int(pool.MaxConns))
	}
	if pool.MinConns > 0 {
		db.SetMaxIdleConns(int(pool.MinConns))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s: ping: %w", d.DriverName(), err)
	}
	r := New(db, d, log)
	return r, func() { _ = db.Close() }, nil
}

// New wraps an open *sql.DB.
func New(db *sql.DB, d Dialect, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, d: d, log: log}
}

// DB exposes the underlying pool.
func (r *Repository) DB() *sql.DB { return r.db }

// TableExists implements storage.Repository.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	schema, table := storage.SplitFQN(fqn)
	q, args := r.d.TableExistsQuery(schema, table)
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, r.execError("table exists", fqn, 0, err)
	}
	return n > 0, nil
}

// CreateTable implements storage.Repository.
func (r *Repository) CreateTable(ctx context.Context, td ddl.TableDef) error {
	if td.Temporary && !r.d.SupportsTemporary() {
		return fmt.Errorf("%s: create temporary table %s: %w", r.d.DriverName(), td.FQN, storage.ErrUnsupportedOperation)
	}
	q, err := ddl.BuildCreateTableSQL(r.d, td)
	if err != nil {
		return err
	}
	r.log.Info("creating table", zap.String("table", td.FQN), zap.String("sql", q))
	return r.exec(ctx, "create table", td.FQN, q)
}

// DropTable implements storage.Repository.
func (r *Repository) DropTable(ctx context.Context, fqn string) error {
	return r.exec(ctx, "drop table", fqn, r.d.DropTableSQL(fqn))
}

// Columns implements storage.Repository.
func (r *Repository) Columns(ctx context.Context, fqn string) ([]storage.Column, error) {
	schema, table := storage.SplitFQN(fqn)
	q, args := r.d.ColumnsQuery(schema, table)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, r.execError("columns", fqn, 0, err)
	}
	defer rows.Close()

	var out []storage.Column
	for rows.Next() {
		var (
			c        storage.Column
			nullable int
		)
		if err := rows.Scan(&c.Name, &c.DataType, &nullable); err != nil {
			return nil, r.execError("columns", fqn, 0, err)
		}
		c.Nullable = nullable != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.execError("columns", fqn, 0, err)
	}
	return out, nil
}

// AddColumn implements storage.Repository.
func (r *Repository) AddColumn(ctx context.Context, fqn string, c ddl.ColumnDef) error {
	q, err := r.d.AddColumnSQL(fqn, c)
	if err != nil {
		return err
	}
	r.log.Info("adding column", zap.String("table", fqn), zap.String("column", c.Name))
	return r.exec(ctx, "add column", fqn, q)
}

// RenameColumn implements storage.Repository.
func (r *Repository) RenameColumn(ctx context.Context, fqn, from, to string) error {
	r.log.Info("renaming column", zap.String("table", fqn), zap.String("from", from), zap.String("to", to))
	for _, q := range r.d.RenameColumnSQL(fqn, from, to) {
		if err := r.exec(ctx, "rename column", fqn, q); err != nil {
			return err
		}
	}
	return nil
}

// PrepareWrite implements storage.Repository.
func (r *Repository) PrepareWrite(st storage.Statement) (storage.Statement, error) {
	if err := st.Validate(); err != nil {
		return st, err
	}
	q, err := r.d.InsertSQL(st)
	if err != nil {
		return st, err
	}
	st.SQL = q
	return st, nil
}

// Write implements storage.Repository. Rows are executed one by one through
// a prepared statement inside a single transaction unless the dialect has a
// bulk path for plain inserts.
func (r *Repository) Write(ctx context.Context, st storage.Statement, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if st.SQL == "" {
		return 0, fmt.Errorf("%s: write %s: statement not prepared", r.d.DriverName(), st.Table)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, r.execError("begin", st.Table, len(rows), err)
	}
	rollback := func() { _ = tx.Rollback() }

	var n int64
	if b, ok := r.d.(BulkInserter); ok && st.Mode == storage.ModeInsert {
		n, err = b.BulkInsert(ctx, tx, st, rows)
	} else {
		n, err = execRows(ctx, tx, st, rows)
	}
	if err != nil {
		rollback()
		return 0, r.execError("write", st.Table, len(rows), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, r.execError("commit", st.Table, len(rows), err)
	}
	return n, nil
}

func execRows(ctx context.Context, tx *sql.Tx, st storage.Statement, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, st.SQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if len(row) != len(st.Columns) {
			return 0, fmt.Errorf("row %d: length %d != columns length %d", i, len(row), len(st.Columns))
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += affected
		}
	}
	return n, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, q string) error {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("%s: exec: %w", r.d.DriverName(), err)
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

func (r *Repository) exec(ctx context.Context, op, fqn, q string) error {
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return r.execError(op, fqn, 0, err)
	}
	return nil
}

func (r *Repository) execError(op, table string, rows int, err error) error {
	ee := &storage.ExecError{Op: op, Table: table, Rows: rows, Err: err}
	if code, detail, ok := r.d.ErrorPayload(err); ok {
		ee.Code, ee.Detail = code, detail
	}
	return ee
}
