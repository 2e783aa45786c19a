// Package postgres implements storage.Repository on pgx v5. Plain inserts go
// through COPY; skip-on-conflict and upsert writes are sent as one pgx.Batch
// of INSERT ... ON CONFLICT statements. Every write runs in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
	pgddl "pgtarget/internal/storage/postgres/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string // connection string for pgxpool
	MaxConns int32
	MinConns int32
	Logger   *zap.Logger
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	d    pgddl.Dialect
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{pool: pool, log: log}, func() { pool.Close() }, nil
}

// TableExists implements storage.Repository.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", r.d.QuoteFQN(fqn)).Scan(&exists)
	if err != nil {
		return false, execError("table exists", fqn, 0, err)
	}
	return exists, nil
}

// CreateTable implements storage.Repository. Temporary tables are rejected:
// they would vanish with the pooled connection that created them.
func (r *Repository) CreateTable(ctx context.Context, td gddl.TableDef) error {
	if td.Temporary {
		return fmt.Errorf("postgres: create temporary table %s: %w", td.FQN, storage.ErrUnsupportedOperation)
	}
	sql, err := gddl.BuildCreateTableSQL(r.d, td)
	if err != nil {
		return err
	}
	r.log.Info("creating table", zap.String("table", td.FQN), zap.String("sql", sql))
	return r.exec(ctx, "create table", td.FQN, sql)
}

// DropTable implements storage.Repository.
func (r *Repository) DropTable(ctx context.Context, fqn string) error {
	return r.exec(ctx, "drop table", fqn, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", r.d.QuoteFQN(fqn)))
}

// Columns implements storage.Repository. A table name without a schema is
// looked up in current_schema().
func (r *Repository) Columns(ctx context.Context, fqn string) ([]storage.Column, error) {
	schema, table := storage.SplitFQN(fqn)
	rows, err := r.pool.Query(ctx, `
SELECT column_name, data_type, is_nullable = 'YES'
  FROM information_schema.columns
 WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
   AND table_name = $2
 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, execError("columns", fqn, 0, err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Column, error) {
		var c storage.Column
		err := row.Scan(&c.Name, &c.DataType, &c.Nullable)
		return c, err
	})
	if err != nil {
		return nil, execError("columns", fqn, 0, err)
	}
	return cols, nil
}

// AddColumn implements storage.Repository.
func (r *Repository) AddColumn(ctx context.Context, fqn string, c gddl.ColumnDef) error {
	sql, err := gddl.BuildAddColumnSQL(r.d, fqn, c)
	if err != nil {
		return err
	}
	r.log.Info("adding column", zap.String("table", fqn), zap.String("column", c.Name))
	return r.exec(ctx, "add column", fqn, sql)
}

// RenameColumn implements storage.Repository.
func (r *Repository) RenameColumn(ctx context.Context, fqn, from, to string) error {
	r.log.Info("renaming column", zap.String("table", fqn), zap.String("from", from), zap.String("to", to))
	return r.exec(ctx, "rename column", fqn, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		r.d.QuoteFQN(fqn), r.d.QuoteIdent(from), r.d.QuoteIdent(to)))
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// Close releases the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Repository) exec(ctx context.Context, op, fqn, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return execError(op, fqn, 0, err)
	}
	return nil
}

// execError wraps err as a *storage.ExecError, lifting SQLSTATE and detail
// out of a *pgconn.PgError when there is one.
func execError(op, table string, rows int, err error) error {
	ee := &storage.ExecError{Op: op, Table: table, Rows: rows, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		ee.Code = pgErr.SQLState()
		ee.Detail = pgErr.Detail
		if ee.Detail == "" {
			ee.Detail = pgErr.Hint
		}
	}
	return ee
}
