// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and modernc.org/sqlite. SQLite has no bulk-load API like
// Postgres COPY; rows are executed through one prepared statement inside a
// transaction, which keeps moderate volumes fast.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"pgtarget/internal/storage/sqldb"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// Open opens a SQLite database. An in-memory DSN gets a single-connection
// pool so every statement sees the same database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if (Config{DSN: dsn}).inMemory() {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// New wraps an open database.
func New(db *sql.DB, log *zap.Logger) *Repository {
	return &Repository{Repository: sqldb.New(db, dialect{}, log)}
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConns > 0 && !cfg.inMemory() {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	// Enable foreign keys by default; ignore error if driver doesn't support it.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return New(db, cfg.Logger), func() { _ = db.Close() }, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
