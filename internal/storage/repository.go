// Package storage defines the backend-agnostic contract the load sink writes
// through, plus a small registry that maps a storage kind ("postgres",
// "sqlite", "mysql", "mssql") to a backend constructor.
//
// Backends register themselves from init(); callers import
// pgtarget/internal/storage/all for the side effect and then call New.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pgtarget/internal/ddl"
)

// Column is a live column as reported by the database catalog.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// Repository is the persistence boundary of the loader.
type Repository interface {
	// TableExists reports whether fqn names an existing table.
	TableExists(ctx context.Context, fqn string) (bool, error)
	// CreateTable issues CREATE TABLE for td.
	CreateTable(ctx context.Context, td ddl.TableDef) error
	// DropTable drops fqn if it exists, cascading where the backend can.
	DropTable(ctx context.Context, fqn string) error
	// Columns returns the live columns of fqn in ordinal order.
	Columns(ctx context.Context, fqn string) ([]Column, error)
	AddColumn(ctx context.Context, fqn string, c ddl.ColumnDef) error
	RenameColumn(ctx context.Context, fqn, from, to string) error
	// PrepareWrite validates st and renders its SQL once. The returned
	// Statement is reused for every Write against the same table.
	PrepareWrite(st Statement) (Statement, error)
	// Write stores rows inside one transaction and returns the row count
	// reported by the engine. Failures are returned as *ExecError.
	Write(ctx context.Context, st Statement, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config carries what a backend needs to open its connection pool.
type Config struct {
	Kind     string
	DSN      string
	MaxConns int32
	MinConns int32
	Logger   *zap.Logger
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
