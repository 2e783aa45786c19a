// Package mssql implements a Microsoft SQL Server repository on the shared
// database/sql engine. Plain inserts use the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"fmt"

	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"pgtarget/internal/storage/sqldb"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
	Logger   *zap.Logger
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	r, closeFn, err := sqldb.Open(ctx, dialect{}, cfg.DSN, sqldb.Pool{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns}, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}
