// Package mysql implements a MySQL-backed storage.Repository on the shared
// database/sql engine and github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"pgtarget/internal/storage/sqldb"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
	Logger   *zap.Logger
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NormalizeDSN parses dsn and turns on parseTime so DATETIME columns scan
// into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	r, closeFn, err := sqldb.Open(ctx, dialect{}, dsn, sqldb.Pool{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns}, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}
