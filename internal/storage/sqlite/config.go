package sqlite

import "go.uber.org/zap"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:target.db?_pragma=foreign_keys(1)"
	//   ":memory:"
	DSN string

	// MaxConns caps the pool. In-memory databases always use one
	// connection since each connection would otherwise see its own
	// database.
	MaxConns int32

	Logger *zap.Logger
}

func (c Config) inMemory() bool {
	return c.DSN == ":memory:" || containsAny(c.DSN, "mode=memory", ":memory:")
}
