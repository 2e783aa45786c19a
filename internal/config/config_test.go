package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// TestLoad_YAML verifies that file values are read and unset keys take
// their defaults.
func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "target.yaml", `
dialect: mysql
host: db.internal
port: 3307
user: loader
database: warehouse
url_query:
  charset: utf8mb4
load_method: upsert
batch:
  initial_size: 200
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, map[string]string{"charset": "utf8mb4"}, cfg.URLQuery)
	assert.Equal(t, "upsert", cfg.LoadMethod)
	assert.Equal(t, "fail", cfg.OnConflict)
	assert.Equal(t, 200, cfg.Batch.InitialSize)
	assert.Equal(t, 1.0, cfg.Batch.TargetSeconds)
	assert.Equal(t, int32(4), cfg.Pool.MaxConns)
	assert.Equal(t, "jsonl", cfg.BatchConfig.Encoding.Format)
	assert.Equal(t, "pgtarget", cfg.Metrics.Job)
}

// TestLoad_JSONWithEnvOverride verifies that the environment wins over the
// file.
func TestLoad_JSONWithEnvOverride(t *testing.T) {
	t.Setenv("PGTARGET_DEFAULT_TARGET_SCHEMA", "staging")
	t.Setenv("PGTARGET_BATCH_MAX_AGE_SECONDS", "30")

	p := writeFile(t, "target.json", `{"dialect":"postgresql","database":"wh","default_target_schema":"raw"}`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.DefaultTargetSchema)
	assert.Equal(t, 30.0, cfg.Batch.MaxAgeSeconds)
	assert.Equal(t, "wh", cfg.Database)
}

// TestLoad_EnvOnly verifies loading without a file.
func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("PGTARGET_DIALECT", "sqlite")
	t.Setenv("PGTARGET_DATABASE", "/tmp/out.db")
	t.Setenv("PGTARGET_URL_QUERY", "_pragma:busy_timeout(5000)")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StorageKind())
	assert.Equal(t, "/tmp/out.db", cfg.Database)
	assert.Equal(t, "busy_timeout(5000)", cfg.URLQuery["_pragma"])
}

// TestLoad_MissingFile verifies the error for an unreadable path.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// TestStorageKind verifies the dialect to storage kind mapping.
func TestStorageKind(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgresql": "postgres",
		"postgres":   "postgres",
		"PostgreSQL": "postgres",
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
		"mysql":      "mysql",
		"mssql":      "mssql",
		"oracle":     "oracle",
	}
	for in, want := range tests {
		assert.Equal(t, want, Target{Dialect: in}.StorageKind(), in)
	}
}

// TestSettings verifies that nested keys are flattened and tags surface.
func TestSettings(t *testing.T) {
	t.Parallel()

	byName := map[string]Setting{}
	for _, s := range Settings() {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "batch.initial_size")
	assert.Equal(t, "integer", byName["batch.initial_size"].Type)
	assert.Equal(t, "5000", byName["batch.initial_size"].Default)
	assert.Equal(t, "PGTARGET_BATCH_INITIAL_SIZE", byName["batch.initial_size"].Env)

	require.Contains(t, byName, "batch_config.storage.s3.path_style")
	assert.Equal(t, "boolean", byName["batch_config.storage.s3.path_style"].Type)
	assert.Equal(t, "object", byName["url_query"].Type)
	assert.NotContains(t, byName, "batch")
}
