package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDSN verifies the connection string built for each dialect.
func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   Target
		want     string
		contains []string
		wantErr  bool
	}{
		{
			name:   "postgres",
			target: Target{Dialect: "postgresql", Host: "db", User: "u", Password: "secret", Database: "wh", URLQuery: map[string]string{"sslmode": "disable"}},
			want:   "postgres://u:secret@db:5432/wh?sslmode=disable",
		},
		{
			name:   "postgres defaults",
			target: Target{Dialect: "postgresql", Database: "wh"},
			want:   "postgres://localhost:5432/wh",
		},
		{
			name:   "mssql",
			target: Target{Dialect: "mssql", Host: "db", User: "sa", Password: "secret", Database: "wh", URLQuery: map[string]string{"encrypt": "disable"}},
			want:   "sqlserver://sa:secret@db:1433?database=wh&encrypt=disable",
		},
		{
			name:     "mysql",
			target:   Target{Dialect: "mysql", Host: "db", User: "u", Password: "secret", Database: "wh", URLQuery: map[string]string{"charset": "utf8mb4"}},
			contains: []string{"u:secret@tcp(db:3306)/wh", "charset=utf8mb4"},
		},
		{
			name:   "sqlite",
			target: Target{Dialect: "sqlite", Database: "/tmp/x.db"},
			want:   "/tmp/x.db",
		},
		{
			name:   "sqlite with query",
			target: Target{Dialect: "sqlite", Database: "/tmp/x.db", URLQuery: map[string]string{"mode": "rwc"}},
			want:   "file:/tmp/x.db?mode=rwc",
		},
		{
			name:   "explicit dsn wins",
			target: Target{Dialect: "postgresql", Host: "ignored", RawDSN: "postgres://a@b/c"},
			want:   "postgres://a@b/c",
		},
		{name: "sqlite without path", target: Target{Dialect: "sqlite"}, wantErr: true},
		{name: "unknown dialect", target: Target{Dialect: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.target.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, c := range tt.contains {
				assert.Contains(t, got, c)
			}
		})
	}
}

// TestRedact verifies that passwords never survive redaction.
func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"postgres://u:secret@db:5432/wh", "postgres://u:xxxxx@db:5432/wh"},
		{"sqlserver://sa:secret@db:1433?database=wh", "sqlserver://sa:xxxxx@db:1433?database=wh"},
		{"u:secret@tcp(db:3306)/wh", "u:xxxxx@tcp(db:3306)/wh"},
		{"/tmp/x.db", "/tmp/x.db"},
		{"postgres://nopass@db/wh", "postgres://nopass@db/wh"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Redact(tt.in), tt.in)
	}
}
