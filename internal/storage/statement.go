package storage

import (
	"fmt"
	"strings"

	"pgtarget/internal/ddl"
)

// Mode selects how a Write treats rows whose key already exists.
type Mode int

const (
	// ModeInsert fails the whole write on a key conflict.
	ModeInsert Mode = iota
	// ModeSkip keeps the existing row.
	ModeSkip
	// ModeUpsert overwrites the non-key columns of the existing row.
	ModeUpsert
)

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "insert"
	case ModeSkip:
		return "skip"
	case ModeUpsert:
		return "upsert"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// StatementColumn is one bound column of a write statement.
type StatementColumn struct {
	Name string
	Type ddl.ColumnType
}

// Statement describes a bulk write against one table. SQL is filled in by
// Repository.PrepareWrite.
type Statement struct {
	Table   string
	Columns []StatementColumn
	Keys    []string
	Mode    Mode
	SQL     string
}

// Names returns the column names in bind order.
func (s Statement) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the parts every backend relies on.
func (s Statement) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("storage: statement table must not be empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("storage: statement for %s has no columns", s.Table)
	}
	if s.Mode == ModeUpsert && len(s.Keys) == 0 {
		return fmt.Errorf("storage: upsert into %s requires key columns", s.Table)
	}
	for _, k := range s.Keys {
		if !s.hasColumn(k) {
			return fmt.Errorf("storage: key %q is not a column of %s", k, s.Table)
		}
	}
	return nil
}

// UpdateColumns returns the non-key columns an upsert overwrites.
func (s Statement) UpdateColumns() []string {
	keys := make(map[string]struct{}, len(s.Keys))
	for _, k := range s.Keys {
		keys[k] = struct{}{}
	}
	var out []string
	for _, c := range s.Columns {
		if _, isKey := keys[c.Name]; !isKey {
			out = append(out, c.Name)
		}
	}
	return out
}

func (s Statement) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// SplitFQN splits "schema.table" into its parts. A name without a dot has
// an empty schema.
func SplitFQN(fqn string) (schema, table string) {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}
