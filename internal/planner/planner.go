// Package planner turns a stream schema plus its key properties into a table
// definition. It only plans; creating or altering tables is left to the
// storage backend.
package planner

import (
	"fmt"

	"pgtarget/internal/conform"
	"pgtarget/internal/ddl"
	"pgtarget/internal/jsonschema"
	"pgtarget/internal/typemap"
)

// PlanTable maps every property of s to a column, in declaration order.
// Columns named in keys become primary-key columns: NOT NULL and never
// auto-generated.
//
// It fails with a *jsonschema.SchemaError when the schema has no properties.
// Keys that name no declared property are ignored; see UndeclaredKeys.
func PlanTable(fqn string, s *jsonschema.Schema, keys []string, m typemap.Mapper) (ddl.TableDef, error) {
	if s.Len() == 0 {
		return ddl.TableDef{}, &jsonschema.SchemaError{
			Stream: fqn,
			Reason: fmt.Sprintf("schema for %q does not define properties", fqn),
		}
	}

	pk := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if f, ok := s.Lookup(k); ok {
			pk[f.Name] = struct{}{}
		}
	}

	td := ddl.TableDef{FQN: fqn, Columns: make([]ddl.ColumnDef, 0, s.Len())}
	for _, f := range s.Properties {
		_, isKey := pk[f.Name]
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       conform.Name(f.Name),
			Type:       m.MapType(f),
			Nullable:   !isKey,
			PrimaryKey: isKey,
		})
	}
	return td, nil
}

// UndeclaredKeys returns the keys PlanTable leaves out of the primary key
// because the schema does not declare them.
func UndeclaredKeys(s *jsonschema.Schema, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := s.Lookup(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
