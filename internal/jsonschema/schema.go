// Package jsonschema models the subset of JSON Schema that the target needs
// to plan tables and conform records: an ordered list of properties, each
// carrying the set of JSON types it admits plus the facets relevant to those
// types.
//
// Schemas are parsed and validated once, when a SCHEMA message arrives.
// Downstream code (type mapping, conforming) works on typed Field values and
// never inspects raw JSON again.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is one JSON Schema primitive type name.
type Type string

const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeNull    Type = "null"
)

// valid reports whether t is a known JSON Schema type name.
func (t Type) valid() bool {
	switch t {
	case TypeString, TypeBoolean, TypeInteger, TypeNumber, TypeObject, TypeArray, TypeNull:
		return true
	}
	return false
}

// StringFacets are the keywords that only apply to string-typed fields.
type StringFacets struct {
	Format           string
	ContentEncoding  string
	ContentMediaType string
	MaxLength        *int
}

// Bounds are the numeric range keywords. Values keep their JSON literal so
// that the exact decimal rendering survives parsing.
type Bounds struct {
	Minimum *json.Number
	Maximum *json.Number
}

// Field is one entry of a schema's properties object.
type Field struct {
	Name   string
	Types  []Type
	String StringFacets
	Bounds Bounds
}

// Has reports whether t is among the field's admitted types.
func (f Field) Has(t Type) bool {
	for _, ft := range f.Types {
		if ft == t {
			return true
		}
	}
	return false
}

// Nullable reports whether the field admits null explicitly.
func (f Field) Nullable() bool { return f.Has(TypeNull) }

// Schema is a parsed stream schema. Properties are kept in declaration order.
type Schema struct {
	Properties []Field

	// Fingerprint identifies the raw schema document; two SCHEMA messages
	// with identical bytes share a fingerprint.
	Fingerprint uint64

	index map[string]int
}

// Len returns the number of declared properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Properties)
}

// Lookup returns the property with the given name. An exact match wins;
// otherwise names are compared case-insensitively so that lookups keep
// working after record keys have been lower-cased.
func (s *Schema) Lookup(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	if i, ok := s.index[name]; ok {
		return s.Properties[i], true
	}
	if i, ok := s.index[strings.ToLower(name)]; ok {
		return s.Properties[i], true
	}
	return Field{}, false
}

// SchemaError reports a schema that cannot be used to plan or load a table.
// It is fatal for the stream it belongs to, not for the process.
type SchemaError struct {
	Stream string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Stream != "" {
		fmt.Fprintf(&b, " stream=%q", e.Stream)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}
