package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// fieldDoc is the wire shape of one property fragment. Numeric keywords are
// decoded as json.Number so their literal text is preserved.
type fieldDoc struct {
	Type             json.RawMessage   `json:"type"`
	Format           string            `json:"format"`
	ContentEncoding  string            `json:"contentEncoding"`
	ContentMediaType string            `json:"contentMediaType"`
	MaxLength        *json.Number      `json:"maxLength"`
	Minimum          *json.Number      `json:"minimum"`
	Maximum          *json.Number      `json:"maximum"`
	AnyOf            []json.RawMessage `json:"anyOf"`
}

// Parse decodes a JSON Schema document. Property order is taken from the
// document itself, not from Go map iteration.
//
// A document without properties parses successfully into an empty Schema;
// rejecting it is the table planner's job.
func Parse(raw []byte) (*Schema, error) {
	var doc struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("decode schema: %v", err)}
	}

	s := &Schema{
		Fingerprint: xxh3.Hash(raw),
		index:       map[string]int{},
	}

	props := bytes.TrimSpace(doc.Properties)
	if len(props) == 0 || bytes.Equal(props, []byte("null")) {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(props))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("decode properties: %v", err)}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &SchemaError{Reason: "properties must be an object"}
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("decode properties: %v", err)}
		}
		name, _ := tok.(string)

		var frag json.RawMessage
		if err := dec.Decode(&frag); err != nil {
			return nil, &SchemaError{Field: name, Reason: fmt.Sprintf("decode property: %v", err)}
		}
		if _, dup := s.index[name]; dup {
			return nil, &SchemaError{Field: name, Reason: "duplicate property"}
		}

		f, err := parseField(name, frag)
		if err != nil {
			return nil, err
		}
		s.index[name] = len(s.Properties)
		s.Properties = append(s.Properties, f)
	}

	for i, f := range s.Properties {
		lower := strings.ToLower(f.Name)
		if _, ok := s.index[lower]; !ok {
			s.index[lower] = i
		}
	}
	return s, nil
}

func parseField(name string, frag json.RawMessage) (Field, error) {
	f := Field{Name: name}

	trimmed := bytes.TrimSpace(frag)
	switch {
	case bytes.Equal(trimmed, []byte("true")), bytes.Equal(trimmed, []byte("false")):
		// Boolean schemas carry no type information.
		return f, nil
	case len(trimmed) == 0 || trimmed[0] != '{':
		return Field{}, &SchemaError{Field: name, Reason: "property schema must be an object"}
	}

	var doc fieldDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Field{}, &SchemaError{Field: name, Reason: err.Error()}
	}

	types, err := parseTypes(doc.Type)
	if err != nil {
		return Field{}, &SchemaError{Field: name, Reason: err.Error()}
	}
	f.Types = types
	f.String = StringFacets{
		Format:           doc.Format,
		ContentEncoding:  doc.ContentEncoding,
		ContentMediaType: doc.ContentMediaType,
	}
	if doc.MaxLength != nil {
		n, err := doc.MaxLength.Int64()
		if err != nil || n < 0 {
			return Field{}, &SchemaError{Field: name, Reason: fmt.Sprintf("maxLength must be a non-negative integer, got %s", doc.MaxLength.String())}
		}
		l := int(n)
		f.String.MaxLength = &l
	}
	f.Bounds = Bounds{Minimum: doc.Minimum, Maximum: doc.Maximum}

	for _, sub := range doc.AnyOf {
		alt, err := parseField(name, sub)
		if err != nil {
			return Field{}, err
		}
		f = merge(f, alt)
	}
	return f, nil
}

// parseTypes accepts "type": "x", "type": ["x", "y"], or no type at all.
func parseTypes(raw json.RawMessage) ([]Type, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var names []string
	switch raw[0] {
	case '"':
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		names = []string{one}
	case '[':
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("type must be a string or an array of strings")
		}
	default:
		return nil, fmt.Errorf("type must be a string or an array of strings")
	}

	out := make([]Type, 0, len(names))
	for _, n := range names {
		t := Type(n)
		if !t.valid() {
			return nil, fmt.Errorf("unknown type %q", n)
		}
		if !contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// merge folds an anyOf alternative into f. Types are appended in order;
// facets already set on f are kept.
func merge(f, alt Field) Field {
	for _, t := range alt.Types {
		if !contains(f.Types, t) {
			f.Types = append(f.Types, t)
		}
	}
	if f.String.Format == "" {
		f.String.Format = alt.String.Format
	}
	if f.String.ContentEncoding == "" {
		f.String.ContentEncoding = alt.String.ContentEncoding
	}
	if f.String.ContentMediaType == "" {
		f.String.ContentMediaType = alt.String.ContentMediaType
	}
	if f.String.MaxLength == nil {
		f.String.MaxLength = alt.String.MaxLength
	}
	if f.Bounds.Minimum == nil {
		f.Bounds.Minimum = alt.Bounds.Minimum
	}
	if f.Bounds.Maximum == nil {
		f.Bounds.Maximum = alt.Bounds.Maximum
	}
	return f
}

func contains(ts []Type, t Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}
