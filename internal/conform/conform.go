// Package conform prepares decoded records for storage.
//
// A Conformer strips NUL characters from string values, decodes base64
// payloads for fields declared with contentEncoding "base64", and lower-cases
// property names so records line up with the planned columns. Conform never
// mutates its input.
package conform

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"pgtarget/internal/codec"
	"pgtarget/internal/jsonschema"
)

// ConformError names the field a record could not be conformed on.
type ConformError struct {
	Field string
	Err   error
}

func (e *ConformError) Error() string {
	return fmt.Sprintf("conform: field %q: %v", e.Field, e.Err)
}

func (e *ConformError) Unwrap() error { return e.Err }

// Name returns the column name for a property name. A Caser holds state, so
// each call builds its own; sinks drain concurrently.
func Name(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Conformer is safe for use by one goroutine at a time. Each sink owns one.
type Conformer struct {
	codec codec.Codec
	log   *zap.Logger
	nul   transform.Transformer
}

// New returns a Conformer using c for base64 decoding.
func New(c codec.Codec, log *zap.Logger) *Conformer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conformer{
		codec: c,
		log:   log,
		nul:   runes.Remove(runes.Predicate(func(r rune) bool { return r == 0 })),
	}
}

// Conform returns a conformed copy of rec. Values of properties the schema
// does not declare pass through with their name lower-cased.
func (c *Conformer) Conform(rec map[string]any, s *jsonschema.Schema) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	var stripped []string

	for k, v := range rec {
		name := Name(k)
		str, isString := v.(string)
		if !isString {
			out[name] = v
			continue
		}

		if strings.IndexByte(str, 0) >= 0 {
			clean, _, err := transform.String(c.nul, str)
			if err != nil {
				return nil, &ConformError{Field: k, Err: err}
			}
			str = clean
			stripped = append(stripped, name)
		}

		if f, ok := s.Lookup(k); ok && f.String.ContentEncoding == "base64" {
			b, err := c.codec.DecodeBase64(str)
			if err != nil {
				return nil, &ConformError{Field: k, Err: err}
			}
			out[name] = b
			continue
		}
		out[name] = str
	}

	if len(stripped) > 0 {
		c.log.Warn("removed NUL characters from record values",
			zap.Strings("fields", stripped))
	}
	return out, nil
}
