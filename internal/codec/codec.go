// Package codec holds the JSON and base64 handling shared by the message
// reader, the record conformer and the load sink.
//
// A Codec is a plain value with no state. It is constructed once by the
// caller and handed to the components that need it; nothing in this package
// is global.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Codec decodes and encodes record payloads. Numbers are decoded as
// json.Number so decimal values keep every digit of their literal.
type Codec struct{}

// New returns a Codec.
func New() Codec { return Codec{} }

// Decode unmarshals data into v, keeping numbers as json.Number.
func (Codec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("codec: trailing data after JSON value")
	}
	return nil
}

// DecodeRecord decodes a JSON object.
func (c Codec) DecodeRecord(data []byte) (map[string]any, error) {
	var rec map[string]any
	if err := c.Decode(data, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("codec: record is not a JSON object")
	}
	return rec, nil
}

// Encode marshals v without HTML escaping. time.Time values render as
// RFC 3339 (ISO 8601 with a "T" separator); json.Number values render as
// their literal.
func (Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeBase64 decodes standard base64, with or without padding.
func (Codec) DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
