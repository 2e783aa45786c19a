package batchfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decoder reads newline-delimited JSON objects. Numbers are decoded as
// json.Number so decimals keep their literal.
type Decoder struct {
	dec *json.Decoder
	n   int
}

// NewDecoder returns a Decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d}
}

// Next returns the next object, or io.EOF when the stream is exhausted.
// Any top-level value that is not an object is an error.
func (d *Decoder) Next() (map[string]any, error) {
	var raw any
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("batchfile: jsonl value %d: %w", d.n+1, err)
	}
	d.n++
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("batchfile: jsonl value %d is %T, not an object", d.n, raw)
	}
	return obj, nil
}
