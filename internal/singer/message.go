// Package singer reads and writes Singer messages: one JSON object per line,
// discriminated by its "type" field.
package singer

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the message discriminator.
type Type string

const (
	TypeSchema          Type = "SCHEMA"
	TypeRecord          Type = "RECORD"
	TypeState           Type = "STATE"
	TypeBatch           Type = "BATCH"
	TypeActivateVersion Type = "ACTIVATE_VERSION"
)

// Encoding describes how the files of a BATCH message are stored.
type Encoding struct {
	Format      string `json:"format"`
	Compression string `json:"compression,omitempty"`
}

// Message is a decoded Singer message. Which fields are set depends on Type.
type Message struct {
	Type   Type   `json:"type"`
	Stream string `json:"stream,omitempty"`

	// SCHEMA
	Schema             json.RawMessage `json:"schema,omitempty"`
	KeyProperties      []string        `json:"key_properties,omitempty"`
	BookmarkProperties []string        `json:"bookmark_properties,omitempty"`

	// RECORD. Numbers are kept as json.Number.
	Record        map[string]any `json:"record,omitempty"`
	TimeExtracted *time.Time     `json:"time_extracted,omitempty"`

	// RECORD and ACTIVATE_VERSION
	Version *int64 `json:"version,omitempty"`

	// STATE
	Value json.RawMessage `json:"value,omitempty"`

	// BATCH
	Encoding Encoding `json:"encoding,omitempty"`
	Manifest []string `json:"manifest,omitempty"`
}

// validate checks the fields each message type requires.
func (m *Message) validate() error {
	switch m.Type {
	case TypeSchema:
		if m.Stream == "" || len(m.Schema) == 0 {
			return fmt.Errorf("SCHEMA message needs stream and schema")
		}
	case TypeRecord:
		if m.Stream == "" || m.Record == nil {
			return fmt.Errorf("RECORD message needs stream and record")
		}
	case TypeState:
		if len(m.Value) == 0 {
			return fmt.Errorf("STATE message needs value")
		}
	case TypeBatch:
		if m.Stream == "" || len(m.Manifest) == 0 {
			return fmt.Errorf("BATCH message needs stream and manifest")
		}
	case TypeActivateVersion:
		if m.Stream == "" || m.Version == nil {
			return fmt.Errorf("ACTIVATE_VERSION message needs stream and version")
		}
	default:
		return &UnknownTypeError{Type: m.Type}
	}
	return nil
}

// UnknownTypeError reports a message whose type this reader does not handle.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", string(e.Type))
}

// MessageError wraps a decode or validation failure with its input line.
type MessageError struct {
	Line int
	Err  error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("singer: line %d: %v", e.Line, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }
