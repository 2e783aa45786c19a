package singer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"pgtarget/internal/codec"
)

// Reader decodes one message per line. Blank lines are skipped. Lines may be
// arbitrarily long.
type Reader struct {
	r     *bufio.Reader
	codec codec.Codec
	line  int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, c codec.Codec) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<20), codec: c}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int { return r.line }

// Next returns the next message. It returns io.EOF at end of input and a
// *MessageError for a line that cannot be decoded; the caller may keep
// reading after a MessageError.
func (r *Reader) Next() (Message, error) {
	for {
		raw, err := r.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return Message{}, io.EOF
			}
			return Message{}, fmt.Errorf("singer: read: %w", err)
		}
		r.line++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			if err != nil {
				return Message{}, io.EOF
			}
			continue
		}

		var m Message
		if derr := r.codec.Decode(raw, &m); derr != nil {
			return Message{}, &MessageError{Line: r.line, Err: derr}
		}
		if verr := m.validate(); verr != nil {
			return m, &MessageError{Line: r.line, Err: verr}
		}
		return m, nil
	}
}

// Writer emits messages, one per line. The target only writes STATE.
type Writer struct {
	w     *bufio.Writer
	codec codec.Codec
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer, c codec.Codec) *Writer {
	return &Writer{w: bufio.NewWriter(w), codec: c}
}

// WriteState writes value as a bare JSON line and flushes, the form
// orchestrators expect from a target.
func (w *Writer) WriteState(value []byte) error {
	var v any
	if err := w.codec.Decode(value, &v); err != nil {
		return fmt.Errorf("singer: state value: %w", err)
	}
	b, err := w.codec.Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}
