package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedOperation is returned when a backend cannot perform a
// requested operation, such as a temporary table on Postgres or an upsert
// on SQL Server.
var ErrUnsupportedOperation = errors.New("storage: unsupported operation")

// ExecError is a failed write or DDL statement, enriched with whatever the
// driver reported.
type ExecError struct {
	Op     string
	Table  string
	Rows   int
	Code   string
	Detail string
	Err    error
}

func (e *ExecError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storage: %s %s", e.Op, e.Table)
	if e.Rows > 0 {
		fmt.Fprintf(&b, " (%d rows)", e.Rows)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error { return e.Err }
