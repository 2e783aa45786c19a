package sqldb

import (
	"strings"

	"pgtarget/internal/ddl"
)

// QuoteList quotes and comma-joins names.
func QuoteList(d ddl.Dialect, names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.QuoteIdent(n)
	}
	return strings.Join(out, ", ")
}

// Placeholders renders n bind parameters using ph, which receives 1-based
// positions.
func Placeholders(n int, ph func(i int) string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = ph(i + 1)
	}
	return strings.Join(out, ", ")
}

// Question is the "?" placeholder style.
func Question(int) string { return "?" }

// Assignments renders "c = <expr(c)>" pairs for an UPDATE clause.
func Assignments(d ddl.Dialect, names []string, expr func(quoted string) string) string {
	out := make([]string, len(names))
	for i, n := range names {
		q := d.QuoteIdent(n)
		out[i] = q + " = " + expr(q)
	}
	return strings.Join(out, ", ")
}
