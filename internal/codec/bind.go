package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pgtarget/internal/ddl"
)

// BindError reports a value that cannot be stored in a column of the
// planned type.
type BindError struct {
	Type  ddl.ColumnType
	Value any
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("codec: cannot bind %T to %s: %v", e.Value, e.Type, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

var timeLayouts = []string{
	"15:04:05.999999999",
	"15:04:05.999999999Z07:00",
	"15:04",
}

// Bind converts a decoded JSON value into the Go value a driver expects for
// a column of type t:
//
//	integers          int64 (range checked for SMALLINT and INTEGER)
//	FLOAT, REAL       float64
//	NUMERIC, MONEY    string holding the exact decimal, without exponent
//	BOOLEAN           bool
//	DATE, TIMESTAMP   time.Time in UTC
//	TIME              string "15:04:05.999999"
//	UUID              canonical lower-case string
//	BINARY            []byte
//	JSON              string holding the encoded document
//	VARCHAR, TEXT     string (objects and arrays are JSON-encoded)
//
// nil stays nil.
func (c Codec) Bind(t ddl.ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := c.bind(t, v)
	if err != nil {
		return nil, &BindError{Type: t, Value: v, Err: err}
	}
	return out, nil
}

func (c Codec) bind(t ddl.ColumnType, v any) (any, error) {
	switch t.Kind {
	case ddl.KindSmallInt:
		return bindInt(v, math.MinInt16, math.MaxInt16)
	case ddl.KindInteger:
		return bindInt(v, math.MinInt32, math.MaxInt32)
	case ddl.KindBigInt:
		return bindInt(v, math.MinInt64, math.MaxInt64)
	case ddl.KindFloat, ddl.KindReal:
		return bindFloat(v)
	case ddl.KindNumeric, ddl.KindMoney:
		return bindDecimal(v)
	case ddl.KindBoolean:
		return bindBool(v)
	case ddl.KindTimestamp:
		ts, err := parseTimestamp(v)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	case ddl.KindDate:
		ts, err := parseTimestamp(v)
		if err != nil {
			return nil, err
		}
		// the calendar day as written, not as seen from UTC
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case ddl.KindTime:
		return bindTime(v)
	case ddl.KindUUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("uuid must be a string")
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case ddl.KindBinary:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return nil, fmt.Errorf("binary value must be bytes")
	case ddl.KindJSON:
		b, err := c.Encode(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return c.bindText(v)
	}
}

func (c Codec) bindText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case map[string]any, []any:
		b, err := c.Encode(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}

func bindInt(v any, lo, hi int64) (any, error) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			r, ok := new(big.Rat).SetString(x.String())
			if !ok || !r.IsInt() || !r.Num().IsInt64() {
				return nil, fmt.Errorf("%s is not an integer", x)
			}
			i = r.Num().Int64()
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, err
		}
		n = i
	case int64:
		n = x
	case int:
		n = int64(x)
	case bool:
		if x {
			n = 1
		}
	default:
		return nil, fmt.Errorf("not an integer")
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func bindFloat(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}
	return nil, fmt.Errorf("not a number")
}

func bindDecimal(v any) (any, error) {
	var lit string
	switch x := v.(type) {
	case json.Number:
		lit = x.String()
	case string:
		lit = strings.TrimSpace(x)
	case float64:
		lit = strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		lit = strconv.FormatInt(x, 10)
	default:
		return nil, fmt.Errorf("not a number")
	}
	return PlainDecimal(lit)
}

var decimalLiteral = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?\d+))?$`)

// maxDecimalExponent bounds the exponent of a literal PlainDecimal expands.
const maxDecimalExponent = 16383

// PlainDecimal rewrites a decimal literal, possibly in exponent form, as
// plain digits with an optional point: "1.5E+3" becomes "1500" and "25e-4"
// becomes "0.0025". Digits after the point are kept, so "1.50e1" keeps its
// scale as "15.0". Anything other than a base-10 literal is an error.
func PlainDecimal(lit string) (string, error) {
	m := decimalLiteral.FindStringSubmatch(lit)
	if m == nil || m[2]+m[3] == "" {
		return "", fmt.Errorf("%q is not a decimal", lit)
	}
	sign, whole, frac := m[1], m[2], m[3]
	if sign == "+" {
		sign = ""
	}
	exp := 0
	if m[4] != "" {
		e, err := strconv.Atoi(m[4])
		if err != nil || e > maxDecimalExponent || e < -maxDecimalExponent {
			return "", fmt.Errorf("%q: exponent out of range", lit)
		}
		exp = e
	}

	digits := whole + frac
	point := len(whole) + exp
	switch {
	case point <= 0:
		whole, frac = "0", strings.Repeat("0", -point)+digits
	case point >= len(digits):
		whole, frac = digits+strings.Repeat("0", point-len(digits)), ""
	default:
		whole, frac = digits[:point], digits[point:]
	}
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	if frac == "" {
		return sign + whole, nil
	}
	return sign + whole + "." + frac, nil
}

func bindBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	case json.Number:
		switch x.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	}
	return nil, fmt.Errorf("not a boolean")
}

// parseTimestamp keeps the zone the value was written in; values without
// one are UTC.
func parseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if len(s) == len("2006-01-02") {
			if d, err := time.Parse("2006-01-02", s); err == nil {
				return d, nil
			}
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%q is not an ISO 8601 timestamp", s)
	}
	return time.Time{}, fmt.Errorf("timestamp must be a string")
}

func bindTime(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("time must be a string")
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05.999999"), nil
		}
	}
	return nil, fmt.Errorf("%q is not a time of day", s)
}
