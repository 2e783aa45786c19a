// Package typemap translates JSON Schema property descriptions into SQL
// column types.
//
// Two mappings exist. The minimal mapping only special-cases date-time and
// otherwise defers to DefaultType. The high-definition (HD) mapping
// recognizes formats, content encodings and, for numeric fields, the
// (minimum, maximum) bound pairs that upstream extractors emit for native
// fixed-width types (BIGINT, INT, SMALLINT, TINYINT, MONEY, SMALLMONEY,
// FLOAT, REAL), recovering a narrower column type than plain integer or
// number would give.
package typemap

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pgtarget/internal/ddl"
	"pgtarget/internal/jsonschema"
)

// Bound pairs of the origin system's native numeric types.
var (
	bigintRange   = newFingerprint("-9223372036854775808", "9223372036854775807")
	intRange      = newFingerprint("-2147483648", "2147483647")
	smallintRange = newFingerprint("-32768", "32767")
	tinyintRange  = newFingerprint("0", "255")

	moneyRange      = newFingerprint("-922337203685477.6", "922337203685477.6")
	smallmoneyRange = newFingerprint("-214748.3648", "214748.3647")
	floatRange      = newFingerprint("-1.79e308", "1.79e308")
	realRange       = newFingerprint("-3.40e38", "3.40e38")
)

// Mapper maps schema fields to column types. The zero value uses the
// minimal mapping and discards logs.
type Mapper struct {
	hd  bool
	log *zap.Logger
}

// New returns a Mapper. hd selects the high-definition mapping.
func New(hd bool, log *zap.Logger) Mapper {
	if log == nil {
		log = zap.NewNop()
	}
	return Mapper{hd: hd, log: log}
}

// MapType returns the column type for f. It always returns a usable type.
func (m Mapper) MapType(f jsonschema.Field) ddl.ColumnType {
	var t ddl.ColumnType
	if m.hd {
		t = hdType(f)
	} else {
		t = minimalType(f)
	}
	if m.log != nil {
		m.log.Debug("mapped json schema type",
			zap.String("field", f.Name),
			zap.Any("json_types", f.Types),
			zap.String("format", f.String.Format),
			zap.Stringer("column_type", t),
		)
	}
	return t
}

func minimalType(f jsonschema.Field) ddl.ColumnType {
	if f.String.Format == "date-time" {
		return ddl.Of(ddl.KindTimestamp)
	}
	return DefaultType(f)
}

// DefaultType is the generic mapping used when no specific rule applies.
func DefaultType(f jsonschema.Field) ddl.ColumnType {
	switch {
	case f.Has(jsonschema.TypeString):
		switch f.String.Format {
		case "date-time":
			return ddl.Of(ddl.KindTimestamp)
		case "time":
			return ddl.Of(ddl.KindTime)
		case "date":
			return ddl.Of(ddl.KindDate)
		}
		return ddl.Varchar(maxLength(f))
	case f.Has(jsonschema.TypeInteger):
		return ddl.Of(ddl.KindBigInt)
	case f.Has(jsonschema.TypeNumber):
		return ddl.Numeric(0, 0)
	case f.Has(jsonschema.TypeBoolean):
		return ddl.Of(ddl.KindBoolean)
	case f.Has(jsonschema.TypeObject), f.Has(jsonschema.TypeArray):
		return ddl.Of(ddl.KindJSON)
	}
	return ddl.Varchar(0)
}

func hdType(f jsonschema.Field) ddl.ColumnType {
	switch {
	case f.Has(jsonschema.TypeString):
		return hdString(f)
	case f.Has(jsonschema.TypeBoolean):
		return ddl.Of(ddl.KindBoolean)
	case f.Has(jsonschema.TypeInteger):
		return hdInteger(f)
	case f.Has(jsonschema.TypeNumber):
		return hdNumber(f)
	}
	return DefaultType(f)
}

func hdString(f jsonschema.Field) ddl.ColumnType {
	switch f.String.Format {
	case "date":
		return ddl.Of(ddl.KindDate)
	case "time":
		return ddl.Of(ddl.KindTime)
	case "date-time":
		return ddl.Of(ddl.KindTimestamp)
	case "uuid":
		return ddl.Of(ddl.KindUUID)
	}
	if f.String.ContentMediaType == "application/xml" {
		return ddl.Of(ddl.KindText)
	}
	if f.String.ContentEncoding == "base64" {
		return ddl.Binary(maxLength(f))
	}
	return ddl.Varchar(maxLength(f))
}

func hdInteger(f jsonschema.Field) ddl.ColumnType {
	lo, hi := f.Bounds.Minimum, f.Bounds.Maximum
	switch {
	case bigintRange.matches(lo, hi):
		return ddl.Of(ddl.KindBigInt)
	case intRange.matches(lo, hi):
		return ddl.Of(ddl.KindInteger)
	case smallintRange.matches(lo, hi):
		return ddl.Of(ddl.KindSmallInt)
	case tinyintRange.matches(lo, hi):
		// No unsigned byte type on the target; SMALLINT holds 0..255.
		return ddl.Of(ddl.KindSmallInt)
	}
	return ddl.Numeric(strings.Count(boundString(hi), "9"), 0)
}

func hdNumber(f jsonschema.Field) ddl.ColumnType {
	lo, hi := f.Bounds.Minimum, f.Bounds.Maximum
	switch {
	case moneyRange.matches(lo, hi), smallmoneyRange.matches(lo, hi):
		return ddl.Of(ddl.KindMoney)
	case floatRange.matches(lo, hi):
		return ddl.Of(ddl.KindFloat)
	case realRange.matches(lo, hi):
		return ddl.Of(ddl.KindReal)
	}
	p, s := precisionScale(boundString(hi))
	return ddl.Numeric(p, s)
}

// precisionScale recovers NUMERIC(p, s) from the rendering of a maximum.
//
// Without an exponent, p is the number of nines and s is p minus the offset
// of the decimal point (so "99999.99" gives 7,2). With an exponent, p is the
// exponent and s is the number of digits between the point and the "E".
func precisionScale(s string) (int, int) {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "e+") {
		p := strings.Count(s, "9")
		return p, p - strings.LastIndex(s, ".")
	}
	p, err := strconv.Atoi(s[strings.LastIndex(s, "+"):])
	if err != nil {
		p = 0
	}
	scale := strings.Index(lower, "e") - (strings.Index(s, ".") + 1)
	return p, scale
}

// boundString renders an optional bound; an absent bound renders as "".
func boundString(n *json.Number) string {
	if n == nil {
		return ""
	}
	return decimalString(*n)
}

func maxLength(f jsonschema.Field) int {
	if f.String.MaxLength == nil {
		return 0
	}
	return *f.String.MaxLength
}
