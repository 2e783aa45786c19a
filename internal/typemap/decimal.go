package typemap

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
)

// decimalString renders a JSON number literal the way an arbitrary-precision
// decimal prints itself: integer literals verbatim, everything else in the
// "to scientific string" form (1E+20, 9.99E+20, 0.050, 1E-7).
//
// The precision and scale heuristics below operate on this rendering, so it
// has to match exactly, including the switch to exponent notation.
func decimalString(n json.Number) string {
	lit := strings.TrimSpace(n.String())
	if lit == "" {
		return ""
	}

	sign := ""
	if lit[0] == '-' {
		sign = "-"
		lit = lit[1:]
	} else if lit[0] == '+' {
		lit = lit[1:]
	}

	mant, expPart := lit, ""
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		mant, expPart = lit[:i], lit[i+1:]
	}
	intPart, fracPart := mant, ""
	hasPoint := false
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		intPart, fracPart, hasPoint = mant[:i], mant[i+1:], true
	}

	// Plain integers decode to integers and print without any decoration.
	if !hasPoint && expPart == "" {
		digits := strings.TrimLeft(intPart, "0")
		if digits == "" {
			return "0"
		}
		return sign + digits
	}

	exp := 0
	if expPart != "" {
		e, err := strconv.Atoi(expPart)
		if err != nil {
			return sign + lit
		}
		exp = e
	}
	exp -= len(fracPart)

	coeff := strings.TrimLeft(intPart+fracPart, "0")
	if coeff == "" {
		coeff = "0"
	}

	leftDigits := exp + len(coeff)
	dotPlace := 1
	if exp <= 0 && leftDigits > -6 {
		dotPlace = leftDigits
	}

	var whole, frac string
	switch {
	case dotPlace <= 0:
		whole = "0"
		frac = "." + strings.Repeat("0", -dotPlace) + coeff
	case dotPlace >= len(coeff):
		whole = coeff + strings.Repeat("0", dotPlace-len(coeff))
	default:
		whole = coeff[:dotPlace]
		frac = "." + coeff[dotPlace:]
	}

	suffix := ""
	if d := leftDigits - dotPlace; d > 0 {
		suffix = "E+" + strconv.Itoa(d)
	} else if d < 0 {
		suffix = "E" + strconv.Itoa(d)
	}
	return sign + whole + frac + suffix
}

// rat parses a decimal literal exactly.
func rat(lit string) *big.Rat {
	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		return nil
	}
	return r
}

// fingerprint is a (minimum, maximum) pair identifying a native type of some
// origin system.
type fingerprint struct {
	min, max *big.Rat
}

func newFingerprint(min, max string) fingerprint {
	return fingerprint{min: rat(min), max: rat(max)}
}

// matches compares bounds numerically; both must be present.
func (fp fingerprint) matches(min, max *json.Number) bool {
	if min == nil || max == nil {
		return false
	}
	lo, hi := rat(min.String()), rat(max.String())
	if lo == nil || hi == nil {
		return false
	}
	return lo.Cmp(fp.min) == 0 && hi.Cmp(fp.max) == 0
}
