package labinterp

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RangeKind tags a ParsedRange.
type RangeKind uint8

const (
	RangeUnparseable RangeKind = iota
	RangeInterval
	RangeUpperBound
	RangeLowerBound
	RangeQualitative
)

func (k RangeKind) String() string {
	switch k {
	case RangeInterval:
		return "interval"
	case RangeUpperBound:
		return "upper-bound"
	case RangeLowerBound:
		return "lower-bound"
	case RangeQualitative:
		return "qualitative"
	default:
		return "unparseable"
	}
}

// ParsedRange is the parsed form of a reference-range expression. Only the
// fields relevant to Kind are set.
type ParsedRange struct {
	Kind           RangeKind
	Min            float64
	Max            float64
	ExpectedNormal string
}

// seeReference marks fields with no numeric interval.
const seeReference = "see reference"

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// qualitativeExpr matches expressions that are words rather than numbers.
var qualitativeExpr = regexp.MustCompile(`^[A-Za-z][A-Za-z \-/]*$`)

// ParseNumber reads the leading decimal literal of s, ignoring surrounding
// whitespace and any trailing unit text.
func ParseNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isSeeReference(expr string) bool {
	return strings.EqualFold(strings.TrimSpace(expr), seeReference)
}

// ParseRange parses a reference-range expression. Bound prefixes are checked
// before the interval separator.
func ParseRange(expr string) ParsedRange {
	e := strings.TrimSpace(expr)
	if e == "" || isSeeReference(e) {
		return ParsedRange{Kind: RangeUnparseable}
	}

	switch {
	case strings.HasPrefix(e, "<"):
		if hi, ok := ParseNumber(e[1:]); ok {
			return ParsedRange{Kind: RangeUpperBound, Max: hi}
		}
	case strings.HasPrefix(e, ">"):
		if lo, ok := ParseNumber(e[1:]); ok {
			return ParsedRange{Kind: RangeLowerBound, Min: lo}
		}
	case strings.Contains(e, "-"):
		parts := strings.Split(e, "-")
		lo, okLo := ParseNumber(parts[0])
		hi, okHi := ParseNumber(parts[1])
		if okLo && okHi {
			return ParsedRange{Kind: RangeInterval, Min: lo, Max: hi}
		}
	}

	if qualitativeExpr.MatchString(e) {
		return ParsedRange{Kind: RangeQualitative, ExpectedNormal: e}
	}
	return ParsedRange{Kind: RangeUnparseable}
}

// Numeric reports whether the range can be compared against a number.
func (r ParsedRange) Numeric() bool {
	return r.Kind == RangeInterval || r.Kind == RangeUpperBound || r.Kind == RangeLowerBound
}
