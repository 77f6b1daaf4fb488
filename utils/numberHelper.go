package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingFloatRe = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseLeadingFloat reads the longest numeric prefix of s after leading
// whitespace, ignoring whatever follows ("12abc" -> 12). "Infinity" with an
// optional sign is accepted and yields an infinite value.
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n\f\v\u00a0\ufeff")
	if m := leadingFloatRe.FindString(s); m != "" {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			// Only overflow can fail here; ParseFloat still returns ±Inf.
			return f, !math.IsNaN(f)
		}
		return f, true
	}
	switch {
	case strings.HasPrefix(s, "Infinity"), strings.HasPrefix(s, "+Infinity"):
		return math.Inf(1), true
	case strings.HasPrefix(s, "-Infinity"):
		return math.Inf(-1), true
	}
	return 0, false
}

// FormatNumber renders f the way it should appear in CSV and filter
// comparisons: shortest round-trip form, no exponent for ordinary magnitudes.
func FormatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
