package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mmdatafocus/clearview_backend/utils"
)

// Row is a read-only view of one input record keyed by column name.
type Row interface {
	Lookup(column string) (string, bool)
}

// MapRow is the simplest Row.
type MapRow map[string]string

func (r MapRow) Lookup(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)

	slashDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
)

// resolve returns the literal text of a quoted token, or the named column's
// value. The bool is false only for a column the row does not have.
func resolve(row Row, token string) (string, bool) {
	if len(token) >= 2 && strings.HasPrefix(token, "'") && strings.HasSuffix(token, "'") {
		return token[1 : len(token)-1], true
	}
	if row == nil {
		return "", false
	}
	return row.Lookup(token)
}

func resolveText(row Row, token string) string {
	v, _ := resolve(row, token)
	return v
}

// Evaluate computes spec against row. It never fails: a missing column reads
// as "" (or null for identity), and an unknown variant yields null.
func Evaluate(row Row, spec Spec) Value {
	switch spec.Fn {
	case FnIdentity:
		v, ok := resolve(row, spec.source())
		if !ok {
			return Null()
		}
		return StringValue(v)
	case FnUpper:
		return StringValue(upperCaser.String(resolveText(row, spec.source())))
	case FnLower:
		return StringValue(lowerCaser.String(resolveText(row, spec.source())))
	case FnConcat:
		var b strings.Builder
		for _, tok := range spec.Sources {
			b.WriteString(resolveText(row, tok))
		}
		return StringValue(b.String())
	case FnNumber:
		f, ok := utils.ParseLeadingFloat(resolveText(row, spec.source()))
		if !ok {
			return Null()
		}
		return NumberValue(f)
	case FnPadLeft:
		return StringValue(padLeft(resolveText(row, spec.source()), spec.Pad, spec.Length))
	case FnSubstring:
		return StringValue(substring(resolveText(row, spec.source()), spec.Start, spec.End, spec.HasEnd))
	case FnSplit:
		s := resolveText(row, spec.source())
		parts := []string{s}
		if spec.HasDelimiter {
			parts = strings.Split(s, spec.Delimiter)
		}
		if spec.Index < 0 || spec.Index >= len(parts) {
			return StringValue("")
		}
		return StringValue(parts[spec.Index])
	case FnNormalizeDate:
		return StringValue(NormalizeDateText(resolveText(row, spec.source())))
	}
	return Null()
}

// NormalizeDateText rewrites a date-like string as YYYY-MM-DD. Anything the
// generic parser understands is formatted from its UTC date. Failing that,
// M/D/Y and M-D-Y are rearranged (two-digit years get a "20" prefix). Other
// input comes back trimmed but otherwise untouched.
func NormalizeDateText(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, ok := utils.ParseLooseDate(raw); ok {
		return t.Format(utils.DateLayout)
	}
	if m := slashDateRe.FindStringSubmatch(raw); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		return year + "-" + leftPad2(m[1]) + "-" + leftPad2(m[2])
	}
	return raw
}

func leftPad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func padLeft(s, pad string, length int) string {
	n := utf8.RuneCountInString(s)
	if pad == "" || length <= n {
		return s
	}
	fill := []rune(pad)
	var b strings.Builder
	for i := 0; i < length-n; i++ {
		b.WriteRune(fill[i%len(fill)])
	}
	b.WriteString(s)
	return b.String()
}

func substring(s string, start, end int, hasEnd bool) string {
	r := []rune(s)
	n := len(r)
	start = clamp(start, 0, n)
	if hasEnd {
		end = clamp(end, 0, n)
	} else {
		end = n
	}
	if start > end {
		start, end = end, start
	}
	return string(r[start:end])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
