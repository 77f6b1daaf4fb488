package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fn is the variant tag of a transform expression.
type Fn string

const (
	FnIdentity      Fn = "identity"
	FnUpper         Fn = "upper"
	FnLower         Fn = "lower"
	FnConcat        Fn = "concat"
	FnNumber        Fn = "number"
	FnPadLeft       Fn = "padLeft"
	FnSubstring     Fn = "substring"
	FnSplit         Fn = "split"
	FnNormalizeDate Fn = "normalizeDate"
)

// Known reports whether fn is one of the supported variants. Unknown tags are
// still accepted by the decoder and evaluate to null.
func (fn Fn) Known() bool {
	switch fn {
	case FnIdentity, FnUpper, FnLower, FnConcat, FnNumber,
		FnPadLeft, FnSubstring, FnSplit, FnNormalizeDate:
		return true
	}
	return false
}

var ErrMalformedSpec = errors.New("malformed transform")

const MaxPadLength = 1 << 16

// Spec is one expression node. Which payload fields are meaningful depends
// on Fn:
//
//	identity, upper, lower, number, normalizeDate: Sources[0]
//	concat:    Sources (any length)
//	padLeft:   Sources[0], Pad, Length
//	substring: Sources[0], Start, End (HasEnd=false slices to the end)
//	split:     Sources[0], Delimiter (HasDelimiter=false keeps the whole string), Index
//
// A source token wrapped in single quotes is a literal, anything else is a
// column name.
type Spec struct {
	Fn           Fn
	Sources      []string
	Pad          string
	Length       int
	Start        int
	End          int
	HasEnd       bool
	Delimiter    string
	HasDelimiter bool
	Index        int

	raw []json.RawMessage
}

// Literal wraps s in the quoting that marks it as a literal source token.
func Literal(s string) string {
	return "'" + s + "'"
}

func Identity(source string) Spec { return Spec{Fn: FnIdentity, Sources: []string{source}} }
func Upper(source string) Spec    { return Spec{Fn: FnUpper, Sources: []string{source}} }
func Lower(source string) Spec    { return Spec{Fn: FnLower, Sources: []string{source}} }
func Number(source string) Spec   { return Spec{Fn: FnNumber, Sources: []string{source}} }
func Concat(sources ...string) Spec {
	return Spec{Fn: FnConcat, Sources: sources}
}
func NormalizeDate(source string) Spec {
	return Spec{Fn: FnNormalizeDate, Sources: []string{source}}
}
func PadLeft(source, pad string, length int) Spec {
	return Spec{Fn: FnPadLeft, Sources: []string{source}, Pad: pad, Length: length}
}
func Substring(source string, start, end int) Spec {
	return Spec{Fn: FnSubstring, Sources: []string{source}, Start: start, End: end, HasEnd: true}
}
func Split(source, delimiter string, index int) Spec {
	return Spec{Fn: FnSplit, Sources: []string{source}, Delimiter: delimiter, HasDelimiter: true, Index: index}
}

type specJSON struct {
	Fn   Fn                `json:"fn"`
	Args []json.RawMessage `json:"args"`
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var in specJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSpec, err)
	}
	out := Spec{Fn: in.Fn, raw: in.Args}
	if !in.Fn.Known() {
		*s = out
		return nil
	}

	switch in.Fn {
	case FnConcat:
		for i, a := range in.Args {
			tok, err := decodeString(a)
			if err != nil {
				return specArgError(in.Fn, i, err)
			}
			out.Sources = append(out.Sources, tok)
		}
	default:
		if len(in.Args) < 1 {
			return fmt.Errorf("%w: %s needs a source argument", ErrMalformedSpec, in.Fn)
		}
		tok, err := decodeString(in.Args[0])
		if err != nil {
			return specArgError(in.Fn, 0, err)
		}
		out.Sources = []string{tok}
	}

	var err error
	switch in.Fn {
	case FnPadLeft:
		out.Pad = " "
		if len(in.Args) > 1 {
			if out.Pad, err = decodeString(in.Args[1]); err != nil {
				return specArgError(in.Fn, 1, err)
			}
		}
		if len(in.Args) > 2 {
			f, err := decodeNumber(in.Args[2])
			if err != nil {
				return specArgError(in.Fn, 2, err)
			}
			out.Length = truncInt(f)
		}
	case FnSubstring:
		if len(in.Args) > 1 {
			f, err := decodeNumber(in.Args[1])
			if err != nil {
				return specArgError(in.Fn, 1, err)
			}
			out.Start = truncInt(f)
		}
		if len(in.Args) > 2 {
			f, err := decodeNumber(in.Args[2])
			if err != nil {
				return specArgError(in.Fn, 2, err)
			}
			out.End = truncInt(f)
			out.HasEnd = true
		}
	case FnSplit:
		if len(in.Args) > 1 {
			if out.Delimiter, err = decodeString(in.Args[1]); err != nil {
				return specArgError(in.Fn, 1, err)
			}
			out.HasDelimiter = true
		}
		if len(in.Args) > 2 {
			f, err := decodeNumber(in.Args[2])
			if err != nil {
				return specArgError(in.Fn, 2, err)
			}
			// A fractional index never names a piece.
			if f != math.Trunc(f) {
				out.Index = -1
			} else {
				out.Index = truncInt(f)
			}
		}
	}

	if err := out.Validate(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	if !s.Fn.Known() {
		args := s.raw
		if args == nil {
			args = []json.RawMessage{}
		}
		return json.Marshal(specJSON{Fn: s.Fn, Args: args})
	}
	args := make([]any, 0, 3)
	switch s.Fn {
	case FnConcat:
		for _, src := range s.Sources {
			args = append(args, src)
		}
	case FnPadLeft:
		args = append(args, s.source(), s.Pad, s.Length)
	case FnSubstring:
		args = append(args, s.source(), s.Start)
		if s.HasEnd {
			args = append(args, s.End)
		}
	case FnSplit:
		args = append(args, s.source())
		if s.HasDelimiter {
			args = append(args, s.Delimiter, s.Index)
		}
	default:
		args = append(args, s.source())
	}
	return json.Marshal(struct {
		Fn   Fn    `json:"fn"`
		Args []any `json:"args"`
	}{s.Fn, args})
}

// Validate checks source-token quoting. A token that opens a literal must
// close it, and a lone quote is rejected rather than read as "".
func (s Spec) Validate() error {
	if !s.Fn.Known() {
		return nil
	}
	if s.Fn != FnConcat && len(s.Sources) == 0 {
		return fmt.Errorf("%w: %s needs a source argument", ErrMalformedSpec, s.Fn)
	}
	if s.Fn == FnPadLeft && s.Length > MaxPadLength {
		return fmt.Errorf("%w: padLeft length %d exceeds %d", ErrMalformedSpec, s.Length, MaxPadLength)
	}
	for i, tok := range s.Sources {
		if err := validateToken(tok); err != nil {
			return specArgError(s.Fn, i, err)
		}
	}
	return nil
}

func validateToken(tok string) error {
	if tok == "'" {
		return errors.New("lone quote is not a literal")
	}
	if strings.HasPrefix(tok, "'") && !strings.HasSuffix(tok, "'") {
		return fmt.Errorf("unterminated literal %s", tok)
	}
	return nil
}

func (s Spec) source() string {
	if len(s.Sources) == 0 {
		return ""
	}
	return s.Sources[0]
}

func specArgError(fn Fn, idx int, err error) error {
	return fmt.Errorf("%w: %s arg %d: %v", ErrMalformedSpec, fn, idx, err)
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string, got %s", bytes.TrimSpace(raw))
	}
	return s, nil
}

// decodeNumber accepts JSON numbers and numeric strings ("5"), since field
// maps arriving through query strings are often stringly typed.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("expected number, got %s", bytes.TrimSpace(raw))
}

func truncInt(f float64) int {
	switch {
	case math.IsInf(f, 1) || f > math.MaxInt32:
		return math.MaxInt32
	case math.IsInf(f, -1) || f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// FieldSpec is the per-column entry of a FieldMap.
type FieldSpec struct {
	Transform *Spec `json:"transform"`
}

// FieldMap maps a target column to the expression that computes it.
type FieldMap map[string]FieldSpec

// Validate reports the first malformed transform, naming its column.
func (m FieldMap) Validate() error {
	for col, fs := range m {
		if fs.Transform == nil {
			continue
		}
		if err := fs.Transform.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", col, err)
		}
	}
	return nil
}
