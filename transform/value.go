package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mmdatafocus/clearview_backend/utils"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	}
	return "null"
}

// Value is what a transform yields: a string, a finite number, or null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

func Null() Value                { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns null for NaN and infinities.
func NumberValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) Float() float64    { return v.num }
func (v Value) RawString() string { return v.str }

// String is the textual form used for CSV output and pattern filters; null
// renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return utils.FormatNumber(v.num)
	}
	return ""
}

// Equal is strict: a number never equals a string with the same digits.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(utils.FormatNumber(v.num)), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a JSON string, number or null. Anything else is an
// error.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}
	return fmt.Errorf("value must be a string, number or null, got %s", data)
}
