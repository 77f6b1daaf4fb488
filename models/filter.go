package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mmdatafocus/clearview_backend/transform"
)

type FilterKind uint8

const (
	FilterKindNone FilterKind = iota
	FilterKindSet
	FilterKindPattern
)

// FilterValue restricts one column. A set keeps rows whose cell is one of
// the listed values (exact match, kind included); a pattern keeps rows whose
// cell contains it, case-insensitively. An empty set, a blank pattern, or any
// other JSON shape is inactive.
type FilterValue struct {
	Kind    FilterKind
	Set     []transform.Value
	Pattern string
}

func SetFilter(values ...transform.Value) FilterValue {
	return FilterValue{Kind: FilterKindSet, Set: values}
}

func StringSetFilter(values ...string) FilterValue {
	set := make([]transform.Value, len(values))
	for i, v := range values {
		set[i] = transform.StringValue(v)
	}
	return SetFilter(set...)
}

func PatternFilter(p string) FilterValue {
	return FilterValue{Kind: FilterKindPattern, Pattern: p}
}

func (f FilterValue) Active() bool {
	switch f.Kind {
	case FilterKindSet:
		return len(f.Set) > 0
	case FilterKindPattern:
		return strings.TrimSpace(f.Pattern) != ""
	}
	return false
}

// Match reports whether cell passes this filter. Inactive filters pass
// everything.
func (f FilterValue) Match(cell transform.Value) bool {
	if !f.Active() {
		return true
	}
	if f.Kind == FilterKindSet {
		for _, v := range f.Set {
			if v.Equal(cell) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(cell.String()), strings.ToLower(f.Pattern))
}

func (f *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = FilterValue{}
		return nil
	}
	switch data[0] {
	case '[':
		var members []json.RawMessage
		if err := json.Unmarshal(data, &members); err != nil {
			return err
		}
		set := make([]transform.Value, 0, len(members))
		for _, m := range members {
			var v transform.Value
			if err := json.Unmarshal(m, &v); err != nil {
				return fmt.Errorf("filter set member: %w", err)
			}
			set = append(set, v)
		}
		*f = SetFilter(set...)
	case '"':
		var p string
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*f = PatternFilter(p)
	default:
		*f = FilterValue{}
	}
	return nil
}

func (f FilterValue) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FilterKindSet:
		set := f.Set
		if set == nil {
			set = []transform.Value{}
		}
		return json.Marshal(set)
	case FilterKindPattern:
		return json.Marshal(f.Pattern)
	}
	return []byte("null"), nil
}

// Filters maps a column to its filter. A row must satisfy every active one.
type Filters map[string]FilterValue

// ActiveColumns lists the columns with an active filter, sorted.
func (fs Filters) ActiveColumns() []string {
	var cols []string
	for col, f := range fs {
		if f.Active() {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}
