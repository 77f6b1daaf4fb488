package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseWarning is a non-fatal issue found while parsing one line.
type ParseWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Record is one parsed data row. Every header has a value (short rows are
// padded), and JSON output keeps header order.
type Record struct {
	table  *header
	values []string
}

type header struct {
	names []string
	index map[string]int
}

// Lookup implements transform.Row.
func (r Record) Lookup(column string) (string, bool) {
	if r.table == nil {
		return "", false
	}
	i, ok := r.table.index[column]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Get returns the cell for column, or "" when the column does not exist.
func (r Record) Get(column string) string {
	v, _ := r.Lookup(column)
	return v
}

func (r Record) Columns() []string {
	if r.table == nil {
		return nil
	}
	return r.table.names
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Get(name))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NewRecord builds a standalone record, mostly for tests and JSON callers that
// already hold key/value pairs.
func NewRecord(columns []string, values []string) Record {
	h := newHeader(columns)
	row := make([]string, len(columns))
	copy(row, values)
	return Record{table: h, values: row}
}

func newHeader(columns []string) *header {
	h := &header{index: make(map[string]int, len(columns))}
	for i, name := range columns {
		if _, dup := h.index[name]; !dup {
			h.names = append(h.names, name)
		}
		// A repeated header name reads from its last occurrence.
		h.index[name] = i
	}
	return h
}

// Table is the result of parsing CSV text.
type Table struct {
	Headers  []string       `json:"headers"`
	Records  []Record       `json:"records"`
	Warnings []ParseWarning `json:"warnings,omitempty"`
}

// ParseCsv reads header-keyed records from text. The first row is the
// header; blank lines are skipped; short rows are padded and long rows
// truncated with a warning for each.
func ParseCsv(text string) (*Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyCsv
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCsv
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	h := newHeader(headers)
	width := len(headers)

	table := &Table{Headers: h.names}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			table.Warnings = append(table.Warnings, ParseWarning{
				Row:     line,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}
		line, _ := reader.FieldPos(0)

		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		if len(row) < width {
			table.Warnings = append(table.Warnings, ParseWarning{
				Row:     line,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), width),
			})
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		} else if len(row) > width {
			table.Warnings = append(table.Warnings, ParseWarning{
				Row:     line,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), width),
			})
			row = row[:width]
		}
		table.Records = append(table.Records, Record{table: h, values: row})
	}

	if len(table.Records) == 0 {
		return nil, ErrNoDataRows
	}
	return table, nil
}
