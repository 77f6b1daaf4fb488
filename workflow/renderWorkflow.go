package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/transform"
)

// MaxRenderRows caps every render. Callers never receive more.
const MaxRenderRows = 500

var tracer = otel.Tracer("clearview-backend/workflow")

type Cell struct {
	Column string
	Value  transform.Value
}

// ShapedRow is one projected row: exactly the target columns, in order.
type ShapedRow []Cell

// Lookup reports the cell for column; ok is false when column is not one of
// the target columns.
func (r ShapedRow) Lookup(column string) (transform.Value, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return transform.Null(), false
}

func (r ShapedRow) CellValues() []transform.Value {
	out := make([]transform.Value, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

func (r ShapedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		v, err := c.Value.MarshalJSON()
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

type RenderResult struct {
	Columns  []string    `json:"columns"`
	Rows     []ShapedRow `json:"rows"`
	Warnings []string    `json:"warnings,omitempty"`
}

// ShapeRow projects row onto targetColumns. Columns without a transform in
// fieldMap are "".
func ShapeRow(row transform.Row, fieldMap transform.FieldMap, targetColumns []string) ShapedRow {
	shaped := make(ShapedRow, len(targetColumns))
	for i, col := range targetColumns {
		v := transform.StringValue("")
		if fs, ok := fieldMap[col]; ok && fs.Transform != nil {
			v = transform.Evaluate(row, *fs.Transform)
		}
		shaped[i] = Cell{Column: col, Value: v}
	}
	return shaped
}

// matchFilters applies every active filter to the projected row. A filter on
// a column that is not projected rejects the row.
func matchFilters(row ShapedRow, filters models.Filters, active []string) bool {
	for _, col := range active {
		cell, ok := row.Lookup(col)
		if !ok {
			return false
		}
		if !filters[col].Match(cell) {
			return false
		}
	}
	return true
}

// UnprojectedFilterWarnings names active filters whose column is not a
// target column. Such filters reject every row.
func UnprojectedFilterWarnings(filters models.Filters, targetColumns []string) []string {
	projected := make(map[string]bool, len(targetColumns))
	for _, c := range targetColumns {
		projected[c] = true
	}
	var warnings []string
	for _, col := range filters.ActiveColumns() {
		if !projected[col] {
			warnings = append(warnings, fmt.Sprintf("filter column %q is not a target column; no row can match it", col))
		}
	}
	return warnings
}

// Render shapes rows with fieldMap, keeps those that pass filters, and
// returns at most MaxRenderRows of them in input order.
func Render(ctx context.Context, logger *logrus.Logger, rows []transform.Row, fieldMap transform.FieldMap, targetColumns []string, filters models.Filters) RenderResult {
	_, span := tracer.Start(ctx, "workflow.Render")
	defer span.End()

	active := filters.ActiveColumns()
	result := RenderResult{
		Columns:  targetColumns,
		Rows:     []ShapedRow{},
		Warnings: UnprojectedFilterWarnings(filters, targetColumns),
	}
	if logger != nil {
		for _, w := range result.Warnings {
			logger.WithField("module", "renderWorkflow.go").Warn(w)
		}
	}

	matched := 0
	for _, row := range rows {
		shaped := ShapeRow(row, fieldMap, targetColumns)
		if !matchFilters(shaped, filters, active) {
			continue
		}
		matched++
		if len(result.Rows) < MaxRenderRows {
			result.Rows = append(result.Rows, shaped)
		}
	}

	span.SetAttributes(
		attribute.Int("render.rows_in", len(rows)),
		attribute.Int("render.rows_matched", matched),
		attribute.Int("render.rows_out", len(result.Rows)),
		attribute.Int("render.filters", len(active)),
	)
	return result
}

// TableRows adapts parsed records to the transform row interface.
func TableRows(table *ingest.Table) []transform.Row {
	rows := make([]transform.Row, len(table.Records))
	for i, r := range table.Records {
		rows[i] = r
	}
	return rows
}

// CellValuers adapts shaped rows for ingest.WriteCsv / WriteXlsx.
func CellValuers(rows []ShapedRow) []ingest.CellValuer {
	out := make([]ingest.CellValuer, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
