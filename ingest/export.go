package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mmdatafocus/clearview_backend/transform"
)

const (
	ContentTypeCsv  = "text/csv; charset=utf-8"
	ContentTypeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CellValuer is a row that can be written in a fixed column order.
type CellValuer interface {
	CellValues() []transform.Value
}

// WriteCsv writes a header line of columns followed by one line per row.
// Null cells are empty; numbers use their shortest round-trip form.
func WriteCsv(w io.Writer, columns []string, rows []CellValuer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	line := make([]string, len(columns))
	for _, row := range rows {
		values := row.CellValues()
		for i := range line {
			line[i] = ""
			if i < len(values) {
				line[i] = values[i].String()
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXlsx writes the same table as a single-sheet workbook. Number cells
// stay numeric.
func WriteXlsx(w io.Writer, sheet string, columns []string, rows []CellValuer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	heading := make([]interface{}, len(columns))
	for i, c := range columns {
		heading[i] = c
	}
	if err := sw.SetRow("A1", heading); err != nil {
		return err
	}

	for n, row := range rows {
		values := row.CellValues()
		cells := make([]interface{}, len(columns))
		for i := range cells {
			if i >= len(values) {
				cells[i] = nil
				continue
			}
			switch v := values[i]; v.Kind() {
			case transform.KindNumber:
				cells[i] = v.Float()
			case transform.KindString:
				cells[i] = v.RawString()
			default:
				cells[i] = nil
			}
		}
		if err := sw.SetRow("A"+fmt.Sprint(n+2), cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// sheetName makes name acceptable to Excel: at most 31 characters and none
// of : \ / ? * [ ].
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}
