package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/transform"
)

func specPtr(s transform.Spec) *transform.Spec { return &s }

func TestRender_CapsAtMaxRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("id\n")
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	table, err := ingest.ParseCsv(b.String())
	if err != nil {
		t.Fatalf("ParseCsv error: %v", err)
	}
	fm := transform.FieldMap{"ID": {Transform: specPtr(transform.Identity("id"))}}

	res := Render(context.Background(), nil, TableRows(table), fm, []string{"ID"}, nil)
	if len(res.Rows) != MaxRenderRows {
		t.Fatalf("expected %d rows, got %d", MaxRenderRows, len(res.Rows))
	}
	for i, row := range res.Rows {
		if got := row[0].Value.String(); got != fmt.Sprint(i) {
			t.Fatalf("row %d expected id %d, got %s", i, i, got)
		}
	}
}

func TestRender_CapAppliesAfterFilter(t *testing.T) {
	rows := make([]transform.Row, 0, 1200)
	for i := 0; i < 1200; i++ {
		status := "A"
		if i%2 == 1 {
			status = "Z"
		}
		rows = append(rows, transform.MapRow{"n": fmt.Sprint(i), "s": status})
	}
	fm := transform.FieldMap{
		"n":      {Transform: specPtr(transform.Identity("n"))},
		"status": {Transform: specPtr(transform.Identity("s"))},
	}
	filters := models.Filters{"status": models.StringSetFilter("A")}

	res := Render(context.Background(), nil, rows, fm, []string{"n", "status"}, filters)
	if len(res.Rows) != MaxRenderRows {
		t.Fatalf("expected %d rows, got %d", MaxRenderRows, len(res.Rows))
	}
	if last := res.Rows[MaxRenderRows-1][0].Value.String(); last != "998" {
		t.Fatalf("expected the 500th passing row to be n=998, got %s", last)
	}
}

func TestRender_ExactColumnsInOrder(t *testing.T) {
	row := transform.MapRow{"a": "1", "b": "2"}
	fm := transform.FieldMap{
		"Second": {Transform: specPtr(transform.Identity("b"))},
		"First":  {Transform: specPtr(transform.Number("a"))},
		"Extra":  {Transform: specPtr(transform.Identity("a"))},
	}
	cols := []string{"First", "Second", "Unmapped"}
	res := Render(context.Background(), nil, []transform.Row{row}, fm, cols, models.Filters{})
	if len(res.Rows) != 1 || len(res.Rows[0]) != len(cols) {
		t.Fatalf("expected one row with %d cells, got %+v", len(cols), res.Rows)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	expected := `{"columns":["First","Second","Unmapped"],"rows":[{"First":1,"Second":"2","Unmapped":""}]}`
	if string(b) != expected {
		t.Fatalf("expected %s, got %s", expected, b)
	}
}

func TestRender_FilterConjunction(t *testing.T) {
	rows := []transform.Row{
		transform.MapRow{"status": "A", "name": "Jane Smith"},
		transform.MapRow{"status": "B", "name": "SMITHERS"},
		transform.MapRow{"status": "C", "name": "Smith"},
		transform.MapRow{"status": "A", "name": "Jones"},
		transform.MapRow{"status": "b", "name": "smith"},
	}
	fm := transform.FieldMap{
		"status": {Transform: specPtr(transform.Identity("status"))},
		"name":   {Transform: specPtr(transform.Identity("name"))},
	}
	filters := models.Filters{
		"status": models.StringSetFilter("A", "B"),
		"name":   models.PatternFilter("smith"),
	}
	res := Render(context.Background(), nil, rows, fm, []string{"status", "name"}, filters)
	var names []string
	for _, r := range res.Rows {
		v, _ := r.Lookup("name")
		names = append(names, v.String())
	}
	if strings.Join(names, "|") != "Jane Smith|SMITHERS" {
		t.Fatalf("unexpected rows %v", names)
	}
}

func TestRender_FiltersUseProjectedValues(t *testing.T) {
	rows := []transform.Row{transform.MapRow{"code": "7"}}
	fm := transform.FieldMap{"Code": {Transform: specPtr(transform.PadLeft("code", "0", 3))}}

	res := Render(context.Background(), nil, rows, fm, []string{"Code"}, models.Filters{"Code": models.StringSetFilter("007")})
	if len(res.Rows) != 1 {
		t.Fatalf("expected projected value 007 to match, got %d rows", len(res.Rows))
	}

	// Number transforms project numbers, which never equal a string member.
	fm = transform.FieldMap{"Code": {Transform: specPtr(transform.Number("code"))}}
	res = Render(context.Background(), nil, rows, fm, []string{"Code"}, models.Filters{"Code": models.StringSetFilter("7")})
	if len(res.Rows) != 0 {
		t.Fatalf("expected strict membership to reject number 7 against \"7\"")
	}
	res = Render(context.Background(), nil, rows, fm, []string{"Code"}, models.Filters{"Code": models.SetFilter(transform.NumberValue(7))})
	if len(res.Rows) != 1 {
		t.Fatalf("expected number member to match")
	}
}

func TestRender_FilterOnUnprojectedColumn(t *testing.T) {
	rows := []transform.Row{transform.MapRow{"status": "A"}}
	fm := transform.FieldMap{"Out": {Transform: specPtr(transform.Identity("status"))}}

	res := Render(context.Background(), nil, rows, fm, []string{"Out"}, models.Filters{"status": models.StringSetFilter("A")})
	if len(res.Rows) != 0 {
		t.Fatalf("expected filter on a source-only column to reject every row")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], `"status"`) {
		t.Fatalf("expected a warning naming status, got %v", res.Warnings)
	}

	res = Render(context.Background(), nil, rows, fm, []string{"Out"}, models.Filters{"status": models.PatternFilter("  ")})
	if len(res.Rows) != 1 || len(res.Warnings) != 0 {
		t.Fatalf("blank filter must be a no-op, got %d rows %v", len(res.Rows), res.Warnings)
	}
}

func TestRender_SapExampleRecipe(t *testing.T) {
	table, err := ingest.ParseCsv("WERKS,MATNR,BUDAT,STATUS\n12,abc-01,20240131,A\n7,xyz-02,12/5/2023,X\n")
	if err != nil {
		t.Fatalf("ParseCsv error: %v", err)
	}
	var fm transform.FieldMap
	raw := `{
		"Plant":    {"transform": {"fn": "padLeft", "args": ["WERKS", "0", 4]}},
		"Material": {"transform": {"fn": "upper", "args": ["MATNR"]}},
		"Family":   {"transform": {"fn": "split", "args": ["MATNR", "-", 0]}},
		"Posted":   {"transform": {"fn": "normalizeDate", "args": ["BUDAT"]}},
		"Source":   {"transform": {"fn": "concat", "args": ["'SAP:'", "STATUS"]}}
	}`
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		t.Fatalf("unmarshal field map: %v", err)
	}
	res := Render(context.Background(), nil, TableRows(table), fm,
		[]string{"Plant", "Material", "Family", "Posted", "Source"},
		models.Filters{"Source": models.PatternFilter("sap:a")})
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	got := res.Rows[0].CellValues()
	want := []string{"0012", "ABC-01", "abc", "2024-01-31", "SAP:A"}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("cell %d expected %q, got %q", i, want[i], got[i])
		}
	}
}
