package models

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/clearview_backend/transform"
)

func writeRecipe(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
}

func TestFileRecipeStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "sap_example_screen", `{
		"targetColumns": ["Plant", "Material", "Status"],
		"defaultFilters": {"Status": ["A", "B"], "Material": "  ", "Plant": 12}
	}`)
	store := NewFileRecipeStore(dir)

	r, err := store.Load(context.Background(), "sap_example_screen")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if r.Name != "sap_example_screen" {
		t.Fatalf("expected name from file, got %q", r.Name)
	}
	if len(r.TargetColumns) != 3 || r.TargetColumns[2] != "Status" {
		t.Fatalf("unexpected target columns %v", r.TargetColumns)
	}
	if !r.DefaultFilters["Status"].Active() {
		t.Fatalf("expected Status filter to be active")
	}
	if r.DefaultFilters["Material"].Active() || r.DefaultFilters["Plant"].Active() {
		t.Fatalf("blank pattern and number filter must be inactive")
	}
	if got := r.DefaultFilters.ActiveColumns(); len(got) != 1 || got[0] != "Status" {
		t.Fatalf("expected only Status active, got %v", got)
	}

	names, err := store.List(context.Background())
	if err != nil || len(names) != 1 || names[0] != "sap_example_screen" {
		t.Fatalf("List expected [sap_example_screen], got %v %v", names, err)
	}
}

func TestFileRecipeStore_NotFound(t *testing.T) {
	dir := t.TempDir()
	store := NewFileRecipeStore(dir)
	for _, name := range []string{"missing", "../etc/passwd", "a/b", "", ".."} {
		if _, err := store.Load(context.Background(), name); !errors.Is(err, ErrRecipeNotFound) {
			t.Fatalf("Load(%q) expected ErrRecipeNotFound, got %v", name, err)
		}
	}
}

func TestFileRecipeStore_RejectsInvalidRecipes(t *testing.T) {
	dir := t.TempDir()
	bad := map[string]string{
		"empty_columns":   `{"targetColumns": []}`,
		"dup_columns":     `{"targetColumns": ["A", "A"]}`,
		"blank_column":    `{"targetColumns": ["A", ""]}`,
		"bad_quote":       `{"targetColumns": ["A"], "fieldMap": {"A": {"transform": {"fn": "identity", "args": ["'oops"]}}}}`,
		"bad_filter_item": `{"targetColumns": ["A"], "defaultFilters": {"A": [{"x": 1}]}}`,
		"not_json":        `{targetColumns`,
	}
	for name, body := range bad {
		writeRecipe(t, dir, name, body)
	}
	store := NewFileRecipeStore(dir)
	for name := range bad {
		if _, err := store.Load(context.Background(), name); !errors.Is(err, ErrInvalidRecipe) {
			t.Fatalf("%s: expected ErrInvalidRecipe, got %v", name, err)
		}
	}
}

func TestFilterValue_Match(t *testing.T) {
	var fs Filters
	if err := json.Unmarshal([]byte(`{"status": ["A", "B", 3, null], "name": "Smith", "other": [], "n": true}`), &fs); err != nil {
		t.Fatalf("unmarshal filters: %v", err)
	}
	cases := []struct {
		col      string
		cell     transform.Value
		expected bool
	}{
		{"status", transform.StringValue("A"), true},
		{"status", transform.StringValue("C"), false},
		{"status", transform.StringValue("a"), false},
		{"status", transform.NumberValue(3), true},
		{"status", transform.StringValue("3"), false},
		{"status", transform.Null(), true},
		{"name", transform.StringValue("John SMITHSON"), true},
		{"name", transform.StringValue("Jones"), false},
		{"name", transform.Null(), false},
		{"other", transform.StringValue("anything"), true},
		{"n", transform.StringValue("anything"), true},
	}
	for _, tc := range cases {
		if got := fs[tc.col].Match(tc.cell); got != tc.expected {
			t.Fatalf("filter %s on %q expected %v, got %v", tc.col, tc.cell, tc.expected, got)
		}
	}
}

func TestParseFieldMapJSON(t *testing.T) {
	fm, err := ParseFieldMapJSON(`{"A": {"transform": {"fn": "lower", "args": ["Col"]}}}`)
	if err != nil {
		t.Fatalf("ParseFieldMapJSON error: %v", err)
	}
	if fm["A"].Transform == nil || fm["A"].Transform.Fn != transform.FnLower {
		t.Fatalf("unexpected field map %+v", fm)
	}
	if _, err := ParseFieldMapJSON(`{"A": {"transform": {"fn": "lower", "args": ["'"]}}}`); !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("expected ErrInvalidRecipe, got %v", err)
	}
}

func TestRiskLevel_UnmarshalJSON(t *testing.T) {
	var r RiskLevel
	if err := json.Unmarshal([]byte(`"Warning"`), &r); err != nil || r != RiskLevelWarning {
		t.Fatalf("expected Warning, got %q %v", r, err)
	}
	if err := json.Unmarshal([]byte(`"severe"`), &r); err == nil {
		t.Fatalf("expected invalid risk level to be rejected")
	}
}
