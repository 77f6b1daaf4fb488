package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/workflow"
)

func main() {
	csvPath := flag.String("csv", "", "Required: CSV file to shape")
	recipeName := flag.String("recipe", "", "Required: recipe (target screen) name")
	recipesDir := flag.String("recipes-dir", config.RecipesDir(), "Directory holding <recipe>.json files")
	fieldMapPath := flag.String("fieldmap", "", "Optional: field map JSON file. Defaults to the recipe's own field map.")
	filtersJSON := flag.String("filters", "", "Optional: filters as inline JSON. When set, replaces the recipe defaults.")
	format := flag.String("format", "csv", "Output format: csv, xlsx or json")
	out := flag.String("out", "", "Optional: output file. Defaults to stdout.")
	flag.Parse()

	if strings.TrimSpace(*csvPath) == "" || strings.TrimSpace(*recipeName) == "" {
		fmt.Fprintln(os.Stderr, "--csv and --recipe are required")
		os.Exit(1)
	}
	*format = strings.ToLower(*format)
	if *format != "csv" && *format != "xlsx" && *format != "json" {
		fmt.Fprintln(os.Stderr, "--format must be csv, xlsx or json")
		os.Exit(1)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	recipe, err := models.NewFileRecipeStore(*recipesDir).Load(ctx, *recipeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load recipe: %v\n", err)
		os.Exit(1)
	}

	fieldMap := recipe.FieldMap
	if *fieldMapPath != "" {
		raw, err := os.ReadFile(*fieldMapPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read field map: %v\n", err)
			os.Exit(1)
		}
		if fieldMap, err = models.ParseFieldMapJSON(string(raw)); err != nil {
			fmt.Fprintf(os.Stderr, "field map: %v\n", err)
			os.Exit(1)
		}
	}
	if len(fieldMap) == 0 {
		fmt.Fprintf(os.Stderr, "recipe %q has no field map; pass --fieldmap\n", recipe.Name)
		os.Exit(1)
	}

	filters := recipe.DefaultFilters
	if *filtersJSON != "" {
		if filters, err = models.ParseFiltersJSON(*filtersJSON); err != nil {
			fmt.Fprintf(os.Stderr, "filters: %v\n", err)
			os.Exit(1)
		}
	}

	table, err := readTable(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read csv: %v\n", err)
		os.Exit(1)
	}
	for _, w := range table.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %+v\n", w)
	}

	result := workflow.Render(ctx, logger, workflow.TableRows(table), fieldMap, recipe.TargetColumns, filters)
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	w, closeOut, err := openOutput(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open output: %v\n", err)
		os.Exit(1)
	}
	if err := write(w, *format, recipe.Name, result); err != nil {
		closeOut()
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *format, err)
		os.Exit(1)
	}
	closeOut()
	fmt.Fprintf(os.Stderr, "%d of %d rows shaped for %s\n", len(result.Rows), len(table.Records), recipe.Name)
}

func readTable(path string) (*ingest.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, _ := ingest.DecodeText(data)
	if err := ingest.ValidateCsvText(text); err != nil {
		return nil, err
	}
	return ingest.ParseCsv(text)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func write(w io.Writer, format, sheet string, result workflow.RenderResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "xlsx":
		return ingest.WriteXlsx(w, sheet, result.Columns, workflow.CellValuers(result.Rows))
	}
	return ingest.WriteCsv(w, result.Columns, workflow.CellValuers(result.Rows))
}
