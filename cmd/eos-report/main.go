package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/utils"
	"github.com/mmdatafocus/clearview_backend/workflow"
)

func main() {
	csvPath := flag.String("csv", "", "Required: software inventory CSV")
	asOf := flag.String("now", "", "Optional: score as of this date (YYYY-MM-DD). Defaults to today (UTC).")
	out := flag.String("out", "", "Optional: scored CSV output file. Defaults to stdout.")
	flag.Parse()

	if strings.TrimSpace(*csvPath) == "" {
		fmt.Fprintln(os.Stderr, "--csv is required")
		os.Exit(1)
	}

	now := time.Now().UTC()
	if *asOf != "" {
		t, err := time.ParseInLocation(utils.DateLayout, strings.TrimSpace(*asOf), time.UTC)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--now must be YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		now = t
	}

	data, err := os.ReadFile(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read csv: %v\n", err)
		os.Exit(1)
	}
	text, encoding := ingest.DecodeText(data)
	if err := ingest.ValidateCsvText(text); err != nil {
		fmt.Fprintf(os.Stderr, "invalid csv: %v\n", err)
		os.Exit(1)
	}
	table, err := ingest.ParseCsv(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse csv: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := config.GetLogger()
	recs := workflow.NormalizeRecords(ctx, logger, workflow.TableRows(table))
	scored := workflow.ScoreRecords(ctx, logger, recs, now)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := ingest.WriteCsv(w, models.ScoredExportColumns, workflow.ScoredCellValuers(scored)); err != nil {
		fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
		os.Exit(1)
	}

	s := workflow.CalculateSummary(scored)
	fmt.Fprintf(os.Stderr, "%s (%s) as of %s: %d assets, %d critical, %.1f%% compliant, spend %s (%d of %d rows kept)\n",
		*csvPath, encoding, now.Format(utils.DateLayout),
		s.TotalAssets, s.CriticalVulnerabilities, s.ComplianceRate, utils.FormatNumber(s.MonthlySpend),
		len(recs), len(table.Records))
}
