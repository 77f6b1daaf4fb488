package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
)

func scored(vendor string, risk models.RiskLevel, cost float64) models.ScoredRecord {
	return models.ScoredRecord{
		NormalizedRecord: models.NormalizedRecord{Vendor: vendor, Cost: cost},
		RiskScore:        risk,
	}
}

func TestCalculateSummary(t *testing.T) {
	recs := []models.ScoredRecord{
		scored("Microsoft", models.RiskLevelCritical, 15000),
		scored("Adobe", models.RiskLevelSafe, 8500.4),
		scored("Adobe", models.RiskLevelWarning, 0.3),
	}
	got := CalculateSummary(recs)
	expected := models.Summary{TotalAssets: 3, CriticalVulnerabilities: 1, ComplianceRate: 33.3, MonthlySpend: 23501}
	if got != expected {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}

	if empty := CalculateSummary(nil); empty != (models.Summary{}) {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}

func TestCalculateSummary_RoundsCompliance(t *testing.T) {
	recs := []models.ScoredRecord{
		scored("A", models.RiskLevelSafe, 0),
		scored("B", models.RiskLevelSafe, 0),
		scored("C", models.RiskLevelWarning, 0),
	}
	if got := CalculateSummary(recs).ComplianceRate; got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
}

func TestBuildChartData(t *testing.T) {
	var recs []models.ScoredRecord
	// Vendors V0..V11 appear once each, then V5 and V9 get extra rows.
	for i := 0; i < 12; i++ {
		recs = append(recs, scored(fmt.Sprintf("V%d", i), models.RiskLevelSafe, 0))
	}
	recs = append(recs,
		scored("V9", models.RiskLevelCritical, 0),
		scored("V9", models.RiskLevelCritical, 0),
		scored("V5", models.RiskLevelWarning, 0),
	)
	data := BuildChartData(recs)
	if len(data.ByVendor) != TopVendors {
		t.Fatalf("expected %d vendors, got %d", TopVendors, len(data.ByVendor))
	}
	var names []string
	for _, v := range data.ByVendor {
		names = append(names, fmt.Sprintf("%s:%d", v.Name, v.Count))
	}
	expected := "V9:3|V5:2|V0:1|V1:1|V2:1|V3:1|V4:1|V6:1|V7:1|V8:1"
	if strings.Join(names, "|") != expected {
		t.Fatalf("expected %s, got %s", expected, strings.Join(names, "|"))
	}

	b, _ := json.Marshal(data.ByRisk)
	if string(b) != `[{"name":"Safe","count":12},{"name":"Warning","count":1},{"name":"Critical","count":2}]` {
		t.Fatalf("unexpected byRisk %s", b)
	}
}

func TestBuildChartData_Empty(t *testing.T) {
	b, _ := json.Marshal(BuildChartData(nil))
	if string(b) != `{"byVendor":[],"byRisk":[]}` {
		t.Fatalf("expected empty arrays, got %s", b)
	}
}

func TestPreview(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a,b\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "%d,x%d\n", i, i)
	}
	table, err := ingest.ParseCsv(sb.String())
	if err != nil {
		t.Fatalf("ParseCsv error: %v", err)
	}
	res := Preview(table)
	if res.RowCount != 25 || len(res.SampleRows) != PreviewSampleRows {
		t.Fatalf("expected 25 rows with %d samples, got %d/%d", PreviewSampleRows, res.RowCount, len(res.SampleRows))
	}
	if res.SampleRows[9].Get("b") != "x9" {
		t.Fatalf("expected last sample x9, got %s", res.SampleRows[9].Get("b"))
	}

	small, _ := ingest.ParseCsv("a\n1\n")
	if res := Preview(small); res.RowCount != 1 || len(res.SampleRows) != 1 {
		t.Fatalf("expected a single sample, got %+v", res)
	}
}

func TestProfileTable(t *testing.T) {
	table, err := ingest.ParseCsv("name,cost,eos\nA,\"1,500\",2024-01-31\nB,20,12/01/2023\nA,,later\n")
	if err != nil {
		t.Fatalf("ParseCsv error: %v", err)
	}
	profiles := ProfileTable(table)
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}

	name := profiles[0]
	if name.Column != "name" || name.Distinct != 2 || name.Missing != 0 || name.NumericCount != 0 {
		t.Fatalf("unexpected name profile %+v", name)
	}

	cost := profiles[1]
	if cost.Missing != 1 || cost.NumericCount != 2 || *cost.Min != 20 || *cost.Max != 1500 {
		t.Fatalf("unexpected cost profile %+v", cost)
	}

	eos := profiles[2]
	if eos.DateCount != 2 || eos.Earliest != "2023-12-01" || eos.Latest != "2024-01-31" || eos.Distinct != 3 {
		t.Fatalf("unexpected eos profile %+v", eos)
	}
}
