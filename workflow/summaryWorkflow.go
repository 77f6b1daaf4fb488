package workflow

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/utils"
)

const (
	PreviewSampleRows = 10
	TopVendors        = 10
)

func CalculateSummary(recs []models.ScoredRecord) models.Summary {
	if len(recs) == 0 {
		return models.Summary{}
	}
	var summary models.Summary
	safe := 0
	spend := decimal.Zero
	for _, r := range recs {
		switch r.RiskScore {
		case models.RiskLevelCritical:
			summary.CriticalVulnerabilities++
		case models.RiskLevelSafe:
			safe++
		}
		spend = spend.Add(decimal.NewFromFloat(r.Cost))
	}
	summary.TotalAssets = len(recs)
	rate := decimal.NewFromInt(int64(safe)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(len(recs))))
	summary.ComplianceRate = rate.Round(1).InexactFloat64()
	summary.MonthlySpend = spend.Round(0).InexactFloat64()
	return summary
}

// BuildChartData counts records per vendor (top TopVendors, most frequent
// first, ties in first-seen order) and per risk score.
func BuildChartData(recs []models.ScoredRecord) models.ChartData {
	data := models.ChartData{ByVendor: []models.NamedCount{}, ByRisk: []models.NamedCount{}}
	if len(recs) == 0 {
		return data
	}

	index := map[string]int{}
	for _, r := range recs {
		i, ok := index[r.Vendor]
		if !ok {
			i = len(data.ByVendor)
			index[r.Vendor] = i
			data.ByVendor = append(data.ByVendor, models.NamedCount{Name: r.Vendor})
		}
		data.ByVendor[i].Count++
	}
	sort.SliceStable(data.ByVendor, func(a, b int) bool {
		return data.ByVendor[a].Count > data.ByVendor[b].Count
	})
	if len(data.ByVendor) > TopVendors {
		data.ByVendor = data.ByVendor[:TopVendors]
	}

	risk := map[models.RiskLevel]int{}
	for _, r := range recs {
		risk[r.RiskScore]++
	}
	for _, level := range []models.RiskLevel{models.RiskLevelSafe, models.RiskLevelWarning, models.RiskLevelCritical} {
		data.ByRisk = append(data.ByRisk, models.NamedCount{Name: string(level), Count: risk[level]})
	}
	return data
}

type PreviewResult struct {
	Headers    []string        `json:"headers"`
	SampleRows []ingest.Record `json:"sampleRows"`
	RowCount   int             `json:"rowCount"`
}

// Preview returns the headers and the first PreviewSampleRows records.
func Preview(table *ingest.Table) PreviewResult {
	n := min(len(table.Records), PreviewSampleRows)
	return PreviewResult{
		Headers:    table.Headers,
		SampleRows: table.Records[:n],
		RowCount:   len(table.Records),
	}
}

// ProfileTable summarizes every column: blanks, distinct values, and the
// range of whatever reads as a number or a date.
func ProfileTable(table *ingest.Table) []models.ColumnProfile {
	profiles := make([]models.ColumnProfile, len(table.Headers))
	for i, col := range table.Headers {
		p := models.ColumnProfile{Column: col}
		distinct := map[string]struct{}{}
		var earliest, latest time.Time

		for _, rec := range table.Records {
			v := strings.TrimSpace(rec.Get(col))
			if v == "" {
				p.Missing++
				continue
			}
			distinct[v] = struct{}{}

			if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				p.NumericCount++
				if p.Min == nil || f < *p.Min {
					p.Min = &f
				}
				if p.Max == nil || f > *p.Max {
					p.Max = &f
				}
				continue
			}
			if t, ok := utils.ParseCanonicalDate(v); ok {
				p.DateCount++
				if earliest.IsZero() || t.Before(earliest) {
					earliest = t
				}
				if latest.IsZero() || t.After(latest) {
					latest = t
				}
			}
		}
		p.Distinct = len(distinct)
		if p.DateCount > 0 {
			p.Earliest = earliest.Format(utils.DateLayout)
			p.Latest = latest.Format(utils.DateLayout)
		}
		profiles[i] = p
	}
	return profiles
}
