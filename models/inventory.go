package models

import (
	"github.com/mmdatafocus/clearview_backend/transform"
)

// NormalizedRecord is one software asset after field cleanup.
type NormalizedRecord struct {
	Vendor  string    `json:"vendor"`
	Product string    `json:"product"`
	Version string    `json:"version"`
	EosDate string    `json:"eosDate"`
	Risk    RiskLevel `json:"risk"`
	Cost    float64   `json:"cost"`
}

// ScoredRecord is a NormalizedRecord classified against a particular day.
// It is always derived, never stored.
type ScoredRecord struct {
	NormalizedRecord
	RiskScore    RiskLevel `json:"riskScore"`
	DaysUntilEOS *int      `json:"daysUntilEOS"`
	EosStatus    EosStatus `json:"eosStatus"`

	// Set only when the EOS date came from a prediction.
	EosConfidence *float64 `json:"eosConfidence,omitempty"`
	EosPredicted  bool     `json:"eosPredicted,omitempty"`
}

var ScoredExportColumns = []string{
	"vendor", "product", "version", "eosDate", "riskScore", "eosStatus", "daysUntilEOS", "cost",
}

// CellValues follows ScoredExportColumns.
func (r ScoredRecord) CellValues() []transform.Value {
	days := transform.Null()
	if r.DaysUntilEOS != nil {
		days = transform.NumberValue(float64(*r.DaysUntilEOS))
	}
	return []transform.Value{
		transform.StringValue(r.Vendor),
		transform.StringValue(r.Product),
		transform.StringValue(r.Version),
		transform.StringValue(r.EosDate),
		transform.StringValue(string(r.RiskScore)),
		transform.StringValue(string(r.EosStatus)),
		days,
		transform.NumberValue(r.Cost),
	}
}

// Summary is the dashboard headline over a set of scored records.
type Summary struct {
	TotalAssets             int     `json:"totalAssets"`
	CriticalVulnerabilities int     `json:"criticalVulnerabilities"`
	ComplianceRate          float64 `json:"complianceRate"`
	MonthlySpend            float64 `json:"monthlySpend"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ChartData feeds the dashboard charts. ByRisk is always Safe, Warning,
// Critical in that order, or empty when there is no data.
type ChartData struct {
	ByVendor []NamedCount `json:"byVendor"`
	ByRisk   []NamedCount `json:"byRisk"`
}

// ColumnProfile describes one column of an uploaded table.
type ColumnProfile struct {
	Column       string   `json:"column"`
	Missing      int      `json:"missing"`
	Distinct     int      `json:"distinct"`
	NumericCount int      `json:"numericCount"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	DateCount    int      `json:"dateCount"`
	Earliest     string   `json:"earliest,omitempty"`
	Latest       string   `json:"latest,omitempty"`
}
