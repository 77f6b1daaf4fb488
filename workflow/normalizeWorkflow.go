package workflow

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/transform"
	"github.com/mmdatafocus/clearview_backend/utils"
)

// Source columns tried for each field, first non-empty wins.
var (
	vendorAliases  = []string{"Vendor", "vendor", "Manufacturer", "manufacturer"}
	productAliases = []string{"Product", "product", "Software", "software"}
	versionAliases = []string{"Version", "version", "Ver", "ver"}
	eosAliases     = []string{"EOS Date", "eosDate", "End of Support", "endOfSupport", "EOL"}
	riskAliases    = []string{"Risk", "risk", "Risk Level", "riskLevel"}
	costAliases    = []string{"Cost", "cost", "Price", "price"}
)

var vendorNames = map[string]string{
	"microsoft":  "Microsoft",
	"adobe":      "Adobe",
	"oracle":     "Oracle",
	"salesforce": "Salesforce",
	"vmware":     "VMware",
	"sap":        "SAP",
	"atlassian":  "Atlassian",
	"google":     "Google",
	"amazon":     "Amazon",
	"ibm":        "IBM",
	"cisco":      "Cisco",
	"hp":         "HP",
	"dell":       "Dell",
}

// Longest first so "version 2" is not read as "v" + "ersion 2".
var versionPrefixes = []string{"version", "ver", "v"}

var (
	isoDateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	mdySlashRe      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	mdyDashRe       = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	ymdSlashRe      = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "¢", "", ",", "")
)

func pick(row transform.Row, aliases []string, def string) string {
	for _, a := range aliases {
		if v, ok := row.Lookup(a); ok && v != "" {
			return v
		}
	}
	return def
}

func NormalizeVendor(raw string) string {
	cleaned := utils.CollapseSpaces(raw)
	if cleaned == "" {
		return ""
	}
	if name, ok := vendorNames[strings.ToLower(cleaned)]; ok {
		return name
	}
	return utils.UpperFirst(cleaned)
}

func NormalizeProduct(raw string) string {
	return utils.CollapseSpaces(raw)
}

// NormalizeVersion drops leading "v", "ver" or "version" tokens when they
// stand on their own ("v2.1", "Ver 3", "version v10") but not when one starts
// a word ("vSphere").
func NormalizeVersion(raw string) string {
	cleaned := utils.CollapseSpaces(raw)
	for {
		rest, ok := stripVersionPrefix(cleaned)
		if !ok {
			return cleaned
		}
		cleaned = rest
	}
}

func stripVersionPrefix(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, p := range versionPrefixes {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		rest := s[len(p):]
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) {
			continue
		}
		return strings.TrimLeft(rest, " "), true
	}
	return s, false
}

// NormalizeEosDate returns YYYY-MM-DD when raw is a recognizable calendar
// date, otherwise the cleaned input.
func NormalizeEosDate(raw string) (string, bool) {
	cleaned := utils.CollapseSpaces(raw)
	if cleaned == "" {
		return "", true
	}
	if isoDateRe.MatchString(cleaned) {
		return cleaned, true
	}
	if m := mdySlashRe.FindStringSubmatch(cleaned); m != nil {
		if d, ok := calendarDate(m[3], m[1], m[2]); ok {
			return d, true
		}
	}
	if m := mdyDashRe.FindStringSubmatch(cleaned); m != nil {
		if d, ok := calendarDate(m[3], m[1], m[2]); ok {
			return d, true
		}
	}
	if m := ymdSlashRe.FindStringSubmatch(cleaned); m != nil {
		if d, ok := calendarDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if t, ok := utils.ParseLooseDate(cleaned); ok {
		return t.Format(utils.DateLayout), true
	}
	return cleaned, false
}

// calendarDate formats y-m-d when it names a real day.
func calendarDate(y, m, d string) (string, bool) {
	year, month, day := atoi(y), atoi(m), atoi(d)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(utils.DateLayout), true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// NormalizeRisk classifies free text by keyword. Checks run in order:
// critical, then warning, then safe.
func NormalizeRisk(raw string) models.RiskLevel {
	cleaned := strings.ToLower(utils.CollapseSpaces(raw))
	switch {
	case cleaned == "":
		return models.RiskLevelUnknown
	case strings.Contains(cleaned, "critical"), strings.Contains(cleaned, "high"):
		return models.RiskLevelCritical
	case strings.Contains(cleaned, "warning"), strings.Contains(cleaned, "medium"), strings.Contains(cleaned, "moderate"):
		return models.RiskLevelWarning
	case strings.Contains(cleaned, "safe"), strings.Contains(cleaned, "low"), strings.Contains(cleaned, "good"):
		return models.RiskLevelSafe
	}
	return models.RiskLevelUnknown
}

// NormalizeCost strips currency symbols and thousands separators and rounds
// to cents. Anything unparseable is 0.
func NormalizeCost(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(currencySymbols.Replace(raw))
	if cleaned == "" {
		return 0, true
	}
	f, ok := utils.ParseLeadingFloat(cleaned)
	if !ok || math.IsInf(f, 0) {
		return 0, false
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64(), true
}

// NormalizeRecord cleans one raw row. keep is false when vendor, product and
// version all come out empty.
func NormalizeRecord(logger *logrus.Logger, row transform.Row) (rec models.NormalizedRecord, keep bool) {
	rec.Vendor = NormalizeVendor(pick(row, vendorAliases, ""))
	rec.Product = NormalizeProduct(pick(row, productAliases, ""))
	rec.Version = NormalizeVersion(pick(row, versionAliases, ""))
	rec.Risk = NormalizeRisk(pick(row, riskAliases, ""))

	rawDate := pick(row, eosAliases, "")
	date, ok := NormalizeEosDate(rawDate)
	if !ok && logger != nil {
		config.LogDegraded(logger, "normalizeWorkflow.go", "eosDate", rawDate, "unrecognized date kept as text")
	}
	rec.EosDate = date

	rawCost := pick(row, costAliases, "0")
	cost, ok := NormalizeCost(rawCost)
	if !ok && logger != nil {
		config.LogDegraded(logger, "normalizeWorkflow.go", "cost", rawCost, "unparseable cost set to 0")
	}
	rec.Cost = cost

	keep = rec.Vendor != "" || rec.Product != "" || rec.Version != ""
	return rec, keep
}

// NormalizeRecords normalizes every row and drops the ones with nothing to
// identify them.
func NormalizeRecords(ctx context.Context, logger *logrus.Logger, rows []transform.Row) []models.NormalizedRecord {
	_, span := tracer.Start(ctx, "workflow.NormalizeRecords")
	defer span.End()

	out := make([]models.NormalizedRecord, 0, len(rows))
	for _, row := range rows {
		if rec, keep := NormalizeRecord(logger, row); keep {
			out = append(out, rec)
		}
	}
	span.SetAttributes(
		attribute.Int("normalize.rows_in", len(rows)),
		attribute.Int("normalize.rows_out", len(out)),
	)
	return out
}

// RecordRow exposes a normalized record under its canonical field names, so
// it can be fed back through NormalizeRecord.
func RecordRow(rec models.NormalizedRecord) transform.MapRow {
	return transform.MapRow{
		"vendor":  rec.Vendor,
		"product": rec.Product,
		"version": rec.Version,
		"eosDate": rec.EosDate,
		"risk":    string(rec.Risk),
		"cost":    utils.FormatNumber(rec.Cost),
	}
}
