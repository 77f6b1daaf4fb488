package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/utils"
)

// ApproachingEOSDays is how far ahead an end-of-support date starts to count
// as a warning.
const ApproachingEOSDays = 365

const secondsPerDay = 24 * 60 * 60

// ClassifyEOS maps days until end of support onto a risk score and status.
// A nil days means the date is unknown.
func ClassifyEOS(days *int) (models.RiskLevel, models.EosStatus) {
	switch {
	case days == nil:
		return models.RiskLevelSafe, models.EosStatusActiveSupport
	case *days < 0:
		return models.RiskLevelCritical, models.EosStatusPast
	case *days < ApproachingEOSDays:
		return models.RiskLevelWarning, models.EosStatusApproaching
	}
	return models.RiskLevelSafe, models.EosStatusActiveSupport
}

// DaysUntil counts UTC calendar days from now to eos. Both ends are
// truncated to midnight, so the division is exact.
func DaysUntil(eos, now time.Time) int {
	diff := utils.DateOnly(eos).Unix() - utils.DateOnly(now).Unix()
	return int(diff / secondsPerDay)
}

// ScoreRecord classifies rec as of now. An empty or unreadable EOS date
// scores as Safe with no day count.
func ScoreRecord(logger *logrus.Logger, rec models.NormalizedRecord, now time.Time) models.ScoredRecord {
	scored := models.ScoredRecord{NormalizedRecord: rec}

	raw := strings.TrimSpace(rec.EosDate)
	if raw != "" {
		if eos, ok := utils.ParseCanonicalDate(raw); ok {
			days := DaysUntil(eos, now)
			scored.DaysUntilEOS = &days
		} else if logger != nil {
			config.LogDegraded(logger, "eosWorkflow.go", "eosDate", raw, "unparseable EOS date scored as Active Support")
		}
	}
	scored.RiskScore, scored.EosStatus = ClassifyEOS(scored.DaysUntilEOS)
	return scored
}

func ScoreRecords(ctx context.Context, logger *logrus.Logger, recs []models.NormalizedRecord, now time.Time) []models.ScoredRecord {
	_, span := tracer.Start(ctx, "workflow.ScoreRecords")
	defer span.End()

	out := make([]models.ScoredRecord, len(recs))
	critical := 0
	for i, rec := range recs {
		out[i] = ScoreRecord(logger, rec, now)
		if out[i].RiskScore == models.RiskLevelCritical {
			critical++
		}
	}
	span.SetAttributes(
		attribute.Int("eos.records", len(recs)),
		attribute.Int("eos.critical", critical),
		attribute.String("eos.as_of", utils.DateOnly(now).Format(utils.DateLayout)),
	)
	return out
}

// ScoredCellValuers adapts scored records for ingest.WriteCsv / WriteXlsx in
// models.ScoredExportColumns order.
func ScoredCellValuers(recs []models.ScoredRecord) []ingest.CellValuer {
	out := make([]ingest.CellValuer, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}
