package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/enrichment"
	"github.com/mmdatafocus/clearview_backend/models"
)

type EOSPredictor interface {
	PredictEOS(ctx context.Context, items []enrichment.EOSQuery) ([]*enrichment.EOSPrediction, error)
}

// ScoreWithPredictions scores recs as of now, first asking predictor for an
// EOS date on every record that has none. Records the predictor cannot answer
// for, or any batch that fails, are scored from local data only.
func ScoreWithPredictions(ctx context.Context, logger *logrus.Logger, predictor EOSPredictor, recs []models.NormalizedRecord, now time.Time) []models.ScoredRecord {
	ctx, span := tracer.Start(ctx, "workflow.ScoreWithPredictions")
	defer span.End()

	filled := make([]models.NormalizedRecord, len(recs))
	copy(filled, recs)
	predicted := map[int]*enrichment.EOSPrediction{}

	var missing []int
	for i, rec := range recs {
		if rec.EosDate == "" {
			missing = append(missing, i)
		}
	}
	for start := 0; start < len(missing) && predictor != nil; start += enrichment.MaxBatchEntries {
		end := min(start+enrichment.MaxBatchEntries, len(missing))
		batch := missing[start:end]
		items := make([]enrichment.EOSQuery, len(batch))
		for j, idx := range batch {
			items[j] = enrichment.EOSQuery{Vendor: recs[idx].Vendor, Product: recs[idx].Product, Version: recs[idx].Version}
		}
		preds, err := predictor.PredictEOS(ctx, items)
		if err != nil {
			if logger != nil {
				config.LogError(logger, "predictWorkflow.go", "ScoreWithPredictions", "EOS prediction failed, scoring locally", len(items), err)
			}
			continue
		}
		for j, idx := range batch {
			if j < len(preds) && preds[j] != nil {
				filled[idx].EosDate = preds[j].EosDate
				predicted[idx] = preds[j]
			}
		}
	}

	scored := ScoreRecords(ctx, logger, filled, now)
	for idx, p := range predicted {
		scored[idx].EosPredicted = true
		scored[idx].EosConfidence = p.Confidence
	}
	span.SetAttributes(
		attribute.Int("eos.missing", len(missing)),
		attribute.Int("eos.predicted", len(predicted)),
	)
	return scored
}
