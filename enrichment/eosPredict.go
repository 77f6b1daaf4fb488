package enrichment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmdatafocus/clearview_backend/utils"
)

type EOSQuery struct {
	Vendor  string `json:"vendor" validate:"required_without=Product"`
	Product string `json:"product" validate:"required_without=Vendor"`
	Version string `json:"version"`
}

type EOSPrediction struct {
	EosDate    string   `json:"eosDate"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type eosSlot struct {
	EosDate    looseString `json:"eosDate"`
	Confidence *float64    `json:"confidence"`
}

const predictPrompt = `You are a software lifecycle expert. For each product in the JSON array below, give the vendor's published end-of-support date.
Return ONLY a JSON array with exactly %d objects in the same order as the input, each with this format:
{"eosDate": "YYYY-MM-DD", "confidence": 0.8}
Use an empty string for eosDate when you do not know it. confidence is a number between 0 and 1.

Products: %s`

// PredictEOS asks the model for an end-of-support date per item. A slot is nil
// when the answer is missing or is not a date.
func (s *Service) PredictEOS(ctx context.Context, items []EOSQuery) ([]*EOSPrediction, error) {
	if len(items) > MaxBatchEntries {
		return nil, ErrTooManyEntries
	}
	if len(items) == 0 {
		return []*EOSPrediction{}, nil
	}
	key, err := Fingerprint("predict-eos", items)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	slots, err := s.complete(ctx, key, fmt.Sprintf(predictPrompt, len(items), payload), len(items))
	if err != nil {
		return nil, err
	}

	out := make([]*EOSPrediction, len(items))
	for i, raw := range slots {
		out[i] = decodeEOSSlot(raw)
	}
	return out, nil
}

func decodeEOSSlot(raw json.RawMessage) *EOSPrediction {
	if len(raw) == 0 {
		return nil
	}
	var slot eosSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return nil
	}
	t, ok := utils.ParseCanonicalDate(string(slot.EosDate))
	if !ok {
		return nil
	}
	return &EOSPrediction{
		EosDate:    t.Format(utils.DateLayout),
		Confidence: unitConfidence(slot.Confidence),
	}
}
