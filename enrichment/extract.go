package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
)

type SoftwareInfo struct {
	Vendor     string   `json:"vendor"`
	Product    string   `json:"product"`
	Edition    string   `json:"edition,omitempty"`
	Version    string   `json:"version"`
	Confidence *float64 `json:"confidence,omitempty"`
	Normalized bool     `json:"normalized"`
}

type softwareSlot struct {
	Manufacturer looseString `json:"manufacturer"`
	Vendor       looseString `json:"vendor"`
	Product      looseString `json:"product"`
	Edition      looseString `json:"edition"`
	Version      looseString `json:"version"`
	Confidence   *float64    `json:"confidence"`
}

const extractPrompt = `You are a software inventory parser. For each text in the JSON array below, extract the manufacturer, product name, edition and version.
Return ONLY a JSON array with exactly %d objects in the same order as the input, each with this format:
{"manufacturer": "...", "product": "...", "edition": "...", "version": "...", "confidence": 0.95}
Use an empty string for a field you cannot determine. confidence is a number between 0 and 1.

Texts: %s`

// ExtractSoftware asks the model to split each entry into vendor, product,
// edition and version. The result has one slot per entry; a slot is nil when
// the model's answer for it was unusable.
func (s *Service) ExtractSoftware(ctx context.Context, entries []string) ([]*SoftwareInfo, error) {
	if len(entries) > MaxBatchEntries {
		return nil, ErrTooManyEntries
	}
	if len(entries) == 0 {
		return []*SoftwareInfo{}, nil
	}
	key, err := Fingerprint("extract-software", entries)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	slots, err := s.complete(ctx, key, fmt.Sprintf(extractPrompt, len(entries), payload), len(entries))
	if err != nil {
		return nil, err
	}

	out := make([]*SoftwareInfo, len(entries))
	for i, raw := range slots {
		out[i] = decodeSoftwareSlot(raw)
	}
	return out, nil
}

func decodeSoftwareSlot(raw json.RawMessage) *SoftwareInfo {
	if len(raw) == 0 {
		return nil
	}
	var slot softwareSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return nil
	}
	vendor := string(slot.Manufacturer)
	if vendor == "" {
		vendor = string(slot.Vendor)
	}
	info := &SoftwareInfo{
		Vendor:     vendor,
		Product:    string(slot.Product),
		Edition:    string(slot.Edition),
		Version:    string(slot.Version),
		Confidence: unitConfidence(slot.Confidence),
		Normalized: true,
	}
	if info.Vendor == "" && info.Product == "" && info.Version == "" {
		return nil
	}
	return info
}

// ExtractOrFallback never fails on the model: a failed call or an unusable
// slot is replaced by FallbackExtraction. Only ErrTooManyEntries is returned.
func (s *Service) ExtractOrFallback(ctx context.Context, entries []string) ([]SoftwareInfo, error) {
	if len(entries) > MaxBatchEntries {
		return nil, ErrTooManyEntries
	}
	var infos []*SoftwareInfo
	if s.Configured() {
		var err error
		infos, err = s.ExtractSoftware(ctx, entries)
		if err != nil && s.Logger != nil {
			s.Logger.WithField("entries", len(entries)).Warnf("enrichment failed, using local extraction: %v", err)
		}
	}

	out := make([]SoftwareInfo, len(entries))
	for i, entry := range entries {
		if i < len(infos) && infos[i] != nil {
			out[i] = *infos[i]
			continue
		}
		out[i] = FallbackExtraction(entry)
	}
	return out, nil
}
