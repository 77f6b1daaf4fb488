package models

import (
	"encoding/json"
	"errors"
)

type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "Critical"
	RiskLevelWarning  RiskLevel = "Warning"
	RiskLevelSafe     RiskLevel = "Safe"
	RiskLevelUnknown  RiskLevel = "Unknown"
)

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelCritical, RiskLevelWarning, RiskLevelSafe, RiskLevelUnknown:
		return true
	}
	return false
}

// convert input to enum type
func (r *RiskLevel) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("risk level must be string")
	}
	switch str {
	case "Critical":
		*r = RiskLevelCritical
	case "Warning":
		*r = RiskLevelWarning
	case "Safe":
		*r = RiskLevelSafe
	case "Unknown", "":
		*r = RiskLevelUnknown
	default:
		return errors.New("invalid risk level")
	}
	return nil
}

type EosStatus string

const (
	EosStatusPast          EosStatus = "Past EOS"
	EosStatusApproaching   EosStatus = "Approaching EOS"
	EosStatusActiveSupport EosStatus = "Active Support"
)

func (s *EosStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("eos status must be string")
	}
	eosStatus := map[string]EosStatus{
		"Past EOS":        EosStatusPast,
		"Approaching EOS": EosStatusApproaching,
		"Active Support":  EosStatusActiveSupport,
	}
	var ok bool
	*s, ok = eosStatus[str]
	if !ok {
		return errors.New("invalid eos status")
	}
	return nil
}

type BatchKind string

const (
	BatchKindAuritasViz BatchKind = "auritas_viz"
	BatchKindInventory  BatchKind = "inventory"
)
