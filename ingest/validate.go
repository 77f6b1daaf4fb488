package ingest

import (
	"errors"
	"strings"
)

var (
	ErrEmptyCsv   = errors.New("CSV text is empty")
	ErrNoDataRows = errors.New("CSV must have at least a header and one data row")
)

// ValidateCsvText rejects text that cannot hold a header plus one data row.
// It runs before any parsing or transform work.
func ValidateCsvText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyCsv
	}
	lines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
			if lines >= 2 {
				return nil
			}
		}
	}
	return ErrNoDataRows
}
