package utils

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const DateLayout = "2006-01-02"

// ParseLooseDate is the "generic date-time" parser shared by transforms and
// normalization. Inputs without a zone are read as UTC; the result is always
// in UTC. Bare digit runs are dates only as YYYY or YYYYMMDD, never epochs.
func ParseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if allDigits(s) && len(s) != 4 && len(s) != 8 {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseCanonicalDate parses YYYY-MM-DD first and falls back to ParseLooseDate.
func ParseCanonicalDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return t, true
	}
	return ParseLooseDate(s)
}

// DateOnly truncates t to midnight UTC of its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
