// Package domain defines the value types shared across the forecasting pipeline.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// HealthLogEntry is one calendar-day record contributed by one user. Metric
// values arrive untyped from JSON imports and older CSV exports, so they are
// coerced on access rather than at decode time.
type HealthLogEntry struct {
	Date             string         `json:"date"`
	UserID           string         `json:"userId,omitempty"`
	MedicalCondition string         `json:"medicalCondition,omitempty"`
	Metrics          map[string]any `json:"metrics"`
	Notes            string         `json:"notes,omitempty"`
}

// MetricValue returns the named metric coerced to a float, reporting whether
// the entry carries a usable numeric value for it.
func (e HealthLogEntry) MetricValue(metric string) (float64, bool) {
	raw, ok := e.Metrics[metric]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// DateOnly strips any time component from a log date string, returning the
// calendar-date prefix. Older exports stored timestamps ("2024-01-10T08:30:00Z"
// or "2024-01-10 08:30:00"); day counting must treat those as plain dates.
func DateOnly(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexAny(s, "T "); idx > 0 {
		s = s[:idx]
	}
	return s
}

// ParseDate parses the calendar-date prefix of a log date string.
func ParseDate(raw string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, DateOnly(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
