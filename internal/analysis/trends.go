// Package analysis produces the per-metric trend breakdown served by ANALYZE
// requests.
package analysis

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/forecast"
)

// MetricTrend summarizes the movement of one metric across a log series.
type MetricTrend struct {
	Direction        string  `json:"direction"`
	SlopePerDay      float64 `json:"slopePerDay"`
	ChangePercent    float64 `json:"changePercent"`
	Volatility       float64 `json:"volatility"`
	FlareCorrelation float64 `json:"flareCorrelation"`
	Samples          int     `json:"samples"`
	Mean             float64 `json:"mean"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
}

// TrendReport is the full metrics breakdown returned for an ANALYZE request.
type TrendReport struct {
	Trends map[string]MetricTrend `json:"trends"`
}

// Analyzer computes trend reports. Stateless and safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// stableSlopeRatio is the per-day slope, relative to the metric mean, below
// which a trend is reported as stable.
const stableSlopeRatio = 0.0025

// Analyze builds a trend for every metric that appears in the logs with at
// least two numeric observations.
func (a *Analyzer) Analyze(logs []domain.HealthLogEntry) TrendReport {
	report := TrendReport{Trends: make(map[string]MetricTrend)}

	flare := flareIndicator(logs)
	for _, metric := range metricNames(logs) {
		series, _ := forecast.MetricSeries(logs, metric)
		if len(series) < 2 {
			continue
		}
		report.Trends[metric] = metricTrend(series, pairedFlare(logs, metric, flare))
	}
	return report
}

func metricTrend(series []float64, flare []float64) MetricTrend {
	xs := make([]float64, len(series))
	for i := range xs {
		xs[i] = float64(i)
	}

	_, slope := stat.LinearRegression(xs, series, nil, false)
	mean, std := stat.MeanStdDev(series, nil)

	minVal, maxVal := series[0], series[0]
	for _, v := range series[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	change := 0.0
	if first := series[0]; first != 0 {
		change = (series[len(series)-1] - first) / math.Abs(first) * 100
	}

	correlation := 0.0
	if len(flare) == len(series) && len(flare) > 1 {
		if c := stat.Correlation(series, flare, nil); !math.IsNaN(c) {
			correlation = c
		}
	}

	volatility := 0.0
	if mean != 0 && !math.IsNaN(std) {
		volatility = std / math.Abs(mean)
	}

	return MetricTrend{
		Direction:        direction(slope, mean),
		SlopePerDay:      slope,
		ChangePercent:    change,
		Volatility:       volatility,
		FlareCorrelation: correlation,
		Samples:          len(series),
		Mean:             mean,
		Min:              minVal,
		Max:              maxVal,
	}
}

func direction(slope, mean float64) string {
	threshold := stableSlopeRatio * math.Abs(mean)
	if threshold == 0 {
		threshold = stableSlopeRatio
	}
	switch {
	case slope > threshold:
		return "rising"
	case slope < -threshold:
		return "falling"
	default:
		return "stable"
	}
}

// metricNames collects the union of numeric metric names, sorted for stable
// iteration. The flare flag is categorical and reported only as a correlate.
func metricNames(logs []domain.HealthLogEntry) []string {
	seen := make(map[string]struct{})
	for _, entry := range logs {
		for name := range entry.Metrics {
			if strings.EqualFold(name, "flare") {
				continue
			}
			if _, ok := entry.MetricValue(name); ok {
				seen[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flareIndicator maps each log entry to 1 when a flare was recorded that day.
func flareIndicator(logs []domain.HealthLogEntry) map[string]float64 {
	out := make(map[string]float64, len(logs))
	for _, entry := range logs {
		day := domain.DateOnly(entry.Date)
		if day == "" {
			continue
		}
		raw, ok := entry.Metrics["Flare"]
		if !ok {
			raw, ok = entry.Metrics["flare"]
		}
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if strings.EqualFold(strings.TrimSpace(v), "yes") {
				out[day] = 1
			} else {
				out[day] = 0
			}
		case bool:
			if v {
				out[day] = 1
			} else {
				out[day] = 0
			}
		case float64:
			out[day] = v
		}
	}
	return out
}

// pairedFlare aligns the flare indicator with the compacted metric series so
// correlation compares same-day observations.
func pairedFlare(logs []domain.HealthLogEntry, metric string, flare map[string]float64) []float64 {
	type observation struct {
		day  string
		date int64
	}

	observations := make([]observation, 0, len(logs))
	for _, entry := range logs {
		date, ok := domain.ParseDate(entry.Date)
		if !ok {
			continue
		}
		if _, ok := entry.MetricValue(metric); !ok {
			continue
		}
		observations = append(observations, observation{
			day:  domain.DateOnly(entry.Date),
			date: date.Unix(),
		})
	}
	sort.SliceStable(observations, func(i, j int) bool { return observations[i].date < observations[j].date })

	out := make([]float64, len(observations))
	for i, obs := range observations {
		out[i] = flare[obs.day]
	}
	return out
}
