package availability

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/forecast/internal/domain"
)

var (
	checksCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forecast_service",
		Subsystem: "availability",
		Name:      "checks_total",
		Help:      "Number of sufficiency checks grouped by outcome.",
	}, []string{"outcome"})

	distinctDaysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecast_service",
		Subsystem: "availability",
		Name:      "last_distinct_days",
		Help:      "Distinct-day count reported by the most recent sufficiency check.",
	})
)

func init() {
	prometheus.MustRegister(checksCounter, distinctDaysGauge)
}

func recordCheck(result domain.ConditionAvailability) {
	outcome := "insufficient"
	switch {
	case result.Available:
		outcome = "available"
	case isErrorMessage(result.Message):
		outcome = "error"
	}
	checksCounter.WithLabelValues(outcome).Inc()
	distinctDaysGauge.Set(float64(result.Days))
}

func isErrorMessage(message string) bool {
	const prefix = "Error checking data:"
	return len(message) >= len(prefix) && message[:len(prefix)] == prefix
}
