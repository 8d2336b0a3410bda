package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	availabilityCheckGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecast_service",
		Subsystem: "pipeline",
		Name:      "last_availability_check_timestamp_seconds",
		Help:      "Unix timestamp of the most recent sufficiency check.",
	})
	forecastComputedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecast_service",
		Subsystem: "pipeline",
		Name:      "last_forecast_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed forecast dispatch.",
	})
)

func init() {
	prometheus.MustRegister(availabilityCheckGauge, forecastComputedGauge)
}

// RecordAvailabilityChecked updates the sufficiency-check watermark gauge.
func RecordAvailabilityChecked() {
	availabilityCheckGauge.Set(float64(time.Now().Unix()))
}

// RecordForecastComputed updates the forecast watermark gauge.
func RecordForecastComputed() {
	forecastComputedGauge.Set(float64(time.Now().Unix()))
}
