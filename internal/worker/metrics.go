package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	responseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forecast_service",
		Subsystem: "worker",
		Name:      "responses_total",
		Help:      "Number of worker responses grouped by message type.",
	}, []string{"type"})

	readyCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forecast_service",
		Subsystem: "worker",
		Name:      "ready_total",
		Help:      "Number of WORKER_READY announcements; expected once per channel.",
	})
)

func init() {
	prometheus.MustRegister(responseCounter, readyCounter)
}

func recordResponse(msgType MessageType) {
	responseCounter.WithLabelValues(string(msgType)).Inc()
}

func recordReady() {
	readyCounter.Inc()
}
