package consumer

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/forecast/internal/worker"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forecast_service",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka request messages handled, by response type.",
	}, []string{"topic", "response_type"})

	publishErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forecast_service",
		Subsystem: "consumer",
		Name:      "publish_errors_total",
		Help:      "Number of result publish failures per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, publishErrorCounter)
}

func recordProcessed(topic string, responseType worker.MessageType) {
	processedCounter.WithLabelValues(topic, string(responseType)).Inc()
}

func recordPublishError(topic string) {
	publishErrorCounter.WithLabelValues(topic).Inc()
}
