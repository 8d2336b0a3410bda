package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/forecast/internal/analysis"
	"example.com/forecast/internal/config"
	"example.com/forecast/internal/consumer"
	"example.com/forecast/internal/forecast"
	"example.com/forecast/internal/logging"
	"example.com/forecast/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := forecast.NewEngine(logger.With().Str("component", "forecast").Logger())
	dispatcher := worker.NewDispatcher(engine, analysis.NewAnalyzer(), logger.With().Str("component", "worker").Logger())

	producer := consumer.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		logger.Info().Str("address", cfg.MetricsAddress).Msg("worker metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.RequestTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := consumer.NewProcessor(reader, producer, dispatcher, cfg.ResultTopic, logger.With().Str("component", "consumer").Logger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		logger.Info().
			Str("topic", cfg.RequestTopic).
			Str("group", cfg.ConsumerGroupID).
			Msg("forecast worker started")
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("worker stopped with error")
		}
	}()

	<-stop
	logger.Info().Msg("worker shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}

	wg.Wait()
}
