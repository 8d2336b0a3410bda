package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/forecast/internal/analysis"
	"example.com/forecast/internal/api"
	"example.com/forecast/internal/auth"
	"example.com/forecast/internal/availability"
	"example.com/forecast/internal/config"
	"example.com/forecast/internal/forecast"
	"example.com/forecast/internal/logging"
	persistence "example.com/forecast/internal/persistence/postgres"
	httptransport "example.com/forecast/internal/transport/http"
	"example.com/forecast/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	checker := availability.NewChecker(repo, logger.With().Str("component", "availability").Logger())

	engine := forecast.NewEngine(logger.With().Str("component", "forecast").Logger())
	dispatcher := worker.NewDispatcher(engine, analysis.NewAnalyzer(), logger.With().Str("component", "worker").Logger())
	channel := worker.NewChannel(dispatcher, logger.With().Str("component", "worker").Logger())
	channel.Start(ctx)

	client := worker.NewClient(channel, logger.With().Str("component", "worker-client").Logger())
	go client.Run()

	handler := api.NewHandler(checker, client, cfg.ForecastTimeout)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	requestLogger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		IdleTimeout:  60 * time.Second,
		ForecastWait: cfg.ForecastTimeout,
	}, authMiddleware.Wrap(requestLogger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("forecast-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
}
