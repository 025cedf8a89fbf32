package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/madridclima/weather-etl/internal/adapter/aemet"
	"github.com/madridclima/weather-etl/internal/adapter/csvstore"
	httpadapter "github.com/madridclima/weather-etl/internal/adapter/http"
	kafkaadapter "github.com/madridclima/weather-etl/internal/adapter/kafka"
	"github.com/madridclima/weather-etl/internal/collector"
	"github.com/madridclima/weather-etl/internal/config"
	"github.com/madridclima/weather-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := aemet.NewClient(cfg.AEMETAPIKey, cfg.AEMETTimeout, cfg.AEMETMaxRetries, logger)
	store := csvstore.New(logger)

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var publisher collector.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	c := collector.New(client, store, publisher, cfg, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, c, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start collection loop.
	go func() {
		if err := c.Run(ctx); err != nil {
			logger.Error("collector error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
