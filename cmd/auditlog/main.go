// Command auditlog consumes directory events from Kafka and writes them to
// the structured log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/dexapp/internal/directory/config"
	"github.com/gartstein/dexapp/internal/directory/events"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if !cfg.KafkaEnabled() {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.Topic, logger)
	defer consumer.Close()
	consumer.RegisterHandler(events.AuditLogHandler(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Audit log consumer started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.KafkaGroupID))
	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("Audit log consumer stopped")
}
