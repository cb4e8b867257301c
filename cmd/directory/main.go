package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/dexapp/internal/directory/auth"
	"github.com/gartstein/dexapp/internal/directory/config"
	"github.com/gartstein/dexapp/internal/directory/controller"
	"github.com/gartstein/dexapp/internal/directory/db"
	"github.com/gartstein/dexapp/internal/directory/events"
	"github.com/gartstein/dexapp/internal/directory/handlers"
	"github.com/gartstein/dexapp/internal/directory/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// eventProducer is what the service needs from a producer plus shutdown.
type eventProducer interface {
	controller.EventProducer
	Close()
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		// Sync on stderr returns EINVAL on some platforms; nothing to act on.
		_ = logger.Sync()
	}(logger)

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	repo, err := connectDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	producer := initProducer(cfg, logger)
	defer producer.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	directorySvc := controller.NewDirectoryService(repo, producer, m, logger)
	directoryHandler := handlers.NewDirectoryHandler(directorySvc, logger)

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret, handlers.ProtectedMethods()...)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger,
		grpc.ChainUnaryInterceptor(m.UnaryInterceptor(), authInterceptor.Unary()))
	server.RegisterGRPCHandler(directoryHandler)

	if err := server.RegisterHTTPGateway(
		[]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		cfg.JWTSecret,
		prometheus.DefaultGatherer,
	); err != nil {
		logger.Fatal("Failed to register HTTP gateway", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, errCh, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// connectDatabase opens the repository, retrying while the database starts.
func connectDatabase(cfg *config.Config, logger *zap.Logger) (*db.Repository, error) {
	dbConf := &db.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute

	var repo *db.Repository
	err := backoff.RetryNotify(func() error {
		var err error
		repo, err = db.NewRepository(dbConf)
		return err
	}, bo, func(err error, next time.Duration) {
		logger.Warn("database not ready, retrying", zap.Error(err), zap.Duration("next", next))
	})
	return repo, err
}

// initProducer connects to Kafka, or discards events when no brokers are set.
func initProducer(cfg *config.Config, logger *zap.Logger) eventProducer {
	if !cfg.KafkaEnabled() {
		logger.Info("no Kafka brokers configured, events are discarded")
		return events.NewNopProducer(logger)
	}
	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	return producer
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, or the
// servers fail, then shuts down.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	server.Stop()
	logger.Info("Servers stopped properly")
}
