package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-intake/internal/config"
	"github.com/ariefcatur/go-order-intake/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-intake/internal/kafka"
	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/observability"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/postgres"
	"github.com/ariefcatur/go-order-intake/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("inventory worker stopped", zap.Error(err))
	}
	logger.Info("inventory worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Store != config.StorePostgres {
		return errors.New("inventory worker needs STORE_DRIVER=postgres")
	}
	if !cfg.KafkaEnabled {
		return errors.New("inventory worker needs KAFKA_ENABLED=true")
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName+"-inventory", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	released := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReleased, 256, logger)
	released.Start()
	defer func() {
		released.Close()
		released.WaitClosed()
	}()

	svc := &inventory.Service{
		Stock:       postgres.NewProductStore(pool),
		Orders:      postgres.NewOrderStore(pool),
		Released:    released,
		ServiceName: cfg.ServiceName + "-inventory",
		Logger:      logger,
	}
	if cfg.RedisEnabled {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		svc.Dedup = redisx.NewDedup(rdb, "inventory")
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicLedgerFailed, cfg.InventoryWorkers, logger)
	logger.Info("inventory consumer started",
		zap.String("group", cfg.InventoryGroup),
		zap.String("topic", orders.TopicLedgerFailed),
		zap.Int("workers", cfg.InventoryWorkers),
	)
	return cons.Start(ctx, svc.HandleLedgerFailed)
}
