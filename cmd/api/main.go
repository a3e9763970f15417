package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/config"
	"github.com/ariefcatur/go-order-intake/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-intake/internal/kafka"
	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/memstore"
	"github.com/ariefcatur/go-order-intake/internal/observability"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/ariefcatur/go-order-intake/internal/postgres"
	"github.com/ariefcatur/go-order-intake/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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
		logger.Fatal("api stopped", zap.Error(err))
	}
	logger.Info("api stopped")
}

type stores struct {
	products interface {
		catalog.Store
		orders.Inventory
	}
	orders orders.OrderStore
	close  func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return stores{products: memstore.NewProducts(), orders: memstore.NewOrders(), close: func() {}}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return stores{}, err
		}
	}
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	return stores{
		products: postgres.NewProductStore(pool),
		orders:   postgres.NewOrderStore(pool),
		close:    pool.Close,
	}, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	reg := observability.NewRegistry()
	metrics := observability.NewMetrics(reg)

	opts := []orders.Option{orders.WithRecorder(metrics)}
	if cfg.KafkaEnabled {
		placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, logger)
		failed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicLedgerFailed, 256, logger)
		placed.Start()
		failed.Start()
		// runs after g.Wait, once in-flight requests have drained
		defer func() {
			placed.Close()
			failed.Close()
			placed.WaitClosed()
			failed.WaitClosed()
		}()
		opts = append(opts, orders.WithNotifier(&orders.EventNotifier{
			Placed:  placed,
			Failed:  failed,
			Service: cfg.ServiceName,
		}))
	}

	var idem httpx.Idempotency
	if cfg.RedisEnabled {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		idem = redisx.NewIdempotency(rdb)
	}

	cat := catalog.NewService(st.products, logger)
	svc := orders.NewService(
		orders.NewEngine(st.products, cfg.ReservationTimeout, logger),
		orders.NewLedger(st.orders),
		logger,
		opts...,
	)
	pager := page.Calculator{Policy: page.Policy(cfg.PageNextPolicy)}

	routerCfg := httpx.RouterConfig{
		Service:        cfg.ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		Ready:          cat,
	}
	if cfg.MetricsAddr == "" {
		routerCfg.Metrics = observability.Handler(reg)
	}
	router := httpx.NewRouter(logger, routerCfg)
	httpx.NewProductsHandler(cat, pager, logger).Register(router)
	httpx.NewOrdersHandler(svc, cat, idem, pager, logger).Register(router)

	servers := []*http.Server{{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("http listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
