package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/autoparts-backend/api/controllers"
	"github.com/angelmondragon/autoparts-backend/api/routes"
	"github.com/angelmondragon/autoparts-backend/internal/cart"
	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	"github.com/angelmondragon/autoparts-backend/internal/checkout"
	"github.com/angelmondragon/autoparts-backend/internal/inventory"
	"github.com/angelmondragon/autoparts-backend/internal/orders"
	"github.com/angelmondragon/autoparts-backend/internal/shipping"
	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	"github.com/angelmondragon/autoparts-backend/pkg/migrate"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	params, err := buildRouterParams(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}

func buildRouterParams(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (routes.RouterParams, error) {
	products := catalog.NewRepository(dbClient.DB())

	var source catalog.Source = catalog.NewDBSource(products)
	if cfg.Catalog.UsesRemote() {
		remote, err := catalog.NewRemoteSource(cfg.Services, nil, logg)
		if err != nil {
			return routes.RouterParams{}, err
		}
		source = remote
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Source:    source,
		Versions:  redisClient,
		Metrics:   metrics.NewCatalogMetrics(registry),
		Logger:    logg,
		CacheSize: cfg.Catalog.CacheSize,
		CacheTTL:  cfg.Catalog.CacheTTL,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	var lookup cart.ProductLookup = products
	if cfg.Catalog.UsesRemote() {
		lookup = catalog.NewProductLookup(catalogSvc)
	}

	estimator, err := newEstimator(cfg.Shipping)
	if err != nil {
		return routes.RouterParams{}, err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartSvc, err := cart.NewService(cartRepo, dbClient, lookup)
	if err != nil {
		return routes.RouterParams{}, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersClient, err := orders.NewClient(cfg.Services)
	if err != nil {
		return routes.RouterParams{}, err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Carts:     cartRepo,
		Orders:    ordersRepo,
		Products:  lookup,
		Submitter: ordersClient,
		Outbox:    outboxSvc,
		Shipping:  estimator,
		TaxRate:   cfg.Checkout.Rate(),
		Metrics:   metrics.NewCheckoutMetrics(registry),
		Logger:    logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}
	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}

	importer, err := inventory.NewImporter(inventory.ImporterParams{
		Tx:             dbClient,
		Products:       products,
		Prober:         inventory.NewHTTPProber(nil, cfg.Inventory.ProbeTimeout),
		Outbox:         outboxSvc,
		Cache:          catalogSvc,
		MinImageWidth:  cfg.Inventory.MinImageWidth,
		MinImageHeight: cfg.Inventory.MinImageHeight,
		Concurrency:    cfg.Inventory.ProbeConcurrency,
		Metrics:        metrics.NewInventoryMetrics(registry),
		Logger:         logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	return routes.RouterParams{
		Config:    cfg,
		Logger:    logg,
		Checks:    map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		Redis:     redisClient,
		Gatherer:  registry,
		Catalog:   catalogSvc,
		Shipping:  estimator,
		Carts:     cartSvc,
		Checkout:  checkoutSvc,
		Orders:    ordersSvc,
		Inventory: importer,
	}, nil
}

func newEstimator(cfg config.ShippingConfig) (*shipping.Estimator, error) {
	if cfg.RateTablePath == "" {
		return shipping.NewEstimator(nil), nil
	}
	table, err := shipping.LoadRateTable(cfg.RateTablePath)
	if err != nil {
		return nil, err
	}
	return shipping.NewEstimator(table), nil
}
