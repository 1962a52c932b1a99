package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	"github.com/angelmondragon/autoparts-backend/internal/inventory"
	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	"github.com/angelmondragon/autoparts-backend/pkg/migrate"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/redis"
)

// Exit codes: 1 setup failure, 2 file rejected.
const (
	exitSetup    = 1
	exitRejected = 2
)

func main() {
	path := flag.String("file", "", "path to the product CSV")
	dryRun := flag.Bool("dry-run", false, "validate and report without writing")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "catalog-import", Output: os.Stderr})
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: catalog-import -file productos.csv [-dry-run]")
		os.Exit(exitSetup)
	}

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(exitSetup)
	}
	logg = logger.New(logger.Options{
		ServiceName: "catalog-import",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	os.Exit(run(cfg, logg, *path, *dryRun))
}

func run(cfg *config.Config, logg *logger.Logger, path string, dryRun bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"file": path, "dry_run": dryRun})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return exitSetup
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return exitSetup
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return exitSetup
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	products := catalog.NewRepository(dbClient.DB())
	cache, err := catalog.NewService(catalog.ServiceParams{
		Source:   catalog.NewDBSource(products),
		Versions: redisClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build catalog cache", err)
		return exitSetup
	}

	importer, err := inventory.NewImporter(inventory.ImporterParams{
		Tx:             dbClient,
		Products:       products,
		Prober:         inventory.NewHTTPProber(nil, cfg.Inventory.ProbeTimeout),
		Outbox:         outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Cache:          cache,
		MinImageWidth:  cfg.Inventory.MinImageWidth,
		MinImageHeight: cfg.Inventory.MinImageHeight,
		Concurrency:    cfg.Inventory.ProbeConcurrency,
		Metrics:        metrics.NewInventoryMetrics(prometheus.NewRegistry()),
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build importer", err)
		return exitSetup
	}

	file, err := os.Open(path)
	if err != nil {
		logg.Error(ctx, "failed to open csv", err)
		return exitSetup
	}
	defer file.Close()

	report, err := importer.Import(ctx, file, inventory.Options{DryRun: dryRun})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			printRejections(err)
			return exitRejected
		}
		logg.Error(ctx, "import failed", err)
		return exitSetup
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil && !errors.Is(err, os.ErrClosed) {
		logg.Error(ctx, "failed to write report", err)
		return exitSetup
	}
	return 0
}

func printRejections(err error) {
	var rows []inventory.RowError
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			rows, _ = details["errors"].([]inventory.RowError)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "file rejected: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "file rejected, %d problem(s):\n", len(rows))
	for _, row := range rows {
		fmt.Fprintf(os.Stderr, "  %s\n", row.Error())
	}
}
