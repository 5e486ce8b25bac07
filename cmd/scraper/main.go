package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/artifact"
	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/db"
	"github.com/david/estate-finder/internal/logging"
	"github.com/david/estate-finder/internal/notify"
	"github.com/david/estate-finder/internal/report"
	"github.com/david/estate-finder/internal/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "Scrape and score only; skip the database, artifacts and alerts")
	top := flag.Int("top", 10, "Number of matches to print when the run finishes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := notify.New(cfg.SMTP.Notify(), cfg.DashboardURL, logger)
	fail := func(msg string, err error) int {
		logger.Error(msg, zap.Error(err))
		if *dryRun {
			return 1
		}
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if nerr := notifier.NotifyFailure(alertCtx, fmt.Errorf("%s: %w", msg, err)); nerr != nil {
			logger.Error("failed to send failure alert", zap.Error(nerr))
		}
		return 1
	}

	var deps runner.Deps
	if !*dryRun {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fail("failed to connect to database", err)
		}
		defer pool.Close()

		if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
			return fail("migration failed", err)
		}

		blobs, err := artifact.NewFSStore(cfg.Storage.ArtifactDir)
		if err != nil {
			return fail("failed to open artifact store", err)
		}

		deps = runner.Deps{
			Store:     db.NewStore(pool),
			Artifacts: artifact.NewWriter(blobs, logger),
			Notifier:  notifier,
		}
	}

	pipeline, err := runner.Build(cfg, deps, logger)
	if err != nil {
		return fail("failed to build pipeline", err)
	}
	logger.Info("starting scrape", zap.String("mode", runner.Describe(cfg)), zap.Bool("dry_run", *dryRun))

	result, err := pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("scrape interrupted")
			return 1
		}
		return fail("scrape failed", err)
	}

	report.Properties(os.Stdout, result.Properties, *top)
	return 0
}
