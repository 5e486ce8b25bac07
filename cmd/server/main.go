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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/estate-finder/internal/api"
	"github.com/david/estate-finder/internal/artifact"
	"github.com/david/estate-finder/internal/auth"
	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/db"
	"github.com/david/estate-finder/internal/logging"
	"github.com/david/estate-finder/internal/notify"
	"github.com/david/estate-finder/internal/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := serve(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store := db.NewStore(pool)
	blobs, err := artifact.NewFSStore(cfg.Storage.ArtifactDir)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(cfg.Server.AdminPasswordHash, cfg.Server.JWTSecret, logger)
	if err != nil {
		return err
	}

	pipeline, err := runner.Build(cfg, runner.Deps{
		Store:     store,
		Artifacts: artifact.NewWriter(blobs, logger),
		Notifier:  notify.New(cfg.SMTP.Notify(), cfg.DashboardURL, logger),
	}, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(store, blobs, authSvc, pipeline.Run, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RunTimeout:     cfg.Server.RunTimeout(),
	}, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("shutting down")
		srv.CancelRunningJob(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
