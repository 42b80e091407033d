package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/sykell/link-health/internal/api"
	"github.com/sykell/link-health/internal/bootstrap"
	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "link-health: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Initialize database and scan components
	log.Info("Initializing components...", logger.String("db_driver", cfg.Database.Driver))
	components, err := bootstrap.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			log.Error("Failed to close connections", logger.Error(closeErr))
		}
	}()

	// Initialize background scans
	bg, err := bootstrap.SetupBackground(components, log)
	if err != nil {
		return err
	}
	if err := bg.Queue.Start(); err != nil {
		return fmt.Errorf("start scan queue: %w", err)
	}
	if bg.Scheduler != nil {
		bg.Scheduler.Start()
		log.Info("Scheduled scans enabled", logger.String("cron", cfg.Schedule.Cron))
	}

	// Initialize Gin router
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(api.Deps{
		DB:                 components.DB,
		Links:              components.Links,
		Scanner:            components.Scanner,
		Notifier:           components.Notifier,
		Auth:               cfg.Auth,
		SingleScanInterval: cfg.Scanner.SingleScanInterval,
		Metrics:            components.Metrics,
		Gatherer:           components.Registry,
		Log:                log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			log.Error("Failed to start server", logger.Error(err))
		}
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if bg.Scheduler != nil {
		bg.Scheduler.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	if err := bg.Queue.Stop(); err != nil {
		log.Error("Failed to stop scan queue", logger.Error(err))
	}

	log.Info("Server exited")
	return nil
}
