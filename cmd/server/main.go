package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/bootstrap"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/app"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	app.SetGinMode(cfg)

	logger.Info("Starting MealBuddy backend",
		zap.String("version", version),
		zap.String("build_time", buildTime),
	)

	srv, err := bootstrap.Boot(context.Background(), cfg, bootstrap.WithLogger(logger))
	if err != nil {
		logger.Error("Boot failed", zap.String("reason", bootstrap.Describe(err)), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped", zap.Error(err))
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}
