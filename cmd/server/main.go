package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/api"
	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/mirror"
	"github.com/pestofarm/storefront/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	decimal.MarshalJSONWithoutQuotes = true

	logger.Info("Starting storefront server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("mirror", cfg.Mirror.Driver),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := mirror.Open(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Fatal("Failed to open mirror", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close mirror", zap.Error(err))
		}
	}()

	remote := backend.NewClient(cfg.Backend, logger.Named("backend"))
	if cfg.Backend.BaseURL == "" {
		logger.Warn("BACKEND_URL is empty, every change stays local")
	}

	svc, err := service.NewServices(cfg, remote, store, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	router := api.NewRouter(cfg, svc, logger)

	// WriteTimeout stays zero so chat streams are not cut off
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
