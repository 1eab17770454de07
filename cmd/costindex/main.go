package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"costindex/internal/amqp"
	"costindex/internal/cache"
	"costindex/internal/cli"
	apphttp "costindex/internal/http"
	"costindex/internal/metrics"
	"costindex/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	startCtx := context.Background()
	db := cli.OpenBackend(startCtx, logger, cfg)

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	dashboards := cache.NewLRUCache[services.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(dashboards)

	// publisher stays a nil interface when AMQP is disabled or unreachable.
	var publisher services.RefreshPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, new baskets will wait for the next scheduled refresh", "error", err)
		} else {
			amqpClient = c
			publisher = c
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	dashboardService := services.NewDashboardService(db.Store, db.Store, dashboards, rec, services.DashboardConfig{
		NationalSeriesID: cfg.NationalSeriesID,
		DriversLookback:  cfg.DriversLookback,
		DriversTopK:      cfg.DriversTopK,
	})
	basketService := services.NewBasketService(db.Store, publisher, dashboardService)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Baskets:    basketService,
		Dashboards: dashboardService,
		Series:     db.Store,
		Lister:     db.Store,
		Pinger:     db.Store,
		Metrics:    rec,
		Logger:     logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := db.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})
	cacheManager.Start(ctx, time.Minute)

	logger.Info("Starting costindex server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"metrics", cfg.MetricsEnabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
