package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"costindex/internal/amqp"
	"costindex/internal/cli"
	"costindex/internal/fred"
	"costindex/internal/metrics"
	"costindex/internal/services"
	gsheet "costindex/internal/sheets/google"
	"costindex/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "refresh all tracked series once and exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting refresh-worker", "once", *once)

	startCtx := context.Background()
	db := cli.OpenBackend(startCtx, logger, cfg)

	fetcher, err := fred.NewClient(cfg.FREDAPIKey,
		fred.WithBaseURL(cfg.FREDBaseURL),
		fred.WithHTTPClient(&http.Client{Timeout: cfg.FREDTimeout}))
	if err != nil {
		logger.Error("Failed to initialize FRED client", "error", err)
		os.Exit(1)
	}

	var rec *metrics.Recorder
	if cfg.MetricsEnabled && !*once {
		rec = metrics.New()
	}

	opts := worker.Options{
		Series:           cfg.RefreshSeries,
		NationalSeriesID: cfg.NationalSeriesID,
		Concurrency:      cfg.RefreshConcurrency,
		Metrics:          rec,
	}
	if cfg.ExportEnabled() {
		exporter, err := gsheet.NewExporter(startCtx, cfg.GoogleSpreadsheetID, cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		opts.Exporter = exporter
		opts.Dashboards = services.NewDashboardService(db.Store, db.Store, nil, rec, services.DashboardConfig{
			NationalSeriesID: cfg.NationalSeriesID,
			DriversLookback:  cfg.DriversLookback,
			DriversTopK:      cfg.DriversTopK,
		})
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	refresher := worker.NewRefreshWorker(fetcher, db.Store, db.Store, opts)

	if *once {
		report, err := refresher.RefreshAll(startCtx, worker.TriggerStartup)
		_ = db.Close()
		if err != nil {
			logger.Error("Refresh finished with errors", "error", err, "failed", report.Failed)
			os.Exit(1)
		}
		return
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - only scheduled refreshes will run")
	}

	var metricsServer *http.Server
	if rec != nil {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", rec.Handler())
		metricsServer = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsServer != nil {
			_ = metricsServer.Shutdown(ctx)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
	})

	logger.Info("Performing startup refresh...")
	if _, err := refresher.RefreshAll(ctx, worker.TriggerStartup); err != nil {
		logger.Error("Startup refresh finished with errors", "error", err)
	}

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeRefresh(ctx, refresher.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	refresher.Run(ctx, cfg.RefreshInterval)

	cli.WaitForShutdown(ctx, done)
	if err := db.Close(); err != nil {
		logger.Warn("Backend close error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
