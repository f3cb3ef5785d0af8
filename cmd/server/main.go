// Package main is the entry point for the cost intelligence server
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/api/rest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/collector"
	"github.com/AwesomeGRV/CloudCostGuard/internal/config"
	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/AwesomeGRV/CloudCostGuard/internal/report"
	"github.com/AwesomeGRV/CloudCostGuard/internal/scheduler"
	"github.com/AwesomeGRV/CloudCostGuard/internal/storage"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting cost intelligence server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to the database and apply the schema
	dbConfig := storage.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db, err := storage.New(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(schemaCtx); err != nil {
		cancelSchema()
		slog.Error("Failed to apply database schema", "error", err)
		os.Exit(1)
	}
	cancelSchema()

	repo := storage.NewRepository(db, cfg.ClusterName)

	// Analysis policies
	thresholds := efficiency.Thresholds{
		Poor: cfg.Policy.EfficiencyPoorBelow,
		Good: cfg.Policy.EfficiencyGoodAbove,
	}
	forecastPolicy := trend.Policy{
		StableBandPct: cfg.Policy.StableBandPct,
		HighCV:        cfg.Policy.HighConfidenceCV,
		MediumCV:      cfg.Policy.MediumConfidenceCV,
	}
	generator := recommend.NewGenerator(recommend.Policy{
		Thresholds:           thresholds,
		MinSavings:           cfg.Policy.MinSavings,
		PrioritySavingsRatio: cfg.Policy.PrioritySavingsRatio,
		MinSamples:           cfg.Policy.MinSamples,
		CPUReduction:         cfg.Policy.CPUReduction,
		MemoryReduction:      cfg.Policy.MemoryReduction,
		StorageReduction:     cfg.Policy.StorageReduction,
		HeadroomFactor:       cfg.Policy.HeadroomFactor,
	})

	// Collectors
	fetchCfg := collector.Config{
		Timeout: cfg.Collector.Timeout,
		Retries: cfg.Collector.Retries,
	}

	var costFetcher *collector.Fetcher
	if cfg.Azure.Enabled {
		azureClient, err := collector.NewAzureCostClient(
			cfg.Azure.SubscriptionID, cfg.Azure.TenantID,
			cfg.Azure.ClientID, cfg.Azure.ClientSecret,
		)
		if err != nil {
			slog.Warn("Azure collection disabled", "error", err)
		} else {
			costFetcher = collector.NewFetcher(fetchCfg,
				[]collector.CostSource{collector.NewAzureSource(azureClient)}, nil)
		}
	}

	var usageFetcher *collector.Fetcher
	promSource, err := collector.NewPrometheusSource(cfg.PrometheusURL, cfg.ClusterName)
	if err != nil {
		slog.Warn("Kubernetes collection disabled", "error", err)
	} else {
		usageFetcher = collector.NewFetcher(fetchCfg, nil,
			[]collector.UsageSource{promSource})
	}

	// Report archive
	archive, err := report.NewArchive(&report.Config{
		Backend:         report.Backend(cfg.ReportArchive.Backend),
		LocalPath:       cfg.ReportArchive.LocalPath,
		Endpoint:        cfg.ReportArchive.Endpoint,
		Region:          cfg.ReportArchive.Region,
		Bucket:          cfg.ReportArchive.Bucket,
		AccessKeyID:     cfg.ReportArchive.AccessKeyID,
		SecretAccessKey: cfg.ReportArchive.SecretAccessKey,
		UseSSL:          cfg.ReportArchive.UseSSL,
	})
	if err != nil {
		slog.Warn("Report archiving disabled", "error", err)
		archive = nil
	}

	// Background jobs
	sched := scheduler.New(scheduler.Options{
		Config:         cfg.Scheduler,
		Repository:     repo,
		CostFetcher:    costFetcher,
		UsageFetcher:   usageFetcher,
		Generator:      generator,
		Archive:        archive,
		ClusterName:    cfg.ClusterName,
		ForecastPolicy: forecastPolicy,
	})
	sched.Start(context.Background())

	// Wire the REST surface
	rest.SetStore(repo)
	rest.SetGenerator(sched)
	rest.SetVersion(cfg.Version)
	rest.SetPolicies(thresholds, forecastPolicy)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Register routes
	rest.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		slog.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	sched.Stop()

	slog.Info("Server shutdown complete")
}
