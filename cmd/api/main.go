package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkellerhals/sourcelane-backend/api/controllers"
	"github.com/mkellerhals/sourcelane-backend/api/routes"
	"github.com/mkellerhals/sourcelane-backend/internal/extraction"
	"github.com/mkellerhals/sourcelane-backend/internal/fulfillment"
	"github.com/mkellerhals/sourcelane-backend/internal/supplier"
	"github.com/mkellerhals/sourcelane-backend/pkg/config"
	"github.com/mkellerhals/sourcelane-backend/pkg/db"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/metrics"
	"github.com/mkellerhals/sourcelane-backend/pkg/migrate"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
	"github.com/mkellerhals/sourcelane-backend/pkg/pubsub"
	"github.com/mkellerhals/sourcelane-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, rate limiting and job mirrors are process-local")
	}

	var pubsubClient *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	guard, err := supplier.NewURLGuard(cfg.Supplier.AllowedHosts)
	if err != nil {
		logg.Error(context.Background(), "failed to build url guard", err)
		os.Exit(1)
	}

	var gate supplier.IntervalGate
	if redisClient != nil {
		gate = redisClient
	}
	limiter := supplier.NewIntervalLimiter(cfg.Supplier.MinRequestInterval, gate, cfg.Supplier.SupplierName)
	queue := supplier.NewRequestQueue(limiter, 32)

	scraper, err := supplier.NewScraper(supplier.ScraperParams{
		Guard:          guard,
		Fingerprints:   supplier.NewFingerprintGenerator(time.Now().UnixNano()),
		Queue:          queue,
		Logger:         logg,
		Metrics:        pipelineMetrics,
		SupplierName:   cfg.Supplier.SupplierName,
		RequestTimeout: cfg.Supplier.RequestTimeout,
		MaxRetries:     cfg.Supplier.MaxRetries,
		RetryBaseDelay: cfg.Supplier.RetryBaseDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build scraper", err)
		os.Exit(1)
	}

	downloader, err := supplier.NewImageDownloader(supplier.ImageDownloaderParams{
		Limiter:        limiter,
		Logger:         logg,
		Metrics:        pipelineMetrics,
		MaxConcurrent:  cfg.Supplier.ImageConcurrency,
		MaxBytes:       cfg.Supplier.ImageMaxBytes,
		RequestTimeout: cfg.Supplier.RequestTimeout,
		MaxRetries:     cfg.Supplier.MaxRetries,
		RetryBaseDelay: cfg.Supplier.RetryBaseDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build image downloader", err)
		os.Exit(1)
	}

	pipeline, err := extraction.NewPipeline(scraper, supplier.NewStockValidator(supplier.DefaultStockValidatorConfig()), downloader, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build extraction pipeline", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	extractionRepo := extraction.NewRepository(dbClient.DB())

	var tracker *extraction.Tracker
	if redisClient != nil {
		tracker, err = extraction.NewTracker(extractionRepo, dbClient, outboxSvc, redisClient, logg)
	} else {
		tracker, err = extraction.NewTracker(extractionRepo, dbClient, outboxSvc, nil, logg)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to build job tracker", err)
		os.Exit(1)
	}

	importService, err := extraction.NewService(extraction.ServiceParams{
		Repo:         extractionRepo,
		Tx:           dbClient,
		Pipeline:     pipeline,
		Tracker:      tracker,
		Guard:        guard,
		Metrics:      pipelineMetrics,
		Logger:       logg,
		SupplierName: cfg.Supplier.SupplierName,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build import service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Repo:     fulfillment.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Metrics:  fulfillmentMetrics,
		Logger:   logg,
		Shipping: cfg.Shipping,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build fulfillment service", err)
		os.Exit(1)
	}

	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	var pubsubPinger controllers.Pinger
	if pubsubClient != nil {
		pubsubPinger = pubsubClient
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisPinger,
		PubSub:          pubsubPinger,
		Imports:         importService,
		Fulfillment:     fulfillmentService,
		MetricsGatherer: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	// Drain in-flight async imports before releasing the scraper.
	importService.Close()
	queue.Close()
	logg.Info(ctx, "api server shutting down gracefully")
}
