package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openshelf/openshelf/internal/app"
	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/faq"
	"github.com/openshelf/openshelf/internal/files"
	"github.com/openshelf/openshelf/internal/identity"
	"github.com/openshelf/openshelf/internal/observability"
	"github.com/openshelf/openshelf/internal/platform/blob"
	"github.com/openshelf/openshelf/internal/platform/cache"
	"github.com/openshelf/openshelf/internal/platform/db"
	"github.com/openshelf/openshelf/internal/watermark"
	"github.com/openshelf/openshelf/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, community cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo)
	identityHandler := identity.NewHandler(logger, identityService)

	registry := authz.DefaultRegistry()
	gate := authz.NewGate(registry, identityService)
	gateMiddleware := authz.Middleware{
		Gate:        gate,
		TokenSecret: cfg.AuthTokenSecret,
		Logger:      logger,
		Observe:     metrics.ObserveDecision,
	}
	logger.Info("capability registry loaded", slog.Int("version", registry.Version()))

	pipeline := watermark.NewPipeline(watermark.Options{
		AssetPath: cfg.WatermarkPath,
		Observe:   metrics.ObserveWatermark,
	})

	blobStore, err := blob.NewLocalStore(cfg.BlobRoot, cfg.BlobBaseURL)
	if err != nil {
		logger.Error("prepare blob store", slog.Any("error", err))
		os.Exit(1)
	}

	var fileCache *files.Cache
	if redisClient != nil {
		fileCache = files.NewCache(redisClient, cfg.CacheTTL)
	}
	filesRepo := files.NewRepository(pool)
	filesService := files.NewService(filesRepo, pipeline, blobStore, identityService, fileCache)
	filesService.ObserveReview = metrics.ObserveReview
	filesHandler := files.NewHandler(logger, filesService, fileCache)

	faqRepo := faq.NewRepository(pool)
	faqService := faq.NewService(faqRepo)
	faqHandler := faq.NewHandler(logger, faqService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		GateMiddleware:  gateMiddleware,
		FilesHandler:    filesHandler,
		IdentityHandler: identityHandler,
		FAQHandler:      faqHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
		BlobHandler:     http.FileServer(http.Dir(cfg.BlobRoot)),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
