package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnhub/bounty-pipeline/internal/api"
	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/config"
	"learnhub/bounty-pipeline/internal/ledger"
	"learnhub/bounty-pipeline/internal/metrics"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/repository/mongo"
	redisrepo "learnhub/bounty-pipeline/internal/repository/redis"
	"learnhub/bounty-pipeline/internal/service"
	"learnhub/bounty-pipeline/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title Bounty Submission API
// @version 1.0
// @description Participant submissions, evidence uploads and reviewer moderation for bounties.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting bounty submission server")

	if cfg.JWT.Secret == "" {
		logger.Error("jwt.secret is required")
		os.Exit(1)
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Error("could not connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// --- Ensure Indexes ---
	// The unique (bounty, wallet) index must exist before any create is served.
	idxCtx, idxCancel := context.WithTimeout(context.Background(), time.Minute)
	err = mongo.EnsureIndexes(idxCtx, appDB)
	idxCancel()
	if err != nil {
		logger.Error("could not ensure indexes", "error", err)
		os.Exit(1)
	}

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(context.Background(), cfg.S3, logger)
	if err != nil {
		logger.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}

	// --- Initialize Repositories ---
	submissionRepo := mongo.NewMongoSubmissionRepository(appDB)
	mediaRepo := mongo.NewMongoMediaAssetRepository(appDB)
	upvoteRepo := mongo.NewMongoUpvoteRepository(appDB)
	bountyCatalog := mongo.NewMongoBountyCatalog(appDB)

	var counter repository.SubmissionCounter = bountyCatalog
	if cfg.Redis.Enabled {
		rdb := redisrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// The counter is best effort; keep going and let increments fail soft.
			logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		pingCancel()
		counter = redisrepo.NewSubmissionCounter(rdb)
		logger.Info("submission counter backed by redis", "addr", cfg.Redis.Addr)
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.New(registry)

	// --- Initialize Services ---
	authorizer := auth.NewRoleAuthorizer(cfg.Review.ReviewerWallets, logger)
	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.ServiceToken, cfg.Ledger.Timeout)
	if cfg.Ledger.BaseURL == "" {
		logger.Warn("ledger.base_url not set; approvals will not award XP")
	}

	workflow := service.NewSubmissionWorkflow(service.WorkflowDeps{
		Submissions:   submissionRepo,
		Assets:        mediaRepo,
		Bounties:      bountyCatalog,
		Counter:       counter,
		Upvotes:       upvoteRepo,
		Storage:       fileStorage,
		Authorizer:    authorizer,
		Ledger:        ledgerClient,
		LedgerTimeout: cfg.Ledger.Timeout,
		Logger:        logger,
		Metrics:       pipelineMetrics,
	})
	query := service.NewReviewQuery(submissionRepo, authorizer, fileStorage, logger)
	exporter := service.NewExporter(submissionRepo, authorizer, fileStorage, logger)
	ingestor := service.NewMediaIngestor(fileStorage, mediaRepo, service.MediaLimits{
		ImageMaxBytes: cfg.Media.ImageMaxBytes,
		VideoMaxBytes: cfg.Media.VideoMaxBytes,
		UploadTimeout: cfg.Media.UploadTimeout,
	}, logger, pipelineMetrics)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	api.SetupRoutes(router, api.RouteDeps{
		JWTSecret:          cfg.JWT.Secret,
		Authorizer:         authorizer,
		Workflow:           workflow,
		Query:              query,
		Exporter:           exporter,
		Ingestor:           ingestor,
		MaxUploadBytes:     max(cfg.Media.ImageMaxBytes, cfg.Media.VideoMaxBytes),
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:             logger,
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exiting")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
