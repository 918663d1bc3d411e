package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavely/converse/cmd/mainconfig"
	"github.com/wavely/converse/internal/api/router"
	"github.com/wavely/converse/internal/app/bootstrap"
	"github.com/wavely/converse/internal/archive"
	appconfig "github.com/wavely/converse/internal/config"
	"github.com/wavely/converse/internal/conversation"
	"github.com/wavely/converse/internal/intent"
	"github.com/wavely/converse/internal/observability/metrics"
	"github.com/wavely/converse/internal/webchat"
	"github.com/wavely/converse/pkg/logging"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting converse API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	var dynamoClient *dynamodb.Client
	var sqsClient *sqs.Client
	if cfg.SessionStore == "dynamodb" || !cfg.UseMemoryQueue {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		sqsClient = sqs.NewFromConfig(awsCfg)
	}

	sessions, err := bootstrap.BuildSessionStore(cfg, redisClient, dynamoClient, logger)
	if err != nil {
		logger.Error("failed to build session store", "error", err)
		os.Exit(1)
	}

	archiveDB := bootstrap.BuildArchiveDB(ctx, cfg, logger)
	if archiveDB != nil {
		defer func() { _ = archiveDB.Close() }()
	}

	registry := prometheus.NewRegistry()
	conversationMetrics := metrics.NewConversationMetrics(registry)

	provider := intent.NewProvider(cfg.CorpusPath, logger)

	engine := conversation.NewEngine(conversation.EngineConfig{
		Provider:    provider,
		Sessions:    sessions,
		Transcripts: bootstrap.BuildTranscriptStore(cfg, redisClient),
		Archiver:    archive.NewPostgresStore(archiveDB),
		Generator:   bootstrap.BuildGenerator(cfg, logger),
		Metrics:     conversationMetrics,
		Logger:      logger,
		SessionTTL:  cfg.SessionTTL,
	})

	var dispatcher *conversation.Dispatcher
	if cfg.UseMemoryQueue {
		dispatcher = conversation.NewDispatcher(engine, conversation.NewMemoryQueue(256), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		dispatcher = conversation.NewDispatcher(engine, conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(dispatcher, logger),
		CorpusAdmin:         intent.NewAdminHandler(provider, conversationMetrics, logger),
		WebchatHandler:      webchat.NewHandler(dispatcher, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
