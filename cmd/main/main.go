package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/docvault/ingest-backend/config"
	"github.com/docvault/ingest-backend/pkg/handler"
	"github.com/docvault/ingest-backend/pkg/middleware"
	"github.com/docvault/ingest-backend/pkg/repository"
	"github.com/instill-ai/x/temporal"

	database "github.com/docvault/ingest-backend/pkg/db"
	logx "github.com/docvault/ingest-backend/pkg/logger"
	ingestworker "github.com/docvault/ingest-backend/pkg/worker"
	otelx "github.com/instill-ai/x/otel"
)

const gracefulShutdownTimeout = 10 * time.Second

var (
	// These variables might be overridden at buildtime.
	serviceName    = "ingest-backend"
	serviceVersion = "dev"
)

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup all OpenTelemetry components
	cleanup := otelx.SetupWithCleanup(ctx,
		otelx.WithServiceName(serviceName),
		otelx.WithServiceVersion(serviceVersion),
		otelx.WithHost(config.Config.OTELCollector.Host),
		otelx.WithPort(config.Config.OTELCollector.Port),
		otelx.WithCollectorEnable(config.Config.OTELCollector.Enable),
	)
	defer cleanup()

	logger, _ := logx.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = logger.Sync()
	}()

	// Initialize PostgreSQL database connection (for document records)
	db := database.GetSharedConnection()
	defer database.Close(db)

	// Initialize Redis client (for system configuration caching)
	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	// Initialize Temporal client (for triggering workflows)
	temporalClientOptions, err := temporal.ClientOptions(config.Config.Temporal, logger)
	if err != nil {
		logger.Fatal("Unable to build Temporal client options", zap.Error(err))
	}

	if config.Config.OTELCollector.Enable {
		temporalTracingInterceptor, err := opentelemetry.NewTracingInterceptor(opentelemetry.TracerOptions{
			Tracer:            otel.Tracer(serviceName),
			TextMapPropagator: otel.GetTextMapPropagator(),
		})
		if err != nil {
			logger.Fatal("Unable to create temporal tracing interceptor", zap.Error(err))
		}
		temporalClientOptions.Interceptors = []interceptor.ClientInterceptor{temporalTracingInterceptor}
	}

	temporalClient, err := temporalclient.Dial(temporalClientOptions)
	if err != nil {
		logger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	repo := repository.NewRepository(db, redisClient)

	// The API process only starts workflows. Activities run in cmd/worker, so
	// the worker here carries no AI, fetcher, or vector clients.
	cw, err := ingestworker.New(ingestworker.Config{
		Repository: repo,
		Model:      config.Config.Model,
	}, logger)
	if err != nil {
		logger.Fatal("Unable to create workflow container", zap.Error(err))
	}

	processTrigger := ingestworker.NewProcessFileWorkflow(temporalClient, cw)
	deleteTrigger := ingestworker.NewDeleteFileWorkflow(temporalClient, cw)

	documentHandler := handler.NewDocumentHandler(repo, processTrigger, deleteTrigger, logger)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: !config.Config.Server.Debug,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger))
	documentHandler.RegisterRoutes(app)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", config.Config.Server.PublicPort)); err != nil {
			logger.Fatal("Unable to start API server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.Int("port", config.Config.Server.PublicPort))

	// Setup graceful shutdown on SIGTERM (kill) and SIGINT (Ctrl+C)
	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)
	<-quitSig

	logger.Info("Shutting down API server...")
	if err := app.ShutdownWithTimeout(gracefulShutdownTimeout); err != nil {
		logger.Error("Unable to shut down API server cleanly", zap.Error(err))
	}
}
