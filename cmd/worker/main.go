package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"gorm.io/gorm"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/docvault/ingest-backend/config"
	"github.com/docvault/ingest-backend/internal/ai"
	"github.com/docvault/ingest-backend/internal/ai/gemini"
	"github.com/docvault/ingest-backend/internal/ai/openai"
	"github.com/docvault/ingest-backend/pkg/extractor"
	"github.com/docvault/ingest-backend/pkg/fetcher"
	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"
	"github.com/instill-ai/x/temporal"

	database "github.com/docvault/ingest-backend/pkg/db"
	logx "github.com/docvault/ingest-backend/pkg/logger"
	ingestworker "github.com/docvault/ingest-backend/pkg/worker"
	otelx "github.com/instill-ai/x/otel"
)

const gracefulShutdownWaitPeriod = 15 * time.Second // Wait period before stopping worker
const gracefulShutdownTimeout = 60 * time.Minute    // Maximum time for in-flight workflows to complete

var (
	// These variables might be overridden at buildtime.
	serviceName    = "ingest-backend-worker"
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

	redisClient, db, vectorDB, temporalClient, closeClients := newClients(ctx, logger)
	defer closeClients()

	repo := repository.NewRepository(db, redisClient)

	aiProvider, err := newAIProvider(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}
	defer func() {
		_ = aiProvider.Close()
	}()

	ext := extractor.NewExtractor(config.Config.Extract)
	if config.Config.Extract.Adobe.Enabled {
		adobeProvider, err := extractor.NewAdobeProvider(config.Config.Extract.Adobe, logger)
		if err != nil {
			logger.Warn("High-fidelity PDF extraction disabled", zap.Error(err))
		} else {
			ext = ext.WithPDFProvider(adobeProvider)
			logger.Info("High-fidelity PDF extraction enabled")
		}
	}

	cw, err := ingestworker.New(ingestworker.Config{
		Repository: repo,
		Vector:     vectorDB,
		AI:         aiProvider,
		Fetcher:    fetcher.NewFetcher(config.Config.Fetch, logger),
		Extractor:  ext,
		Model:      config.Config.Model,
	}, logger)
	if err != nil {
		logger.Fatal("Unable to create worker", zap.Error(err))
	}

	w := worker.New(temporalClient, ingestworker.TaskQueue, worker.Options{
		WorkflowPanicPolicy:                    worker.BlockWorkflow,
		WorkerStopTimeout:                      gracefulShutdownTimeout,
		MaxConcurrentActivityExecutionSize:     ingestworker.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: 100,
		Interceptors: func() []interceptor.WorkerInterceptor {
			if !config.Config.OTELCollector.Enable {
				return nil
			}
			workerInterceptor, err := opentelemetry.NewTracingInterceptor(opentelemetry.TracerOptions{
				Tracer:            otel.Tracer(serviceName),
				TextMapPropagator: otel.GetTextMapPropagator(),
			})
			if err != nil {
				logger.Fatal("Unable to create worker tracing interceptor", zap.Error(err))
			}
			return []interceptor.WorkerInterceptor{workerInterceptor}
		}(),
	})

	// ===== Workflow Registrations =====

	w.RegisterWorkflow(cw.ProcessFileWorkflow) // Main document ingestion orchestration workflow
	w.RegisterWorkflow(cw.DeleteFileWorkflow)  // Document deletion workflow (vectors then row)

	// ===== ProcessFileWorkflow Activities =====

	w.RegisterActivity(cw.GetSystemConfigActivity)      // Read global model configuration
	w.RegisterActivity(cw.UpdateDocumentStatusActivity) // Mark the current processing stage on the document
	w.RegisterActivity(cw.MarkDocumentFailedActivity)   // Terminal failure write with error details
	w.RegisterActivity(cw.DownloadAndExtractActivity)   // Fetch source object and run the format extractor chain
	w.RegisterActivity(cw.VisionRecoveryActivity)       // Vision fallback for unparseable or image-heavy documents
	w.RegisterActivity(cw.SynthesizeMetadataActivity)   // Generate title/summary/language/key information
	w.RegisterActivity(cw.FinalizeDocumentActivity)     // Version-guarded terminal write of the indexed payload
	w.RegisterActivity(cw.EmbedAndIndexActivity)        // Embed the document and upsert its vector into Milvus

	// ===== DeleteFileWorkflow Activities =====

	w.RegisterActivity(cw.DeleteDocumentVectorsActivity) // Delete document vectors from Milvus
	w.RegisterActivity(cw.DeleteDocumentRowActivity)     // Delete the document row from the database

	if err := w.Start(); err != nil {
		logger.Fatal(fmt.Sprintf("Unable to start worker: %s", err))
	}

	logger.Info("Temporal worker started successfully and is polling for tasks")

	// Setup graceful shutdown on SIGTERM (kill) and SIGINT (Ctrl+C)
	// Note: SIGKILL (kill -9) cannot be caught and will force immediate termination
	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)

	// Block until shutdown signal received
	<-quitSig

	// Allow in-flight workflows to complete gracefully
	logger.Info("Shutdown signal received, waiting for in-flight workflows to complete...")
	time.Sleep(gracefulShutdownWaitPeriod)

	logger.Info("Shutting down worker...")
	w.Stop()
}

// newClients initializes all external service clients and returns a cleanup function
func newClients(ctx context.Context, logger *zap.Logger) (
	*redis.Client,
	*gorm.DB,
	milvus.MilvusClientI,
	temporalclient.Client,
	func(),
) {
	closeFuncs := map[string]func() error{}

	// Initialize PostgreSQL database connection (for document records)
	db := database.GetSharedConnection()
	closeFuncs["database"] = func() error {
		database.Close(db)
		return nil
	}

	// Initialize Redis client (for system configuration caching)
	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	closeFuncs["redis"] = redisClient.Close

	// Initialize Temporal client (for workflow orchestration)
	temporalClientOptions, err := temporal.ClientOptions(config.Config.Temporal, logger)
	if err != nil {
		logger.Fatal("Unable to build Temporal client options", zap.Error(err))
	}

	// Add OpenTelemetry tracing interceptor if enabled
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
	closeFuncs["temporal"] = func() error {
		temporalClient.Close()
		return nil
	}

	// Initialize Milvus client (for vector storage and similarity search)
	vectorDB, err := milvus.NewMilvusClient(ctx, config.Config.Milvus.Host, config.Config.Milvus.Port)
	if err != nil {
		logger.Fatal(fmt.Sprintf("failed to create milvus client: %v", err))
	}
	closeFuncs["milvus"] = func() error {
		vectorDB.Close()
		return nil
	}

	closer := func() {
		for conn, fn := range closeFuncs {
			if err := fn(); err != nil {
				logger.Error("Failed to close conn", zap.Error(err), zap.String("conn", conn))
			}
		}
	}

	return redisClient, db, vectorDB, temporalClient, closer
}

// newAIProvider creates an AI provider based on the configured API keys
func newAIProvider(ctx context.Context, logger *zap.Logger) (ai.Provider, error) {
	cfg := config.Config.Model
	providers := make(map[string]ai.Provider)

	if cfg.Gemini.APIKey != "" {
		geminiProvider, err := gemini.NewProvider(ctx, cfg.Gemini.APIKey, cfg.MaxInlineBytes)
		if err != nil {
			logger.Error("Failed to initialize Gemini provider", zap.Error(err))
		} else {
			providers[ai.ModelFamilyGemini] = geminiProvider
			logger.Info("Gemini provider initialized", zap.String("provider", geminiProvider.Name()))
		}
	} else {
		logger.Warn("Gemini API not configured. Vision recovery and metadata synthesis will fail.")
	}

	// OpenAI covers embeddings only and is selected through model.embeddingfamily.
	if cfg.OpenAI.APIKey != "" {
		openaiProvider, err := openai.NewProvider(ctx, cfg.OpenAI.APIKey)
		if err != nil {
			logger.Warn("Failed to initialize OpenAI provider", zap.Error(err))
		} else {
			providers[ai.ModelFamilyOpenAI] = openaiProvider
			logger.Info("OpenAI provider initialized", zap.String("provider", openaiProvider.Name()))
		}
	}

	// Every processing run needs at least one provider; refusing to start
	// beats nil-panicking inside an activity.
	if len(providers) == 0 {
		return nil, fmt.Errorf("no AI provider configured: set model.gemini.apikey or model.openai.apikey")
	}

	aiProvider, err := ai.NewCompositeProvider(providers, ai.ModelFamilyGemini)
	if err != nil {
		return nil, fmt.Errorf("failed to create composite provider: %w", err)
	}

	logger.Info("AI provider initialized successfully",
		zap.String("provider", aiProvider.Name()),
		zap.Int("available_providers", len(providers)))

	return aiProvider, nil
}
