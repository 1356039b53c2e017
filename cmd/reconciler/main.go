package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"
	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"

	database "github.com/docvault/ingest-backend/pkg/db"
	logx "github.com/docvault/ingest-backend/pkg/logger"
	ingestworker "github.com/docvault/ingest-backend/pkg/worker"
)

// reconcileTimeout bounds a single pass. Orphan deletion is sequential, so a
// very large index should be reconciled in several runs rather than one.
const reconcileTimeout = 30 * time.Minute

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	logger, _ := logx.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = logger.Sync()
	}()

	db := database.GetSharedConnection()
	defer database.Close(db)

	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	vectorDB, err := milvus.NewMilvusClient(ctx, config.Config.Milvus.Host, config.Config.Milvus.Port)
	if err != nil {
		logger.Fatal(fmt.Sprintf("failed to create milvus client: %v", err))
	}
	defer vectorDB.Close()

	cw, err := ingestworker.New(ingestworker.Config{
		Repository: repository.NewRepository(db, redisClient),
		Vector:     vectorDB,
	}, logger)
	if err != nil {
		logger.Fatal("Unable to create worker", zap.Error(err))
	}

	result, err := cw.ReconcileVectorIndex(ctx)
	if err != nil {
		logger.Error("Vector index reconciliation failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Vector index reconciliation complete",
		zap.Int("vectorsScanned", result.VectorsScanned),
		zap.Int("orphans", result.Orphans),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed))
}
