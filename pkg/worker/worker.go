package worker

import (
	"time"

	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"
	"github.com/docvault/ingest-backend/internal/ai"
	"github.com/docvault/ingest-backend/pkg/extractor"
	"github.com/docvault/ingest-backend/pkg/fetcher"
	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"
)

// TaskQueue is the Temporal task queue name for all workflows and activities.
const TaskQueue = "ingest-backend"

// MaxConcurrentActivities bounds parallel document processing per worker.
// Downloads and vision recovery are memory-heavy, so this stays low.
const MaxConcurrentActivities = 2

// MaxCarriedTextChars caps the extracted text carried through workflow
// activity results. Temporal payloads have a hard size limit; anything a
// parser produces beyond this is truncated before leaving the activity.
const MaxCarriedTextChars = 1 << 20

// ActivityTimeoutStandard is the timeout for DB and status activities.
// ActivityTimeoutLong is for downloads, vision recovery, and embedding.
const (
	ActivityTimeoutStandard = 1 * time.Minute
	ActivityTimeoutLong     = 10 * time.Minute
)

// RetryInitialInterval, RetryBackoffCoefficient, RetryMaximumInterval, and
// RetryMaximumAttempts control activity retry behavior.
const (
	RetryInitialInterval    = 1 * time.Second
	RetryBackoffCoefficient = 2.0
	RetryMaximumInterval    = 30 * time.Second
	RetryMaximumAttempts    = 3
)

// Config defines the configuration for the worker
type Config struct {
	Repository repository.Repository
	Vector     milvus.MilvusClientI
	AI         ai.Provider
	Fetcher    *fetcher.Fetcher
	Extractor  *extractor.Extractor
	Model      config.ModelConfig
}

// Worker implements the Temporal worker with all workflows and activities
type Worker struct {
	repository repository.Repository
	vector     milvus.MilvusClientI
	ai         ai.Provider
	fetcher    *fetcher.Fetcher
	extractor  *extractor.Extractor
	log        *zap.Logger

	metadataPrefixChars int
	embedPrefixChars    int
	embeddingFamily     string
}

// New creates a new worker instance
func New(cfg Config, log *zap.Logger) (*Worker, error) {
	metadataPrefixChars := cfg.Model.MetadataPrefixChars
	if metadataPrefixChars <= 0 {
		metadataPrefixChars = 15000
	}
	embedPrefixChars := cfg.Model.EmbedPrefixChars
	if embedPrefixChars <= 0 {
		embedPrefixChars = 8000
	}

	w := &Worker{
		repository:          cfg.Repository,
		vector:              cfg.Vector,
		ai:                  cfg.AI,
		fetcher:             cfg.Fetcher,
		extractor:           cfg.Extractor,
		log:                 log,
		metadataPrefixChars: metadataPrefixChars,
		embedPrefixChars:    embedPrefixChars,
		embeddingFamily:     cfg.Model.EmbeddingFamily,
	}
	return w, nil
}
