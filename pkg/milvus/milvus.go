package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/internal/ai"
	"github.com/docvault/ingest-backend/pkg/logger"
)

// MilvusClientI is the vector index contract used by the worker and the
// reconciler. All documents live in a single collection keyed by document id.
type MilvusClientI interface {
	GetVersion(ctx context.Context) (string, error)
	GetHealth(ctx context.Context) (bool, error)
	CreateDocumentCollection(ctx context.Context) error
	UpsertDocumentVector(ctx context.Context, v DocumentVector) error
	DeleteDocumentVectors(ctx context.Context, docIDs []string) error
	ListDocumentIDs(ctx context.Context) ([]string, error)
	SearchSimilarDocuments(ctx context.Context, vectors [][]float32, topK int) ([][]SimilarDocument, error)
	Close()
}

type MilvusClient struct {
	c client.Client
}

// CollectionName holds one vector per indexed document.
const CollectionName = "document_vectors"

const (
	VectorDim  = 768
	VectorType = entity.FieldTypeFloatVector
	ScannNlist = 1024
	MetricType = entity.COSINE
	WithRaw    = true
)

// Search parameter
const (
	Nprobe   = 250
	ReorderK = 250
)

// MaxMetadataTextLen caps the text preview stored alongside a vector.
const MaxMetadataTextLen = 1000

// metadataText clips the stored text preview on a rune boundary so the
// column never holds a split multi-byte character.
func metadataText(s string) string {
	return ai.TruncateChars(s, MaxMetadataTextLen)
}

// DocumentVector is one indexed document: its id, a text preview for result
// display, and the embedding.
type DocumentVector struct {
	DocID    string
	Filename string
	Text     string
	Vector   []float32
}

const (
	collectionFieldDocID    = "embedding_uid"
	collectionFieldFilename = "filename"
	collectionFieldText     = "text"
	collectionFieldVector   = "embedding"
)

func NewMilvusClient(ctx context.Context, host, port string) (MilvusClientI, error) {
	c, err := client.NewGrpcClient(ctx, host+":"+port)
	if err != nil {
		return nil, err
	}
	return &MilvusClient{c: c}, nil
}

func (m *MilvusClient) GetVersion(ctx context.Context) (string, error) {
	v, err := m.c.GetVersion(ctx)
	return v, err
}

// GetHealth
func (m *MilvusClient) GetHealth(ctx context.Context) (bool, error) {
	h, err := m.c.CheckHealth(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check health: %w", err)
	}
	if h == nil {
		return false, fmt.Errorf("health check returned nil")
	}
	return h.IsHealthy, err
}

// CreateDocumentCollection creates the document collection and its index if
// they do not exist yet. Safe to call on every startup.
func (m *MilvusClient) CreateDocumentCollection(ctx context.Context) error {
	logger, _ := logger.GetZapLogger(ctx)

	has, err := m.c.HasCollection(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection_name", CollectionName))
		return nil
	}

	vectorDim := fmt.Sprintf("%d", VectorDim)
	schema := &entity.Schema{
		CollectionName: CollectionName,
		Description:    "",
		Fields: []*entity.Field{
			{Name: collectionFieldDocID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{"max_length": "255"}},
			{Name: collectionFieldFilename, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "512"}},
			{Name: collectionFieldText, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "4096"}},
			{Name: collectionFieldVector, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": vectorDim}},
		},
	}

	err = m.c.CreateCollection(ctx, schema, 1)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	index, err := entity.NewIndexSCANN(MetricType, ScannNlist, WithRaw)
	if err != nil {
		logger.Error("Failed to create index", zap.Error(err))
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.c.CreateIndex(ctx, CollectionName, collectionFieldVector, index, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	logger.Info("Collection created successfully", zap.String("collection_name", CollectionName))
	return nil
}

// UpsertDocumentVector writes or replaces the vector of a document. Re-runs
// of the same document overwrite the previous record through the primary key.
func (m *MilvusClient) UpsertDocumentVector(ctx context.Context, v DocumentVector) error {
	has, err := m.c.HasCollection(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !has {
		if err := m.CreateDocumentCollection(ctx); err != nil {
			return err
		}
	}

	text := metadataText(v.Text)

	columns := []entity.Column{
		entity.NewColumnVarChar(collectionFieldDocID, []string{v.DocID}),
		entity.NewColumnVarChar(collectionFieldFilename, []string{v.Filename}),
		entity.NewColumnVarChar(collectionFieldText, []string{text}),
		entity.NewColumnFloatVector(collectionFieldVector, VectorDim, [][]float32{v.Vector}),
	}

	_, err = m.c.Upsert(ctx, CollectionName, "", columns...)
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	err = m.c.Flush(ctx, CollectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush collection after upsert: %w", err)
	}

	return nil
}

// DeleteDocumentVectors deletes vectors by document id. A missing collection
// or missing ids are treated as already deleted.
func (m *MilvusClient) DeleteDocumentVectors(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	has, err := m.c.HasCollection(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !has {
		return nil
	}

	expr := deleteExpr(docIDs)
	err = m.c.Delete(ctx, CollectionName, "", expr)
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	err = m.c.Flush(ctx, CollectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush collection after deletion: %w", err)
	}
	return nil
}

// deleteExpr builds the boolean expression for a primary key deletion,
// e.g. "embedding_uid in ['doc-1','doc-2']".
func deleteExpr(docIDs []string) string {
	return fmt.Sprintf("%s in ['%s']", collectionFieldDocID, strings.Join(docIDs, "','"))
}

// Helper function to safely get string data from a column
func getStringData(col entity.Column) ([]string, error) {
	switch v := col.(type) {
	case *entity.ColumnVarChar:
		return v.Data(), nil
	case *entity.ColumnString:
		return v.Data(), nil
	default:
		return nil, fmt.Errorf("unexpected column type for string data: %T", col)
	}
}

// ListDocumentIDs pages through the collection and returns every primary key.
// An absent collection yields an empty result, which the reconciler treats as
// a clean no-op.
func (m *MilvusClient) ListDocumentIDs(ctx context.Context) ([]string, error) {
	has, err := m.c.HasCollection(ctx, CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !has {
		return nil, nil
	}

	err = m.c.LoadCollection(ctx, CollectionName, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	var allIDs []string
	offset := int64(0)
	limit := int64(1000)

	for {
		queryResult, err := m.c.Query(ctx, CollectionName, nil, "", []string{collectionFieldDocID}, client.WithOffset(offset), client.WithLimit(limit))
		if err != nil {
			return nil, fmt.Errorf("failed to query document ids: %w", err)
		}

		if len(queryResult) == 0 {
			break
		}

		ids, err := getStringData(queryResult.GetColumn(collectionFieldDocID))
		if err != nil {
			return nil, fmt.Errorf("error with %s column: %w", collectionFieldDocID, err)
		}
		if len(ids) == 0 {
			break
		}

		allIDs = append(allIDs, ids...)

		if int64(len(ids)) < limit {
			break
		}
		offset += limit
	}

	return allIDs, nil
}

type SimilarDocument struct {
	DocID    string
	Filename string
	Text     string
	Score    float32
}

// SearchSimilarDocuments searches for documents similar to the input vectors
func (m *MilvusClient) SearchSimilarDocuments(ctx context.Context, vectors [][]float32, topK int) ([][]SimilarDocument, error) {
	log, _ := logger.GetZapLogger(ctx)

	has, err := m.c.HasCollection(ctx, CollectionName)
	if err != nil {
		log.Error("failed to check collection existence", zap.Error(err))
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !has {
		return nil, fmt.Errorf("collection %s does not exist", CollectionName)
	}

	err = m.c.LoadCollection(ctx, CollectionName, false)
	if err != nil {
		log.Error("failed to load collection", zap.Error(err))
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	milvusVectors := make([]entity.Vector, len(vectors))
	for i, v := range vectors {
		milvusVectors[i] = entity.FloatVector(v)
	}

	sp, err := entity.NewIndexSCANNSearchParam(Nprobe, ReorderK)
	if err != nil {
		log.Error("failed to create search param", zap.Error(err))
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}
	results, err := m.c.Search(
		ctx, CollectionName, nil, "", []string{
			collectionFieldDocID,
			collectionFieldFilename,
			collectionFieldText,
		}, milvusVectors, collectionFieldVector, MetricType, topK, sp)
	if err != nil {
		log.Error("failed to search documents", zap.Error(err))
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	var documents [][]SimilarDocument
	for _, result := range results {
		docIDs, err := getStringData(result.Fields.GetColumn(collectionFieldDocID))
		if err != nil {
			return nil, fmt.Errorf("error with %s column: %w", collectionFieldDocID, err)
		}
		filenames, err := getStringData(result.Fields.GetColumn(collectionFieldFilename))
		if err != nil {
			return nil, fmt.Errorf("error with %s column: %w", collectionFieldFilename, err)
		}
		texts, err := getStringData(result.Fields.GetColumn(collectionFieldText))
		if err != nil {
			return nil, fmt.Errorf("error with %s column: %w", collectionFieldText, err)
		}

		scores := result.Scores
		batch := make([]SimilarDocument, 0, len(docIDs))
		for i := 0; i < len(docIDs); i++ {
			batch = append(batch, SimilarDocument{
				DocID:    docIDs[i],
				Filename: filenames[i],
				Text:     texts[i],
				Score:    scores[i],
			})
		}
		documents = append(documents, batch)
	}

	return documents, nil
}

// Close
func (m *MilvusClient) Close() {
	m.c.Close()
}
