package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"
	"github.com/docvault/ingest-backend/internal/ai"
	"github.com/docvault/ingest-backend/pkg/extractor"
	"github.com/docvault/ingest-backend/pkg/fetcher"
	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"
)

type docRepository struct {
	repository.Repository
	docs      map[string]*repository.DocumentModel
	usage     []repository.TokenUsage
	finalized []repository.DocumentFinalUpdate
}

func (f *docRepository) GetDocumentByID(ctx context.Context, docID string) (*repository.DocumentModel, error) {
	doc, ok := f.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document not found. id: {%v}", docID)
	}
	return doc, nil
}

func (f *docRepository) LogTokenUsage(ctx context.Context, usage repository.TokenUsage) error {
	f.usage = append(f.usage, usage)
	return nil
}

func (f *docRepository) FinalizeDocument(ctx context.Context, docID string, processVersion int64, update repository.DocumentFinalUpdate) (bool, error) {
	f.finalized = append(f.finalized, update)
	return true, nil
}

// upsertVector captures vector upserts.
type upsertVector struct {
	milvus.MilvusClientI
	vectors []milvus.DocumentVector
}

func (f *upsertVector) UpsertDocumentVector(ctx context.Context, v milvus.DocumentVector) error {
	f.vectors = append(f.vectors, v)
	return nil
}

// fakeProvider implements ai.Provider with function fields.
type fakeProvider struct {
	generateText func(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error)
	embedTexts   func(ctx context.Context, texts []string, taskType string) (*ai.EmbedResult, error)
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) GenerateText(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
	return f.generateText(ctx, input)
}
func (f *fakeProvider) RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*ai.RecoveryResult, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeProvider) EmbedTexts(ctx context.Context, texts []string, taskType string) (*ai.EmbedResult, error) {
	return f.embedTexts(ctx, texts, taskType)
}
func (f *fakeProvider) ForModelFamily(modelFamily string) (ai.Provider, error) { return f, nil }
func (f *fakeProvider) Close() error                                           { return nil }

func newActivityWorker(repo repository.Repository) *Worker {
	return &Worker{
		repository: repo,
		fetcher: fetcher.NewFetcher(config.FetchConfig{
			MaxBufferBytes: 1 << 20,
			RequestTimeout: 10 * time.Second,
		}, zap.NewNop()),
		extractor:           extractor.NewExtractor(config.ExtractConfig{MinTextLen: 20, MinTextLenDocx: 50}),
		log:                 zap.NewNop(),
		metadataPrefixChars: 15000,
		embedPrefixChars:    8000,
	}
}

func TestDownloadAndExtractActivity(t *testing.T) {
	c := qt.New(t)

	body := "This plain text document has more than enough characters to index."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	repo := &docRepository{docs: map[string]*repository.DocumentModel{
		"doc-1": {ID: "doc-1", Name: "notes.txt", Type: "txt", URL: srv.URL + "/notes.txt"},
	}}
	w := newActivityWorker(repo)

	t.Run("plain text extracts locally", func(t *testing.T) {
		result, err := w.DownloadAndExtractActivity(context.Background(), &DownloadAndExtractActivityParam{DocID: "doc-1"})
		c.Assert(err, qt.IsNil)
		c.Assert(result.NeedsRecovery, qt.IsFalse)
		c.Assert(result.Text, qt.Equals, body)
		c.Assert(result.Method, qt.Equals, extractor.MethodTextParser)
		c.Assert(result.Size, qt.Equals, int64(len(body)))
	})

	t.Run("unsupported format signals recovery", func(t *testing.T) {
		repo.docs["doc-2"] = &repository.DocumentModel{ID: "doc-2", Name: "scan.png", Type: "png", URL: srv.URL + "/scan.png"}
		result, err := w.DownloadAndExtractActivity(context.Background(), &DownloadAndExtractActivityParam{DocID: "doc-2"})
		c.Assert(err, qt.IsNil)
		c.Assert(result.NeedsRecovery, qt.IsTrue)
		c.Assert(result.Text, qt.Equals, "")
	})

	t.Run("missing document fails", func(t *testing.T) {
		_, err := w.DownloadAndExtractActivity(context.Background(), &DownloadAndExtractActivityParam{DocID: "missing"})
		c.Assert(err, qt.IsNotNil)
	})

	t.Run("unreachable URL fails", func(t *testing.T) {
		repo.docs["doc-3"] = &repository.DocumentModel{ID: "doc-3", Name: "gone.txt", Type: "txt", URL: srv.URL + "/gone"}
		srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		_, err := w.DownloadAndExtractActivity(context.Background(), &DownloadAndExtractActivityParam{DocID: "doc-3"})
		c.Assert(err, qt.IsNotNil)
	})
}

func TestSynthesizeMetadataActivity(t *testing.T) {
	c := qt.New(t)

	repo := &docRepository{docs: map[string]*repository.DocumentModel{
		"doc-1": {ID: "doc-1", Name: "report.pdf"},
	}}

	t.Run("valid model response", func(t *testing.T) {
		w := newActivityWorker(repo)
		w.ai = &fakeProvider{generateText: func(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
			c.Assert(input.JSONOutput, qt.IsTrue)
			return &ai.GenerateTextResult{
				Text:        `{"title":"Q3 Report","summary":"Revenue results.","language":"en","key_information":["revenue +12%"]}`,
				TotalTokens: 321,
			}, nil
		}}

		result, err := w.SynthesizeMetadataActivity(context.Background(), &SynthesizeMetadataActivityParam{
			DocID: "doc-1",
			Text:  "Revenue grew by twelve percent in the third quarter.",
			Model: "gemini-2.5-flash",
		})
		c.Assert(err, qt.IsNil)
		c.Assert(result.Metadata.Title, qt.Equals, "Q3 Report")
		c.Assert(result.Metadata.Language, qt.Equals, "en")
		c.Assert(result.Metadata.KeyInformation, qt.DeepEquals, []string{"revenue +12%"})

		usage := repo.usage[len(repo.usage)-1]
		c.Assert(usage.Status, qt.Equals, repository.TokenUsageStatusSuccess)
		c.Assert(usage.Model, qt.Equals, "gemini-2.5-flash")
		c.Assert(usage.Tokens, qt.Equals, 321)
	})

	t.Run("model failure yields placeholder", func(t *testing.T) {
		w := newActivityWorker(repo)
		w.ai = &fakeProvider{generateText: func(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
			return nil, fmt.Errorf("model unavailable")
		}}

		result, err := w.SynthesizeMetadataActivity(context.Background(), &SynthesizeMetadataActivityParam{
			DocID: "doc-1",
			Text:  "some text",
		})
		c.Assert(err, qt.IsNil)
		c.Assert(result.Metadata.Title, qt.Equals, "report.pdf")
		c.Assert(result.Metadata.Summary, qt.Equals, placeholderSummary)
		c.Assert(result.Metadata.Language, qt.Equals, "und")
		c.Assert(result.Metadata.KeyInformation, qt.HasLen, 0)

		usage := repo.usage[len(repo.usage)-1]
		c.Assert(usage.Status, qt.Equals, repository.TokenUsageStatusError)
		c.Assert(usage.ErrorMsg, qt.Contains, "model unavailable")
		c.Assert(usage.Tokens, qt.Equals, 0)
	})

	t.Run("malformed JSON yields placeholder", func(t *testing.T) {
		w := newActivityWorker(repo)
		w.ai = &fakeProvider{generateText: func(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
			return &ai.GenerateTextResult{Text: "not json at all"}, nil
		}}

		result, err := w.SynthesizeMetadataActivity(context.Background(), &SynthesizeMetadataActivityParam{
			DocID: "doc-1",
			Text:  "some text",
		})
		c.Assert(err, qt.IsNil)
		c.Assert(result.Metadata.Summary, qt.Equals, placeholderSummary)
	})
}

func TestFinalizeDocumentActivity(t *testing.T) {
	c := qt.New(t)

	repo := &docRepository{docs: map[string]*repository.DocumentModel{}}
	w := newActivityWorker(repo)

	result, err := w.FinalizeDocumentActivity(context.Background(), &FinalizeDocumentActivityParam{
		DocID:          "doc-1",
		ProcessVersion: 3,
		Status:         repository.DocumentStatusIndexed,
		Text:           "Full extracted text of the report.",
		Method:         extractor.MethodTextParser,
		Metadata: DocumentMetadata{
			Title:          "Q3 Report",
			Summary:        "Revenue results.",
			Language:       "en",
			KeyInformation: []string{"revenue +12%"},
		},
		Size: 2048,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(result.Applied, qt.IsTrue)
	c.Assert(repo.finalized, qt.HasLen, 1)

	update := repo.finalized[0]
	c.Assert(update.Status, qt.Equals, repository.DocumentStatusIndexed)
	c.Assert(update.Size, qt.Equals, int64(2048))

	// The indexed payload lands in extracted_content as structured JSON so
	// clients can parse it. The upload-owned content column is untouched.
	var payload indexedContent
	c.Assert(json.Unmarshal([]byte(update.ExtractedContent), &payload), qt.IsNil)
	c.Assert(payload.Title, qt.Equals, "Q3 Report")
	c.Assert(payload.FullTextContent, qt.Equals, "Full extracted text of the report.")
	c.Assert(payload.ParseMethod, qt.Equals, extractor.MethodTextParser)
}

func TestEmbedAndIndexActivity(t *testing.T) {
	c := qt.New(t)

	repo := &docRepository{docs: map[string]*repository.DocumentModel{
		"doc-1": {ID: "doc-1", Name: "report.pdf"},
	}}
	vector := &upsertVector{}

	var embedded string
	w := newActivityWorker(repo)
	w.vector = vector
	w.ai = &fakeProvider{embedTexts: func(ctx context.Context, texts []string, taskType string) (*ai.EmbedResult, error) {
		c.Assert(texts, qt.HasLen, 1)
		c.Assert(taskType, qt.Equals, ai.TaskTypeRetrievalDocument)
		embedded = texts[0]
		return &ai.EmbedResult{
			Vectors: [][]float32{make([]float32, milvus.VectorDim)},
			Model:   "text-embedding-004",
		}, nil
	}}

	// Content past the embedding prefix must not reach the model.
	text := strings.Repeat("a", ai.EmbedContentPrefixChars) + "OUT-OF-PREFIX"
	err := w.EmbedAndIndexActivity(context.Background(), &EmbedAndIndexActivityParam{
		DocID:    "doc-1",
		Text:     text,
		Metadata: DocumentMetadata{Title: "Q3 Report", Summary: "Revenue results."},
	})
	c.Assert(err, qt.IsNil)

	c.Assert(strings.Contains(embedded, "File: report.pdf"), qt.IsTrue)
	c.Assert(strings.Contains(embedded, "Title: Q3 Report"), qt.IsTrue)
	c.Assert(strings.Contains(embedded, "OUT-OF-PREFIX"), qt.IsFalse)

	c.Assert(vector.vectors, qt.HasLen, 1)
	c.Assert(vector.vectors[0].DocID, qt.Equals, "doc-1")

	usage := repo.usage[len(repo.usage)-1]
	c.Assert(usage.Status, qt.Equals, repository.TokenUsageStatusSuccess)
	c.Assert(usage.Model, qt.Equals, "text-embedding-004")
	c.Assert(usage.Tokens, qt.Equals, 0)
}
