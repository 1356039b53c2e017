package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/internal/ai"
	"github.com/docvault/ingest-backend/pkg/extractor"
	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"

	errorsx "github.com/instill-ai/x/errors"
)

// This file contains the activities used by ProcessFileWorkflow:
// - GetSystemConfigActivity - Reads the global model configuration
// - UpdateDocumentStatusActivity - Records the current processing stage
// - MarkDocumentFailedActivity - Terminal failure write
// - DownloadAndExtractActivity - Fetch + local extractor chain
// - VisionRecoveryActivity - AI text recovery for unparseable documents
// - SynthesizeMetadataActivity - Title/summary/key-information synthesis
// - FinalizeDocumentActivity - Version-guarded terminal success write
// - EmbedAndIndexActivity - Embedding generation + vector upsert

// Processing stages surfaced through the document status.
const (
	StageDownloading   = "downloading"
	StageOCRProcessing = "ocr-processing"
	StageAIAnalysis    = "ai-analysis"
	StageSaving        = "saving"
)

// analysisPromptTemplate asks the model for document metadata as JSON.
// The schema mirrors DocumentMetadata.
const analysisPromptTemplate = `Analyze the following document and return a JSON object with exactly these fields:
- "title": a concise human-readable title for the document (use the filename as a hint, but prefer a title found in the content)
- "summary": a 2-4 sentence summary of the document
- "language": the ISO 639-1 code of the document's main language (e.g. "en", "de"), or "und" if unclear
- "key_information": an array of up to 10 short strings, each one key fact, figure, date, or name from the document

Return only the JSON object, no other text.

Filename: %s

Document content:
%s`

// placeholderSummary is stored when metadata synthesis fails.
const placeholderSummary = "Automatic analysis failed"

// DocumentMetadata is the synthesized document metadata.
type DocumentMetadata struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Language       string   `json:"language"`
	KeyInformation []string `json:"key_information"`
}

// indexedContent is the terminal content payload stored on the document row.
type indexedContent struct {
	DocumentMetadata
	FullTextContent string `json:"full_text_content"`
	ParseMethod     string `json:"parse_method"`
}

// GetSystemConfigActivity reads the global model configuration
func (w *Worker) GetSystemConfigActivity(ctx context.Context) (repository.SystemConfig, error) {
	cfg, err := w.repository.GetSystemConfig(ctx)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to read system configuration. Please try again.")
		return repository.SystemConfig{}, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			getSystemConfigActivityError,
			err,
		)
	}
	return *cfg, nil
}

// UpdateDocumentStatusActivityParam defines the parameters for the UpdateDocumentStatusActivity
type UpdateDocumentStatusActivityParam struct {
	DocID string
	Stage string
}

// UpdateDocumentStatusActivity records the current processing stage on the
// document row
func (w *Worker) UpdateDocumentStatusActivity(ctx context.Context, param *UpdateDocumentStatusActivityParam) error {
	w.log.Info("Updating document status",
		zap.String("docID", param.DocID),
		zap.String("stage", param.Stage))

	if err := w.repository.UpdateDocumentStatus(ctx, param.DocID, param.Stage); err != nil {
		err = errorsx.AddMessage(err, "Unable to update document status. Please try again.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			updateDocumentStatusActivityError,
			err,
		)
	}
	return nil
}

// MarkDocumentFailedActivityParam defines the parameters for the MarkDocumentFailedActivity
type MarkDocumentFailedActivityParam struct {
	DocID   string
	Message string
}

// MarkDocumentFailedActivity performs the terminal failure write. A missing
// row is not an error here; the document may have been deleted mid-run.
func (w *Worker) MarkDocumentFailedActivity(ctx context.Context, param *MarkDocumentFailedActivityParam) error {
	w.log.Info("Marking document as failed",
		zap.String("docID", param.DocID),
		zap.String("message", param.Message))

	if err := w.repository.MarkDocumentFailed(ctx, param.DocID, param.Message); err != nil {
		w.log.Warn("Failed to mark document as failed (document may be deleted)",
			zap.String("docID", param.DocID),
			zap.Error(err))
	}
	return nil
}

// DownloadAndExtractActivityParam defines the parameters for the DownloadAndExtractActivity
type DownloadAndExtractActivityParam struct {
	DocID string
}

// DownloadAndExtractActivityResult is the outcome of fetch + local extraction
type DownloadAndExtractActivityResult struct {
	Text   string
	Method string
	// Size is the fetched object size in bytes.
	Size int64
	// NeedsRecovery is set when no local parser produced usable text.
	// Vision recovery re-fetches the document itself, so no content rides
	// through the workflow history.
	NeedsRecovery  bool
	RecoveryReason string
}

// DownloadAndExtractActivity fetches the document and runs the local
// extractor chain. Unsupported formats and insufficient extractions are a
// recovery signal, not an error.
func (w *Worker) DownloadAndExtractActivity(ctx context.Context, param *DownloadAndExtractActivityParam) (*DownloadAndExtractActivityResult, error) {
	doc, err := w.getDocument(ctx, param.DocID, downloadAndExtractActivityError)
	if err != nil {
		return nil, err
	}

	w.log.Info("Downloading document",
		zap.String("docID", doc.ID),
		zap.String("url", doc.URL))

	obj, err := w.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to download the document for processing.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			downloadAndExtractActivityError,
			err,
		)
	}
	defer obj.Close()

	data, err := obj.Bytes()
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to read the downloaded document.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			downloadAndExtractActivityError,
			err,
		)
	}

	result, err := w.extractor.Extract(ctx, doc.Type, doc.Name, data)
	if err != nil {
		// Unsupported formats and too-short extractions fall through to
		// vision recovery. Everything else (corrupt archive, broken xref
		// table) does too: the model often reads what the parser cannot.
		reason := err.Error()
		if errors.Is(err, extractor.ErrUnsupportedType) || errors.Is(err, extractor.ErrInsufficientText) {
			w.log.Info("Local extraction yielded no usable text",
				zap.String("docID", doc.ID),
				zap.String("reason", reason))
		} else {
			w.log.Warn("Local parser failed on document content",
				zap.String("docID", doc.ID),
				zap.Error(err))
		}
		return &DownloadAndExtractActivityResult{
			Size:           obj.Size,
			NeedsRecovery:  true,
			RecoveryReason: reason,
		}, nil
	}

	return &DownloadAndExtractActivityResult{
		Text:   ai.TruncateChars(result.Text, MaxCarriedTextChars),
		Method: result.Method,
		Size:   obj.Size,
	}, nil
}

// VisionRecoveryActivityParam defines the parameters for the VisionRecoveryActivity
type VisionRecoveryActivityParam struct {
	DocID string
	// Model is the OCR model from system config.
	Model string
}

// VisionRecoveryActivityResult is the outcome of AI text recovery
type VisionRecoveryActivityResult struct {
	Text   string
	Method string
	// IsPartial marks an index-quality summary of a document too large for
	// verbatim recovery.
	IsPartial bool
}

// VisionRecoveryActivity recovers document text through the AI provider's
// multimodal understanding. The document is re-fetched here; fetches are
// idempotent and this keeps large payloads out of the workflow history.
func (w *Worker) VisionRecoveryActivity(ctx context.Context, param *VisionRecoveryActivityParam) (*VisionRecoveryActivityResult, error) {
	doc, err := w.getDocument(ctx, param.DocID, visionRecoveryActivityError)
	if err != nil {
		return nil, err
	}

	obj, err := w.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to download the document for recovery.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			visionRecoveryActivityError,
			err,
		)
	}
	defer obj.Close()

	data, err := obj.Bytes()
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to read the downloaded document.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			visionRecoveryActivityError,
			err,
		)
	}

	mimeType := ai.MIMEForDocument(doc.Type, doc.Name)
	w.log.Info("Recovering document text via vision model",
		zap.String("docID", doc.ID),
		zap.String("mimeType", mimeType),
		zap.Int("size", len(data)))

	start := time.Now()
	recovery, err := w.ai.RecoverDocumentText(ctx, data, mimeType, doc.Name, param.Model)
	if err != nil {
		w.logTokenUsage(ctx, param.Model, 0, start, err)
		err = errorsx.AddMessage(err, "AI text recovery failed for this document.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			visionRecoveryActivityError,
			err,
		)
	}

	w.logTokenUsage(ctx, param.Model, recovery.TotalTokens, start, nil)

	return &VisionRecoveryActivityResult{
		Text:      ai.TruncateChars(recovery.Text, MaxCarriedTextChars),
		Method:    recovery.Method,
		IsPartial: recovery.IsPartial,
	}, nil
}

// SynthesizeMetadataActivityParam defines the parameters for the SynthesizeMetadataActivity
type SynthesizeMetadataActivityParam struct {
	DocID string
	Text  string
	// Model is the analysis model from system config.
	Model string
}

// SynthesizeMetadataActivityResult carries the synthesized metadata
type SynthesizeMetadataActivityResult struct {
	Metadata DocumentMetadata
}

// SynthesizeMetadataActivity asks the model for title, summary, language,
// and key information over the document prefix. Metadata is best effort:
// every failure path returns placeholder metadata, never an error.
func (w *Worker) SynthesizeMetadataActivity(ctx context.Context, param *SynthesizeMetadataActivityParam) (*SynthesizeMetadataActivityResult, error) {
	doc, err := w.getDocument(ctx, param.DocID, synthesizeMetadataActivityError)
	if err != nil {
		return nil, err
	}

	placeholder := DocumentMetadata{
		Title:          doc.Name,
		Summary:        placeholderSummary,
		Language:       "und",
		KeyInformation: []string{},
	}

	prefix := ai.TruncateChars(param.Text, w.metadataPrefixChars)
	prompt := fmt.Sprintf(analysisPromptTemplate, doc.Name, prefix)

	w.log.Info("Synthesizing document metadata",
		zap.String("docID", doc.ID),
		zap.Int("promptTokens", ai.EstimateTokenCount(prompt)))

	start := time.Now()
	result, err := w.ai.GenerateText(ctx, ai.GenerateTextInput{
		Model:      param.Model,
		Prompt:     prompt,
		JSONOutput: true,
	})
	if err != nil {
		w.logTokenUsage(ctx, param.Model, 0, start, err)
		w.log.Warn("Metadata synthesis failed, using placeholder metadata",
			zap.String("docID", doc.ID),
			zap.Error(err))
		return &SynthesizeMetadataActivityResult{Metadata: placeholder}, nil
	}
	w.logTokenUsage(ctx, param.Model, result.TotalTokens, start, nil)

	var metadata DocumentMetadata
	if err := json.Unmarshal([]byte(result.Text), &metadata); err != nil {
		w.log.Warn("Metadata response is not valid JSON, using placeholder metadata",
			zap.String("docID", doc.ID),
			zap.Error(err))
		return &SynthesizeMetadataActivityResult{Metadata: placeholder}, nil
	}

	if metadata.Title == "" {
		metadata.Title = doc.Name
	}
	if metadata.Language == "" {
		metadata.Language = "und"
	}
	if metadata.KeyInformation == nil {
		metadata.KeyInformation = []string{}
	}

	return &SynthesizeMetadataActivityResult{Metadata: metadata}, nil
}

// FinalizeDocumentActivityParam defines the parameters for the FinalizeDocumentActivity
type FinalizeDocumentActivityParam struct {
	DocID          string
	ProcessVersion int64
	Status         string
	Text           string
	Method         string
	Metadata       DocumentMetadata
	Size           int64
}

// FinalizeDocumentActivityResult reports whether the terminal write applied
type FinalizeDocumentActivityResult struct {
	// Applied is false when a newer run owns the document row.
	Applied bool
}

// FinalizeDocumentActivity performs the version-guarded terminal write
func (w *Worker) FinalizeDocumentActivity(ctx context.Context, param *FinalizeDocumentActivityParam) (*FinalizeDocumentActivityResult, error) {
	content, err := json.Marshal(indexedContent{
		DocumentMetadata: param.Metadata,
		FullTextContent:  param.Text,
		ParseMethod:      param.Method,
	})
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to assemble the indexed document payload.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			finalizeDocumentActivityError,
			err,
		)
	}

	applied, err := w.repository.FinalizeDocument(ctx, param.DocID, param.ProcessVersion, repository.DocumentFinalUpdate{
		Status:           param.Status,
		ExtractedContent: string(content),
		Size:             param.Size,
	})
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to save the processed document. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			finalizeDocumentActivityError,
			err,
		)
	}

	return &FinalizeDocumentActivityResult{Applied: applied}, nil
}

// EmbedAndIndexActivityParam defines the parameters for the EmbedAndIndexActivity
type EmbedAndIndexActivityParam struct {
	DocID    string
	Text     string
	Metadata DocumentMetadata
}

// EmbedAndIndexActivity embeds the document and upserts it into the vector
// index. The workflow treats a failure here as non-fatal.
func (w *Worker) EmbedAndIndexActivity(ctx context.Context, param *EmbedAndIndexActivityParam) error {
	doc, err := w.getDocument(ctx, param.DocID, embedAndIndexActivityError)
	if err != nil {
		return err
	}

	input := ai.BuildEmbeddingInput(doc.Name, param.Metadata.Title, param.Metadata.Summary, param.Text)
	input = ai.TruncateChars(input, w.embedPrefixChars)

	// Embeddings can be served by a different model family than generation
	embedder := w.ai
	if w.embeddingFamily != "" {
		if provider, err := w.ai.ForModelFamily(w.embeddingFamily); err == nil {
			embedder = provider
		} else {
			w.log.Warn("Configured embedding family unavailable, using default provider",
				zap.String("family", w.embeddingFamily),
				zap.Error(err))
		}
	}

	start := time.Now()
	embedResult, err := embedder.EmbedTexts(ctx, []string{input}, ai.TaskTypeRetrievalDocument)
	if err != nil {
		w.logTokenUsage(ctx, "", 0, start, err)
		w.log.Warn("Embedding generation failed, skipping vector indexing",
			zap.String("docID", doc.ID),
			zap.Error(err))
		return nil
	}
	// The embedding API does not report usage; the call is still logged.
	w.logTokenUsage(ctx, embedResult.Model, 0, start, nil)

	// An empty or wrong-dimension vector cannot go into the index
	dim := 0
	if len(embedResult.Vectors) > 0 {
		dim = len(embedResult.Vectors[0])
	}
	if dim != milvus.VectorDim {
		w.log.Warn("Embedding has unexpected dimensionality, skipping vector indexing",
			zap.String("docID", doc.ID),
			zap.Int("dim", dim))
		return nil
	}

	if err := w.vector.UpsertDocumentVector(ctx, milvus.DocumentVector{
		DocID:    doc.ID,
		Filename: doc.Name,
		Text:     param.Text,
		Vector:   embedResult.Vectors[0],
	}); err != nil {
		err = errorsx.AddMessage(err, "Unable to write the document vector to the index.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			embedAndIndexActivityError,
			err,
		)
	}

	w.log.Info("Document indexed",
		zap.String("docID", doc.ID),
		zap.String("model", embedResult.Model))
	return nil
}

// logTokenUsage records one AI call in the token usage log. The log is best
// effort; a write failure never fails the surrounding activity.
func (w *Worker) logTokenUsage(ctx context.Context, model string, tokens int, start time.Time, callErr error) {
	usage := repository.TokenUsage{
		Model:    model,
		Tokens:   tokens,
		Duration: time.Since(start),
		Status:   repository.TokenUsageStatusSuccess,
	}
	if usage.Model == "" {
		usage.Model = "unknown"
	}
	if callErr != nil {
		usage.Status = repository.TokenUsageStatusError
		usage.ErrorMsg = errorsx.MessageOrErr(callErr)
	}
	if err := w.repository.LogTokenUsage(ctx, usage); err != nil {
		w.log.Warn("Failed to record token usage",
			zap.String("model", usage.Model),
			zap.Error(err))
	}
}

// getDocument loads a document row, wrapping errors as the given activity
// error type
func (w *Worker) getDocument(ctx context.Context, docID, activityError string) (*repository.DocumentModel, error) {
	doc, err := w.repository.GetDocumentByID(ctx, docID)
	if err != nil {
		err = errorsx.AddMessage(err, "Document not found. It may have been deleted.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			activityError,
			err,
		)
	}
	return doc, nil
}

// Activity error type constants
const (
	getSystemConfigActivityError      = "GetSystemConfigActivity"
	updateDocumentStatusActivityError = "UpdateDocumentStatusActivity"
	downloadAndExtractActivityError   = "DownloadAndExtractActivity"
	visionRecoveryActivityError       = "VisionRecoveryActivity"
	synthesizeMetadataActivityError   = "SynthesizeMetadataActivity"
	finalizeDocumentActivityError     = "FinalizeDocumentActivity"
	embedAndIndexActivityError        = "EmbedAndIndexActivity"
)
