package ai

import (
	"context"
)

// Model family identifiers used to route requests to a concrete provider.
const (
	ModelFamilyGemini = "gemini"
	ModelFamilyOpenAI = "openai"
)

// Embedding task types, following the Gemini task-specific embedding API.
// OpenAI ignores the task type.
const (
	TaskTypeRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeRetrievalQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingDim is the vector dimensionality requested from every provider
// so that all vectors in the index are comparable.
const EmbeddingDim = 768

// Recovery methods reported by RecoverDocumentText.
const (
	RecoveryMethodVisionOCR        = "vision-ocr"
	RecoveryMethodVisionOCRFileAPI = "vision-ocr-file-api"
)

// Attachment is a binary payload sent alongside a prompt.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// GenerateTextInput describes a single text-generation request.
type GenerateTextInput struct {
	// Model is the provider model name (e.g. "gemini-2.5-flash").
	Model  string
	Prompt string
	// Attachment is optional multimodal content the prompt refers to.
	Attachment *Attachment
	// JSONOutput requests a JSON response body from the model.
	JSONOutput bool
}

// GenerateTextResult is the output of a text-generation request.
type GenerateTextResult struct {
	Text  string
	Model string
	// TotalTokens is the token count reported by the provider, zero when
	// the provider does not report usage.
	TotalTokens int
}

// RecoveryResult is the output of vision-based document text recovery.
type RecoveryResult struct {
	Text   string
	Method string
	// IsPartial is true when the recovered text is an index-quality summary
	// rather than a full extraction.
	IsPartial   bool
	TotalTokens int
}

// EmbedResult is the output of a batch embedding request.
type EmbedResult struct {
	Vectors        [][]float32
	Model          string
	Dimensionality int32
}

// Provider defines the interface for AI providers that generate text,
// recover text from documents the local parsers cannot handle, and
// produce embeddings.
type Provider interface {
	// Name returns the provider name (e.g. "gemini", "openai")
	Name() string

	// GenerateText runs a single text-generation request
	GenerateText(ctx context.Context, input GenerateTextInput) (*GenerateTextResult, error)

	// RecoverDocumentText extracts text from a document using the
	// provider's multimodal understanding. Small documents are sent
	// inline; large ones go through the provider file API and come back
	// as an index-quality summary with IsPartial set.
	RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*RecoveryResult, error)

	// EmbedTexts generates embeddings for a batch of texts
	EmbedTexts(ctx context.Context, texts []string, taskType string) (*EmbedResult, error)

	// ForModelFamily returns the provider serving the given model family,
	// or an error when the family is not configured
	ForModelFamily(modelFamily string) (Provider, error)

	// Close releases provider resources
	Close() error
}
