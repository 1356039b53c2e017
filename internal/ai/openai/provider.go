package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/docvault/ingest-backend/internal/ai"

	errorsx "github.com/instill-ai/x/errors"
)

// EmbeddingModel is the OpenAI embedding model. text-embedding-3-small
// supports the dimensions parameter, so vectors stay compatible with the
// rest of the index.
const EmbeddingModel = "text-embedding-3-small"

// Provider implements the ai.Provider interface for OpenAI
// Note: This provider supports EMBEDDING GENERATION ONLY
// Text generation and document recovery are NOT supported - use Gemini for these
type Provider struct {
	client         *openai.Client
	embeddingModel string
}

// NewProvider creates a new OpenAI AI provider
func NewProvider(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "AI provider configuration is missing. Please contact your administrator.")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Provider{
		client:         &client,
		embeddingModel: EmbeddingModel,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ai.ModelFamilyOpenAI
}

// ForModelFamily returns this provider if the model family matches, otherwise error
func (p *Provider) ForModelFamily(modelFamily string) (ai.Provider, error) {
	if modelFamily == ai.ModelFamilyOpenAI {
		return p, nil
	}
	return nil, fmt.Errorf("model family %s not supported by OpenAI provider", modelFamily)
}

// GenerateText is not supported by the OpenAI provider
func (p *Provider) GenerateText(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
	return nil, errorsx.AddMessage(
		fmt.Errorf("text generation not supported"),
		"Text generation is not supported by OpenAI provider. Please configure Gemini for document processing.",
	)
}

// RecoverDocumentText is not supported by the OpenAI provider
func (p *Provider) RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*ai.RecoveryResult, error) {
	return nil, errorsx.AddMessage(
		fmt.Errorf("document recovery not supported"),
		"Document recovery is not supported by OpenAI provider. Please configure Gemini for document processing.",
	)
}

// Close releases provider resources
func (p *Provider) Close() error {
	return nil
}
