package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/docvault/ingest-backend/internal/ai"

	errorsx "github.com/instill-ai/x/errors"
)

// Provider implements the ai.Provider interface for Gemini
type Provider struct {
	client         *genai.Client
	maxInlineBytes int64
}

// NewProvider creates a new Gemini AI provider. maxInlineBytes controls the
// switch from inline request data to the File API; non-positive values use
// the default.
func NewProvider(ctx context.Context, apiKey string, maxInlineBytes int64) (*Provider, error) {
	if apiKey == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "AI provider configuration is missing. Please contact your administrator.")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to create Gemini client: %w", err),
			"Unable to connect to AI service. Please try again later.",
		)
	}

	if maxInlineBytes <= 0 {
		maxInlineBytes = DefaultMaxInlineBytes
	}

	return &Provider{
		client:         client,
		maxInlineBytes: maxInlineBytes,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ai.ModelFamilyGemini
}

// ForModelFamily returns this provider if the model family matches, otherwise error
func (p *Provider) ForModelFamily(modelFamily string) (ai.Provider, error) {
	if modelFamily == ai.ModelFamilyGemini {
		return p, nil
	}
	return nil, fmt.Errorf("model family %s not supported by Gemini provider", modelFamily)
}

// Close releases provider resources
func (p *Provider) Close() error {
	// The genai.Client doesn't need explicit closing in the current API
	return nil
}
