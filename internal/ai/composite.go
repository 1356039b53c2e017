package ai

import (
	"context"
	"fmt"

	errorsx "github.com/instill-ai/x/errors"
)

// compositeProvider wraps multiple providers and routes requests based on
// model family
type compositeProvider struct {
	providers       map[string]Provider
	defaultProvider Provider
}

// NewCompositeProvider creates a composite provider from a map of providers
// keyed by model family. This allows external callers to initialize
// individual providers and compose them.
func NewCompositeProvider(providers map[string]Provider, defaultModelFamily string) (Provider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be provided")
	}

	// If only one provider, return it directly (no need for composite wrapper)
	if len(providers) == 1 {
		for _, provider := range providers {
			return provider, nil
		}
	}

	// Determine default provider
	defaultProvider, ok := providers[defaultModelFamily]
	if !ok {
		// Use first available provider
		for _, provider := range providers {
			defaultProvider = provider
			break
		}
	}

	return &compositeProvider{
		providers:       providers,
		defaultProvider: defaultProvider,
	}, nil
}

// Name returns "composite" to indicate this is a multi-provider
func (c *compositeProvider) Name() string {
	return "composite"
}

// ForModelFamily returns the provider for a specific model family
func (c *compositeProvider) ForModelFamily(modelFamily string) (Provider, error) {
	provider, ok := c.providers[modelFamily]
	if !ok {
		return nil, errorsx.AddMessage(
			fmt.Errorf("unsupported model family: %s", modelFamily),
			fmt.Sprintf("Model family %s is not configured. Please contact your administrator.", modelFamily),
		)
	}
	if provider == nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("provider for model family %s is not initialized", modelFamily),
			fmt.Sprintf("%s provider is not configured. Please configure the API key in your settings.", modelFamily),
		)
	}
	return provider, nil
}

// GenerateText delegates to the default provider
func (c *compositeProvider) GenerateText(ctx context.Context, input GenerateTextInput) (*GenerateTextResult, error) {
	return c.defaultProvider.GenerateText(ctx, input)
}

// RecoverDocumentText delegates to the default provider
func (c *compositeProvider) RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*RecoveryResult, error) {
	return c.defaultProvider.RecoverDocumentText(ctx, content, mimeType, filename, model)
}

// EmbedTexts generates embeddings using the default provider
// For model-family-specific embedding, use ForModelFamily first
func (c *compositeProvider) EmbedTexts(ctx context.Context, texts []string, taskType string) (*EmbedResult, error) {
	return c.defaultProvider.EmbedTexts(ctx, texts, taskType)
}

// Close releases all wrapped providers
func (c *compositeProvider) Close() error {
	var firstErr error
	for family, provider := range c.providers {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s provider: %w", family, err)
		}
	}
	return firstErr
}
