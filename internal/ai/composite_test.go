package ai

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

type staticProvider struct {
	name string
}

func (s *staticProvider) Name() string { return s.name }
func (s *staticProvider) GenerateText(ctx context.Context, input GenerateTextInput) (*GenerateTextResult, error) {
	return &GenerateTextResult{Text: s.name}, nil
}
func (s *staticProvider) RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*RecoveryResult, error) {
	return &RecoveryResult{Text: s.name}, nil
}
func (s *staticProvider) EmbedTexts(ctx context.Context, texts []string, taskType string) (*EmbedResult, error) {
	return &EmbedResult{Model: s.name}, nil
}
func (s *staticProvider) ForModelFamily(modelFamily string) (Provider, error) { return s, nil }
func (s *staticProvider) Close() error                                        { return nil }

func TestNewCompositeProvider(t *testing.T) {
	c := qt.New(t)

	t.Run("no providers is a startup error", func(t *testing.T) {
		_, err := NewCompositeProvider(map[string]Provider{}, ModelFamilyGemini)
		c.Assert(err, qt.IsNotNil)
	})

	t.Run("single provider returned directly", func(t *testing.T) {
		only := &staticProvider{name: "only"}
		p, err := NewCompositeProvider(map[string]Provider{ModelFamilyGemini: only}, ModelFamilyGemini)
		c.Assert(err, qt.IsNil)
		c.Assert(p, qt.Equals, only)
	})

	t.Run("requests route to the default family", func(t *testing.T) {
		p, err := NewCompositeProvider(map[string]Provider{
			ModelFamilyGemini: &staticProvider{name: "gemini"},
			ModelFamilyOpenAI: &staticProvider{name: "openai"},
		}, ModelFamilyGemini)
		c.Assert(err, qt.IsNil)

		result, err := p.GenerateText(context.Background(), GenerateTextInput{})
		c.Assert(err, qt.IsNil)
		c.Assert(result.Text, qt.Equals, "gemini")
	})

	t.Run("ForModelFamily selects the embedding provider", func(t *testing.T) {
		p, err := NewCompositeProvider(map[string]Provider{
			ModelFamilyGemini: &staticProvider{name: "gemini"},
			ModelFamilyOpenAI: &staticProvider{name: "openai"},
		}, ModelFamilyGemini)
		c.Assert(err, qt.IsNil)

		embedder, err := p.ForModelFamily(ModelFamilyOpenAI)
		c.Assert(err, qt.IsNil)

		result, err := embedder.EmbedTexts(context.Background(), []string{"text"}, TaskTypeRetrievalDocument)
		c.Assert(err, qt.IsNil)
		c.Assert(result.Model, qt.Equals, "openai")

		_, err = p.ForModelFamily("anthropic")
		c.Assert(err, qt.IsNotNil)
	})
}
