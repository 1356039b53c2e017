package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/docvault/ingest-backend/internal/ai"

	errorsx "github.com/instill-ai/x/errors"
)

// EmbedTexts generates embeddings for a batch of texts using the Gemini API
//
// taskType specifies the optimization:
// - TaskTypeRetrievalDocument: For text being stored in the vector DB
// - TaskTypeRetrievalQuery: For search queries finding similar documents
func (p *Provider) EmbedTexts(ctx context.Context, texts []string, taskType string) (*ai.EmbedResult, error) {
	if len(texts) == 0 {
		return &ai.EmbedResult{
			Vectors:        [][]float32{},
			Model:          EmbeddingModel,
			Dimensionality: ai.EmbeddingDim,
		}, nil
	}

	// Validate inputs
	for i, text := range texts {
		if text == "" {
			return nil, errorsx.AddMessage(
				fmt.Errorf("text at index %d is empty", i),
				"Cannot generate embeddings for empty text",
			)
		}
	}

	// Process texts concurrently with retry logic
	// Note: Gemini API doesn't have a batch endpoint, so we call EmbedContent for each text
	vectors := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var embeddingErr error

	const maxRetries = 3

	for i, text := range texts {
		wg.Add(1)
		go func(idx int, txt string) {
			defer wg.Done()

			// Retry with exponential backoff for transient failures
			var embedding []float32
			var err error

			for attempt := range maxRetries {
				contents := []*genai.Content{
					genai.NewContentFromText(txt, genai.RoleUser),
				}

				result, apiErr := p.client.Models.EmbedContent(ctx, EmbeddingModel, contents, &genai.EmbedContentConfig{
					TaskType:             taskType,
					OutputDimensionality: genai.Ptr(int32(ai.EmbeddingDim)),
				})

				if apiErr != nil {
					err = fmt.Errorf("gemini API call failed for text %d: %w", idx, apiErr)
					if attempt < maxRetries-1 {
						// Exponential backoff: 1s, 2s
						backoff := time.Duration(1<<uint(attempt)) * time.Second
						time.Sleep(backoff)
						continue
					}
					break
				}

				if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
					err = fmt.Errorf("empty embedding returned for text %d", idx)
					if attempt < maxRetries-1 {
						backoff := time.Duration(1<<uint(attempt)) * time.Second
						time.Sleep(backoff)
						continue
					}
					break
				}

				embedding = result.Embeddings[0].Values
				err = nil
				break
			}

			// Handle errors after all retries exhausted
			if err != nil {
				mu.Lock()
				if embeddingErr == nil {
					embeddingErr = errorsx.AddMessage(
						fmt.Errorf("gemini embedding failed for text %d after %d attempts: %w", idx, maxRetries, err),
						"Unable to generate embeddings. Please try again.",
					)
				}
				mu.Unlock()
				return
			}

			// Store result at correct index to preserve order
			mu.Lock()
			vectors[idx] = embedding
			mu.Unlock()
		}(i, text)
	}

	wg.Wait()

	if embeddingErr != nil {
		return nil, embeddingErr
	}

	return &ai.EmbedResult{
		Vectors:        vectors,
		Model:          EmbeddingModel,
		Dimensionality: ai.EmbeddingDim,
	}, nil
}
