package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/docvault/ingest-backend/internal/ai"

	errorsx "github.com/instill-ai/x/errors"
)

// GenerateText implements ai.Provider
func (p *Provider) GenerateText(ctx context.Context, input ai.GenerateTextInput) (*ai.GenerateTextResult, error) {
	if input.Prompt == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "Prompt cannot be empty.")
	}

	model := input.Model
	if model == "" {
		model = DefaultGenerationModel
	}

	parts := []*genai.Part{}
	if input.Attachment != nil {
		part, err := p.createContentPart(input.Attachment.Data, input.Attachment.MIMEType)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	parts = append(parts, &genai.Part{Text: input.Prompt})

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: parts,
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, createGenerateContentConfig(input.JSONOutput))
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("gemini API call failed: %w", err),
			"AI service is temporarily unavailable. Please try again in a few moments.",
		)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}

	return &ai.GenerateTextResult{
		Text:        text,
		Model:       model,
		TotalTokens: totalTokens(result),
	}, nil
}

// RecoverDocumentText implements ai.Provider
// Small documents are sent inline and extracted verbatim. Documents larger
// than the inline limit go through the File API and come back as an
// index-quality summary marked partial. The uploaded file is always deleted
// before returning.
func (p *Provider) RecoverDocumentText(ctx context.Context, content []byte, mimeType, filename, model string) (*ai.RecoveryResult, error) {
	if len(content) == 0 {
		return nil, errorsx.AddMessage(errorsx.ErrInvalidArgument, "The file appears to be empty. Please upload a valid file.")
	}
	if mimeType == "" {
		return nil, errorsx.AddMessage(errorsx.ErrInvalidArgument, "Unsupported file type. Please upload a supported file format.")
	}

	if model == "" {
		model = DefaultOCRModel
	}

	var (
		contentPart *genai.Part
		prompt      string
		method      string
		isPartial   bool
	)

	if int64(len(content)) <= p.maxInlineBytes {
		part, err := p.createContentPart(content, mimeType)
		if err != nil {
			return nil, err
		}
		contentPart = part
		prompt = OCRPrompt
		method = ai.RecoveryMethodVisionOCR
	} else {
		part, uploadedFileName, err := p.uploadAndWaitForFile(ctx, content, mimeType)
		if err != nil {
			return nil, errorsx.AddMessage(
				fmt.Errorf("failed to upload file for recovery: %w", err),
				"Unable to upload file to AI service. The file may be too large or the service is busy. Please try again later.",
			)
		}
		// Clean up the uploaded file after recovery
		defer func() {
			_, _ = p.client.Files.Delete(ctx, uploadedFileName, nil)
		}()

		contentPart = part
		prompt = IndexSummaryPrompt
		method = ai.RecoveryMethodVisionOCRFileAPI
		isPartial = true
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				contentPart,
				{Text: prompt},
			},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, createGenerateContentConfig(false))
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("gemini API call failed: %w", err),
			"AI service is temporarily unavailable. Please try again in a few moments.",
		)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to extract text from response: %w", err),
			"Unable to process the AI response. Please try again or contact support.",
		)
	}

	return &ai.RecoveryResult{
		Text:        text,
		Method:      method,
		IsPartial:   isPartial,
		TotalTokens: totalTokens(result),
	}, nil
}

// totalTokens reads the usage metadata off a generation response.
func totalTokens(response *genai.GenerateContentResponse) int {
	if response == nil || response.UsageMetadata == nil {
		return 0
	}
	return int(response.UsageMetadata.TotalTokenCount)
}

// createContentPart creates a genai.Part from the input content. Text-based
// content is sent as a text part; binary content as inline data.
func (p *Provider) createContentPart(content []byte, mimeType string) (*genai.Part, error) {
	if mimeType == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "Unsupported file type. Please upload a supported file format.")
	}

	// Gemini API expects text content in Text parts for proper understanding
	if ai.IsTextMIME(mimeType) {
		return &genai.Part{Text: string(content)}, nil
	}

	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     content,
		},
	}, nil
}

// createGenerateContentConfig builds the generation config. Low temperature
// keeps extraction and metadata output stable across retries.
func createGenerateContentConfig(jsonOutput bool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
		TopP:        genai.Ptr(float32(0.95)),
		TopK:        genai.Ptr(float32(40)),
	}
	if jsonOutput {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

// extractTextFromResponse extracts the text from Gemini's response
func extractTextFromResponse(response *genai.GenerateContentResponse) (string, error) {
	if response == nil {
		err := fmt.Errorf("response is nil")
		return "", errorsx.AddMessage(err, "AI service returned an invalid response. Please try again.")
	}

	if len(response.Candidates) == 0 {
		err := fmt.Errorf("no candidates in response")
		return "", errorsx.AddMessage(err, "AI service could not generate a response. The file may be corrupted or unsupported.")
	}

	candidate := response.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		err := fmt.Errorf("no content in candidate")
		return "", errorsx.AddMessage(err, "AI service returned an empty response. Please try again.")
	}

	// Concatenate all text parts
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	result := cleanOutput(text.String())
	if result == "" {
		err := fmt.Errorf("empty text result")
		return "", errorsx.AddMessage(err, "AI service could not extract any content from the file. The file may be empty or corrupted.")
	}

	return result, nil
}

// cleanOutput removes code block markers the model sometimes wraps its
// output in despite instructions
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}
