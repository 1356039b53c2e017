package gemini

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	errorsx "github.com/instill-ai/x/errors"
)

// uploadAndWaitForFile uploads a file to the Gemini File API and waits for
// it to become active. Returns the content part referencing the uploaded
// file and the file name for later deletion. The uploaded file is deleted
// here on timeout or processing failure; on success the caller owns cleanup.
func (p *Provider) uploadAndWaitForFile(ctx context.Context, data []byte, mimeType string) (*genai.Part, string, error) {
	file, err := p.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, "", errorsx.AddMessage(
			fmt.Errorf("failed to upload file: %w", err),
			"Unable to upload file to AI service. Please try again.",
		)
	}

	fileName := file.Name

	// Wait for file to become ACTIVE with timeout
	timeoutCtx, cancel := context.WithTimeout(ctx, FileUploadTimeout)
	defer cancel()

	ticker := time.NewTicker(FilePollInterval)
	defer ticker.Stop()

	// Check immediately first
	if fileInfo, err := p.client.Files.Get(ctx, fileName, nil); err == nil {
		if fileInfo.State == genai.FileStateActive {
			return &genai.Part{
				FileData: &genai.FileData{
					FileURI:  file.URI,
					MIMEType: mimeType,
				},
			}, fileName, nil
		}
		if fileInfo.State == genai.FileStateFailed {
			_, _ = p.client.Files.Delete(ctx, fileName, nil)
			err := fmt.Errorf("file processing failed")
			return nil, "", errorsx.AddMessage(err, "AI service failed to process the uploaded file. The file may be corrupted or in an unsupported format.")
		}
	}

	for {
		select {
		case <-timeoutCtx.Done():
			// Clean up the uploaded file on timeout
			_, _ = p.client.Files.Delete(ctx, fileName, nil)
			return nil, "", errorsx.AddMessage(
				fmt.Errorf("timeout waiting for file to become active: %w", timeoutCtx.Err()),
				"File upload timed out. The file may be too large or the service is busy. Please try again later.",
			)
		case <-ticker.C:
			fileInfo, err := p.client.Files.Get(ctx, fileName, nil)
			if err != nil {
				return nil, "", errorsx.AddMessage(
					fmt.Errorf("failed to get file status: %w", err),
					"Unable to check file processing status. Please try again.",
				)
			}

			switch fileInfo.State {
			case genai.FileStateActive:
				return &genai.Part{
					FileData: &genai.FileData{
						FileURI:  file.URI,
						MIMEType: mimeType,
					},
				}, fileName, nil
			case genai.FileStateFailed:
				_, _ = p.client.Files.Delete(ctx, fileName, nil)
				err := fmt.Errorf("file processing failed")
				return nil, "", errorsx.AddMessage(err, "AI service failed to process the uploaded file. The file may be corrupted or in an unsupported format.")
			case genai.FileStateProcessing:
				continue
			default:
				_, _ = p.client.Files.Delete(ctx, fileName, nil)
				return nil, "", errorsx.AddMessage(
					fmt.Errorf("file in unexpected state: %s", fileInfo.State),
					"File processing encountered an unexpected error. Please try again.",
				)
			}
		}
	}
}
