package ai

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// MIMEForDocument resolves the MIME type for a stored document. The stored
// type takes precedence when it already is a MIME type; otherwise the file
// extension decides.
func MIMEForDocument(docType, filename string) string {
	if strings.Contains(docType, "/") {
		return docType
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		ext = strings.ToLower(docType)
	}

	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "csv":
		return "text/csv"
	case "txt", "text":
		return "text/plain"
	case "md", "markdown":
		return "text/markdown"
	case "html", "htm":
		return "text/html"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// IsTextMIME returns true for content types that should be sent to the
// model as text parts rather than binary blobs.
func IsTextMIME(mimeType string) bool {
	switch mimeType {
	case "text/plain", "text/markdown", "text/html", "text/csv":
		return true
	default:
		return strings.HasPrefix(mimeType, "text/")
	}
}

// TruncateChars truncates s to at most max characters (runes, so multi-byte
// text is never cut mid-character). Non-positive max returns s unchanged.
func TruncateChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// EstimateTokenCount estimates the token count for a text string
// Note: This is an approximation using the GPT-4 tokenizer (the actual AI
// provider may count differently)
func EstimateTokenCount(text string) int {
	tkm, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		// If we can't get the tokenizer, use a rough estimate: ~4 chars per token
		return len(text) / 4
	}

	return len(tkm.Encode(text, nil, nil))
}

// EmbedContentPrefixChars is how much of the document content goes into the
// embedding input. Filename, title, and summary carry most of the retrieval
// signal; the content prefix anchors them.
const EmbedContentPrefixChars = 2000

// BuildEmbeddingInput assembles the text that gets embedded for a document.
// Only the first EmbedContentPrefixChars characters of the content are used.
func BuildEmbeddingInput(filename, title, summary, content string) string {
	content = TruncateChars(content, EmbedContentPrefixChars)
	return fmt.Sprintf("File: %s\nTitle: %s\nSummary: %s\nContent: %s", filename, title, summary, content)
}
