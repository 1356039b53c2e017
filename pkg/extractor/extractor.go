package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docvault/ingest-backend/config"
)

// Extraction methods recorded on indexed documents.
const (
	MethodTextParser        = "text-parser"
	MethodSpreadsheetParser = "spreadsheet-parser"
	MethodDocxParser        = "docx-parser"
	MethodPDFParser         = "pdf-parser"
)

// minPDFProviderTextLen is the minimum text length a PDF provider result
// must reach before the local parser is skipped.
const minPDFProviderTextLen = 100

// PDFProvider extracts PDF text through an external high-fidelity service.
// It is tried before the local PDF parser.
type PDFProvider interface {
	// Method labels extractions produced by this provider.
	Method() string
	ExtractPDF(ctx context.Context, data []byte) (string, error)
}

// ErrUnsupportedType signals that no local parser handles the document
// type. The caller falls through to vision recovery.
var ErrUnsupportedType = fmt.Errorf("unsupported document type")

// ErrInsufficientText signals that a parser ran but produced too little
// text to be a usable extraction. Scanned PDFs and image-heavy Word
// documents typically land here.
var ErrInsufficientText = fmt.Errorf("extracted text below minimum length")

// Result is a successful local extraction.
type Result struct {
	Text   string
	Method string
}

// Extractor routes documents to format-specific parsers and validates that
// the output is long enough to index.
type Extractor struct {
	minTextLen     int
	minTextLenDocx int
	pdfProvider    PDFProvider
}

// NewExtractor creates an Extractor from config. Non-positive thresholds
// use the defaults.
func NewExtractor(cfg config.ExtractConfig) *Extractor {
	minTextLen := cfg.MinTextLen
	if minTextLen <= 0 {
		minTextLen = 20
	}
	minTextLenDocx := cfg.MinTextLenDocx
	if minTextLenDocx <= 0 {
		minTextLenDocx = 50
	}
	return &Extractor{
		minTextLen:     minTextLen,
		minTextLenDocx: minTextLenDocx,
	}
}

// WithPDFProvider routes PDFs through the given provider before the local
// parser. A nil provider leaves the local parser as the only path.
func (e *Extractor) WithPDFProvider(p PDFProvider) *Extractor {
	e.pdfProvider = p
	return e
}

// Extract parses the document content with the parser matching its type.
// ErrUnsupportedType and ErrInsufficientText are recoverable signals; any
// other error means the parser itself failed on the content.
func (e *Extractor) Extract(ctx context.Context, docType, filename string, data []byte) (*Result, error) {
	var (
		text   string
		method string
		minLen = e.minTextLen
		err    error
	)

	switch formatFor(docType, filename) {
	case "txt":
		text, err = extractText(data)
		method = MethodTextParser
	case "xlsx":
		text, err = extractSpreadsheet(data)
		method = MethodSpreadsheetParser
	case "docx":
		text, err = extractDocx(data)
		method = MethodDocxParser
		minLen = e.minTextLenDocx
	case "pdf":
		if result := e.extractPDFViaProvider(ctx, data); result != nil {
			return result, nil
		}
		text, err = extractPDF(data)
		method = MethodPDFParser
	default:
		return nil, ErrUnsupportedType
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	text = strings.TrimSpace(text)
	if len(text) < minLen {
		return nil, fmt.Errorf("%s produced %d chars: %w", method, len(text), ErrInsufficientText)
	}

	return &Result{Text: text, Method: method}, nil
}

// extractPDFViaProvider tries the configured high-fidelity provider. A
// provider failure or a too-short result returns nil and the local parser
// takes over.
func (e *Extractor) extractPDFViaProvider(ctx context.Context, data []byte) *Result {
	if e.pdfProvider == nil {
		return nil
	}
	text, err := e.pdfProvider.ExtractPDF(ctx, data)
	if err != nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if len(text) <= minPDFProviderTextLen {
		return nil
	}
	return &Result{Text: text, Method: e.pdfProvider.Method()}
}

// formatFor collapses stored type and filename extension into a parser key.
func formatFor(docType, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		ext = strings.ToLower(docType)
	}
	// Stored MIME types map back to their extension
	switch docType {
	case "application/pdf":
		ext = "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		ext = "docx"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		ext = "xlsx"
	case "text/plain", "text/markdown", "text/csv", "text/html":
		ext = "txt"
	}

	switch ext {
	case "txt", "text", "md", "markdown", "csv", "log", "json", "html", "htm":
		return "txt"
	case "xlsx", "xlsm", "xltx", "xltm":
		return "xlsx"
	case "docx":
		return "docx"
	case "pdf":
		return "pdf"
	default:
		return ""
	}
}
