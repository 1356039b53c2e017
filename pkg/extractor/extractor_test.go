package extractor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fumiama/go-docx"
	"github.com/xuri/excelize/v2"

	"github.com/docvault/ingest-backend/config"
)

func newTestExtractor() *Extractor {
	return NewExtractor(config.ExtractConfig{MinTextLen: 20, MinTextLenDocx: 50})
}

func TestFormatFor(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		docType  string
		filename string
		want     string
	}{
		{"pdf", "report.pdf", "pdf"},
		{"application/pdf", "report", "pdf"},
		{"", "notes.docx", "docx"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "notes", "docx"},
		{"", "sheet.xlsx", "xlsx"},
		{"", "data.csv", "txt"},
		{"text/markdown", "readme", "txt"},
		{"", "readme.MD", "txt"},
		{"", "photo.png", ""},
		{"", "archive.zip", ""},
	}
	for _, tc := range cases {
		c.Assert(formatFor(tc.docType, tc.filename), qt.Equals, tc.want, qt.Commentf("type=%q name=%q", tc.docType, tc.filename))
	}
}

func TestExtractText(t *testing.T) {
	c := qt.New(t)
	e := newTestExtractor()

	t.Run("plain text passes through", func(t *testing.T) {
		body := "This is a plain text document with enough content."
		res, err := e.Extract(context.Background(), "txt", "doc.txt", []byte(body))
		c.Assert(err, qt.IsNil)
		c.Assert(res.Text, qt.Equals, body)
		c.Assert(res.Method, qt.Equals, MethodTextParser)
	})

	t.Run("BOM is stripped", func(t *testing.T) {
		body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Text behind a byte order mark, long enough.")...)
		res, err := e.Extract(context.Background(), "txt", "doc.txt", body)
		c.Assert(err, qt.IsNil)
		c.Assert(strings.HasPrefix(res.Text, "Text behind"), qt.IsTrue)
	})

	t.Run("short text fails with insufficient signal", func(t *testing.T) {
		_, err := e.Extract(context.Background(), "txt", "doc.txt", []byte("too short"))
		c.Assert(errors.Is(err, ErrInsufficientText), qt.IsTrue)
	})
}

func TestExtractUnsupportedType(t *testing.T) {
	c := qt.New(t)
	e := newTestExtractor()

	_, err := e.Extract(context.Background(), "png", "scan.png", []byte{0x89, 0x50, 0x4E, 0x47})
	c.Assert(errors.Is(err, ErrUnsupportedType), qt.IsTrue)
}

func TestExtractSpreadsheet(t *testing.T) {
	c := qt.New(t)
	e := newTestExtractor()

	f := excelize.NewFile()
	c.Assert(f.SetCellValue("Sheet1", "A1", "Region"), qt.IsNil)
	c.Assert(f.SetCellValue("Sheet1", "B1", "Revenue"), qt.IsNil)
	c.Assert(f.SetCellValue("Sheet1", "A2", "EMEA"), qt.IsNil)
	c.Assert(f.SetCellValue("Sheet1", "B2", 1250), qt.IsNil)
	buf, err := f.WriteToBuffer()
	c.Assert(err, qt.IsNil)

	res, err := e.Extract(context.Background(), "xlsx", "revenue.xlsx", buf.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Method, qt.Equals, MethodSpreadsheetParser)
	c.Assert(strings.Contains(res.Text, "Sheet: Sheet1"), qt.IsTrue)
	c.Assert(strings.Contains(res.Text, "Region | Revenue"), qt.IsTrue)
	c.Assert(strings.Contains(res.Text, "EMEA | 1250"), qt.IsTrue)
}

func TestExtractDocx(t *testing.T) {
	c := qt.New(t)
	e := newTestExtractor()

	w := docx.New().WithDefaultTheme()
	para := w.AddParagraph()
	para.AddText("This Word document carries enough paragraph text to clear the extraction threshold.")

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	res, err := e.Extract(context.Background(), "docx", "notes.docx", buf.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Method, qt.Equals, MethodDocxParser)
	c.Assert(strings.Contains(res.Text, "enough paragraph text"), qt.IsTrue)
}

func TestExtractCorruptDocumentFails(t *testing.T) {
	c := qt.New(t)
	e := newTestExtractor()

	_, err := e.Extract(context.Background(), "pdf", "broken.pdf", []byte("not a pdf at all"))
	c.Assert(err, qt.IsNotNil)
	c.Assert(errors.Is(err, ErrUnsupportedType), qt.IsFalse)
}

// fakePDFProvider stands in for the external extraction service.
type fakePDFProvider struct {
	text  string
	err   error
	calls int
}

func (f *fakePDFProvider) Method() string { return MethodAdobeExtract }
func (f *fakePDFProvider) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestExtractPDFProvider(t *testing.T) {
	c := qt.New(t)

	t.Run("provider result replaces the local parser", func(t *testing.T) {
		provider := &fakePDFProvider{text: strings.Repeat("High fidelity text. ", 10)}
		e := newTestExtractor().WithPDFProvider(provider)

		res, err := e.Extract(context.Background(), "pdf", "scan.pdf", []byte("not a pdf at all"))
		c.Assert(err, qt.IsNil)
		c.Assert(res.Method, qt.Equals, MethodAdobeExtract)
		c.Assert(strings.Contains(res.Text, "High fidelity text."), qt.IsTrue)
		c.Assert(provider.calls, qt.Equals, 1)
	})

	t.Run("short provider result falls back to the local parser", func(t *testing.T) {
		provider := &fakePDFProvider{text: "too little"}
		e := newTestExtractor().WithPDFProvider(provider)

		_, err := e.Extract(context.Background(), "pdf", "scan.pdf", []byte("not a pdf at all"))
		c.Assert(err, qt.IsNotNil)
		c.Assert(provider.calls, qt.Equals, 1)
	})

	t.Run("provider failure falls back to the local parser", func(t *testing.T) {
		provider := &fakePDFProvider{err: errors.New("service unavailable")}
		e := newTestExtractor().WithPDFProvider(provider)

		_, err := e.Extract(context.Background(), "pdf", "scan.pdf", []byte("not a pdf at all"))
		c.Assert(err, qt.IsNotNil)
		c.Assert(provider.calls, qt.Equals, 1)
	})

	t.Run("non-PDF formats never hit the provider", func(t *testing.T) {
		provider := &fakePDFProvider{text: strings.Repeat("High fidelity text. ", 10)}
		e := newTestExtractor().WithPDFProvider(provider)

		body := "This is a plain text document with enough content."
		res, err := e.Extract(context.Background(), "txt", "doc.txt", []byte(body))
		c.Assert(err, qt.IsNil)
		c.Assert(res.Method, qt.Equals, MethodTextParser)
		c.Assert(provider.calls, qt.Equals, 0)
	})
}
