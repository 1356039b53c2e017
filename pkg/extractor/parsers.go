package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// utf8BOM is stripped from plain-text content before indexing.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	return string(data), nil
}

func extractSpreadsheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %s: %w", sheet, err)
		}

		sb.WriteString("Sheet: " + sheet + "\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			if s, ok := item.(fmt.Stringer); ok {
				sb.WriteString(s.String())
				sb.WriteString("\n")
			}
		}
	}

	return sb.String(), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Pages with broken font tables are skipped rather than failing
		// the whole document
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
