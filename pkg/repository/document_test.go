package repository

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestDocumentStatusProcessing(t *testing.T) {
	c := qt.New(t)

	c.Assert(DocumentStatusProcessing("downloading"), qt.Equals, "processing-downloading")
	c.Assert(DocumentStatusProcessing("ocr-processing"), qt.Equals, "processing-ocr-processing")
}

func TestProcessingLogLine(t *testing.T) {
	c := qt.New(t)

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	line := ProcessingLogLine("parsing", now)

	c.Assert(line, qt.Equals, "[2026-03-14T09:26:53Z] Processing: parsing...")
}

func TestProcessingLogLine_NonUTC(t *testing.T) {
	c := qt.New(t)

	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 3, 14, 16, 26, 53, 0, loc)

	// Timestamps are always rendered in UTC regardless of the input zone.
	c.Assert(ProcessingLogLine("embedding", now), qt.Contains, "[2026-03-14T09:26:53Z]")
}

func TestErrorDetailsLine(t *testing.T) {
	c := qt.New(t)

	c.Assert(ErrorDetailsLine("fetch failed"), qt.Equals, "ERROR_DETAILS: fetch failed")
}

func TestSystemConfig_ApplyDefaults(t *testing.T) {
	c := qt.New(t)

	cfg := SystemConfig{}
	cfg.applyDefaults()
	c.Assert(cfg.OCRModel, qt.Equals, DefaultOCRModel)
	c.Assert(cfg.AnalysisModel, qt.Equals, DefaultAnalysisModel)
	c.Assert(cfg.EmbeddingModel, qt.Equals, DefaultEmbeddingModel)

	// Existing values are not overwritten.
	cfg = SystemConfig{OCRModel: "gemini-2.5-pro"}
	cfg.applyDefaults()
	c.Assert(cfg.OCRModel, qt.Equals, "gemini-2.5-pro")
	c.Assert(cfg.EmbeddingModel, qt.Equals, DefaultEmbeddingModel)
}

func TestDocumentModel_TableName(t *testing.T) {
	c := qt.New(t)

	c.Assert(DocumentModel{}.TableName(), qt.Equals, "documents")
	c.Assert(SystemSettingsModel{}.TableName(), qt.Equals, "system_settings")
}
