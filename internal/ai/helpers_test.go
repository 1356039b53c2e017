package ai

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestMIMEForDocument(t *testing.T) {
	c := qt.New(t)

	t.Run("stored MIME type wins", func(t *testing.T) {
		c.Assert(MIMEForDocument("application/pdf", "report.txt"), qt.Equals, "application/pdf")
	})

	t.Run("extension decides when type is bare", func(t *testing.T) {
		c.Assert(MIMEForDocument("pdf", "report.pdf"), qt.Equals, "application/pdf")
		c.Assert(MIMEForDocument("", "notes.docx"), qt.Equals, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		c.Assert(MIMEForDocument("", "sheet.XLSX"), qt.Equals, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Assert(MIMEForDocument("", "photo.jpeg"), qt.Equals, "image/jpeg")
	})

	t.Run("bare type used when filename has no extension", func(t *testing.T) {
		c.Assert(MIMEForDocument("csv", "export"), qt.Equals, "text/csv")
	})

	t.Run("unknown falls back to octet-stream", func(t *testing.T) {
		c.Assert(MIMEForDocument("", "blob.xyz"), qt.Equals, "application/octet-stream")
	})
}

func TestIsTextMIME(t *testing.T) {
	c := qt.New(t)

	c.Assert(IsTextMIME("text/plain"), qt.IsTrue)
	c.Assert(IsTextMIME("text/csv"), qt.IsTrue)
	c.Assert(IsTextMIME("application/pdf"), qt.IsFalse)
	c.Assert(IsTextMIME("image/png"), qt.IsFalse)
}

func TestTruncateChars(t *testing.T) {
	c := qt.New(t)

	t.Run("short text unchanged", func(t *testing.T) {
		c.Assert(TruncateChars("hello", 10), qt.Equals, "hello")
	})

	t.Run("long text truncated", func(t *testing.T) {
		c.Assert(TruncateChars("hello world", 5), qt.Equals, "hello")
	})

	t.Run("multi-byte text never cut mid-character", func(t *testing.T) {
		s := strings.Repeat("日本語", 10)
		out := TruncateChars(s, 7)
		c.Assert([]rune(out), qt.HasLen, 7)
		c.Assert(strings.HasPrefix(s, out), qt.IsTrue)
	})

	t.Run("non-positive max is a no-op", func(t *testing.T) {
		c.Assert(TruncateChars("hello", 0), qt.Equals, "hello")
		c.Assert(TruncateChars("hello", -1), qt.Equals, "hello")
	})
}

func TestBuildEmbeddingInput(t *testing.T) {
	c := qt.New(t)

	t.Run("short content kept verbatim", func(t *testing.T) {
		input := BuildEmbeddingInput("report.pdf", "Q3 Report", "Quarterly results.", "Revenue grew.")
		c.Assert(input, qt.Equals, "File: report.pdf\nTitle: Q3 Report\nSummary: Quarterly results.\nContent: Revenue grew.")
	})

	t.Run("content clipped to the embedding prefix", func(t *testing.T) {
		content := strings.Repeat("a", EmbedContentPrefixChars) + "TAIL"
		input := BuildEmbeddingInput("report.pdf", "Q3 Report", "Quarterly results.", content)
		c.Assert(strings.Contains(input, "TAIL"), qt.IsFalse)
		c.Assert(strings.HasSuffix(input, strings.Repeat("a", EmbedContentPrefixChars)), qt.IsTrue)
	})
}

func TestEstimateTokenCount(t *testing.T) {
	c := qt.New(t)

	t.Run("empty text", func(t *testing.T) {
		c.Assert(EstimateTokenCount(""), qt.Equals, 0)
	})

	t.Run("small text", func(t *testing.T) {
		tokens := EstimateTokenCount("Hello world!")
		c.Assert(tokens > 0 && tokens < 10, qt.IsTrue)
	})
}
