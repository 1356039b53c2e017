package milvus

import (
	"strings"
	"testing"
	"unicode/utf8"

	qt "github.com/frankban/quicktest"
)

func TestDeleteExpr(t *testing.T) {
	c := qt.New(t)

	c.Assert(deleteExpr([]string{"doc-1"}), qt.Equals, "embedding_uid in ['doc-1']")
	c.Assert(deleteExpr([]string{"doc-1", "doc-2"}), qt.Equals, "embedding_uid in ['doc-1','doc-2']")
}

func TestMetadataText(t *testing.T) {
	c := qt.New(t)

	t.Run("short text stored verbatim", func(t *testing.T) {
		c.Assert(metadataText("a short preview"), qt.Equals, "a short preview")
	})

	t.Run("long text clipped to the preview cap", func(t *testing.T) {
		text := metadataText(strings.Repeat("a", MaxMetadataTextLen*3))
		c.Assert(len(text), qt.Equals, MaxMetadataTextLen)
	})

	t.Run("multi-byte text never cut mid-character", func(t *testing.T) {
		// 3 bytes per rune, so a byte-based cut at the cap would land
		// inside a character.
		text := metadataText(strings.Repeat("日本語", MaxMetadataTextLen))
		c.Assert(utf8.ValidString(text), qt.IsTrue)
		c.Assert(utf8.RuneCountInString(text), qt.Equals, MaxMetadataTextLen)
	})
}
