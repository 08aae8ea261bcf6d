package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/document/pdftest"
)

func TestFontsWithoutReader(t *testing.T) {
	d := pdftest.NewDocument(pdftest.Page{Content: "BT /F1 10 Tf 72 700 Td (Hi!) Tj ET", StructParents: -1})
	d.Builder.Set(d.Font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 72 /Widths [722 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 222] >>")

	doc, err := Open(d.Bytes())
	require.NoError(t, err)
	doc.reader = nil

	page, err := doc.Page(1)
	require.NoError(t, err)
	pc, _, err := content.NewExtractor(nil).ExtractContent(page)
	require.NoError(t, err)

	require.Len(t, pc.Glyphs, 3)
	assert.Equal(t, "H", pc.Glyphs[0].Text)
	assert.InDelta(t, 7.22, pc.Glyphs[0].Width, 0.001)
	assert.Equal(t, "i", pc.Glyphs[1].Text)
	assert.InDelta(t, 2.22, pc.Glyphs[1].Width, 0.001)
	// '!' is below FirstChar and the font has no MissingWidth
	assert.Equal(t, "!", pc.Glyphs[2].Text)
	assert.InDelta(t, 0, pc.Glyphs[2].Width, 0.001)
}

func TestSimpleFontTwoByte(t *testing.T) {
	ft := &simpleFont{twoByte: true, defaultCID: 1000}
	codes := ft.Codes([]byte{0x00, 0x41, 0x07})
	require.Len(t, codes, 2)
	assert.Equal(t, 0x41, codes[0].Value)
	_, ok := ft.Decode(codes[0])
	assert.False(t, ok)
	assert.Equal(t, 1000.0, ft.Width(codes[1]))
}
