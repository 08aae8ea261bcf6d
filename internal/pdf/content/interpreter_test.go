package content_test

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content/contenttest"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

func extract(t *testing.T, page content.Page, opts ...content.Option) *content.PageMarks {
	t.Helper()
	marks, err := content.NewExtractor(content.NewInterpreter(opts...)).Extract(page)
	require.NoError(t, err)
	return marks
}

func TestTaggedScopeCapturesText(t *testing.T) {
	page := contenttest.NewPage(1, `/P <</MCID 3>> BDC BT /F1 12 Tf (ABC) Tj ET EMC`)
	marks := extract(t, page)

	assert.Equal(t, 1, marks.Count())
	assert.Equal(t, "ABC", marks.Text[3])
	require.Len(t, marks.Glyphs[3], 3)

	a, b := marks.Glyphs[3][0], marks.Glyphs[3][1]
	assert.InDelta(t, 0.0, a.X, 1e-9)
	assert.InDelta(t, 6.0, a.Width, 1e-9)
	assert.InDelta(t, 12.0, a.Height, 1e-9)
	assert.InDelta(t, 6.0, b.X, 1e-9)
	assert.Equal(t, 612.0, a.PageWidth)
	assert.True(t, marks.Nesting.Balanced())
}

func TestEndScopeOnEmptyStack(t *testing.T) {
	ec := pdferrors.NewErrorCollection()
	page := contenttest.NewPage(1, "EMC EMC\n"+contenttest.Tagged(1, 10, 10, 10, "X"))
	marks := extract(t, page, content.WithErrorCollection(ec))

	assert.Equal(t, "X", marks.Text[1])
	assert.Equal(t, 2, marks.Nesting.Underflows)
	assert.Equal(t, 1, marks.Nesting.Pushes)
	assert.Equal(t, 1, marks.Nesting.Pops)
	assert.Equal(t, 1, ec.Count(pdferrors.ErrorTypeMalformedNesting))
}

func TestUntaggedScopesAreBalancedButNotCaptured(t *testing.T) {
	page := contenttest.NewPage(1,
		`/Div <</MCID 1>> BDC BT /F1 10 Tf (A) Tj ET /Span BMC BT /F1 10 Tf (B) Tj ET EMC EMC `+
			`/Artifact BMC BT /F1 10 Tf (C) Tj ET EMC`)
	marks := extract(t, page)

	assert.Equal(t, map[int]string{1: "A"}, marks.Text)
	assert.Equal(t, 3, marks.Nesting.Pushes)
	assert.True(t, marks.Nesting.Balanced())
}

func TestUnclosedScope(t *testing.T) {
	page := contenttest.NewPage(1, `/P <</MCID 4>> BDC BT /F1 10 Tf (Z) Tj ET`)
	marks := extract(t, page)

	assert.Equal(t, "Z", marks.Text[4])
	assert.Equal(t, 1, marks.Nesting.Unclosed)
	assert.False(t, marks.Nesting.Balanced())
}

func TestSameTagAtTwoDepthsMerges(t *testing.T) {
	page := contenttest.NewPage(1,
		`/P <</MCID 2>> BDC BT /F1 10 Tf (A) Tj ET /P <</MCID 2>> BDC BT /F1 10 Tf 20 0 Td (B) Tj ET EMC EMC`)
	marks := extract(t, page)

	assert.Equal(t, "AB", marks.Text[2])
	assert.Len(t, marks.Glyphs[2], 2)
}

func TestPropertiesResourceTag(t *testing.T) {
	page := contenttest.NewPage(1, `/P /MC0 BDC BT /F1 10 Tf (Q) Tj ET EMC /P /Missing BDC BT /F1 10 Tf (R) Tj ET EMC`)
	page.Res.Properties["MC0"] = 5
	marks := extract(t, page)

	assert.Equal(t, map[int]string{5: "Q"}, marks.Text)
}

func TestUndecodableGlyphIsSkipped(t *testing.T) {
	ec := pdferrors.NewErrorCollection()
	page := contenttest.NewPage(1, contenttest.Tagged(1, 0, 0, 10, "ABC"))
	page.Res.Fonts["F1"] = &contenttest.Font{Advance: 500, Unmapped: map[int]bool{'B': true}}

	pc, err := content.NewInterpreter(content.WithErrorCollection(ec)).Run(page)
	require.NoError(t, err)

	marks := content.MarksFromContent(pc)
	assert.Equal(t, "AC", marks.Text[1])
	assert.Equal(t, 1, pc.Undecodable)
	assert.Equal(t, 1, ec.Count(pdferrors.ErrorTypeGlyphUndecodable))

	// the skipped glyph still advances the pen
	require.Len(t, marks.Glyphs[1], 2)
	assert.InDelta(t, 10.0, marks.Glyphs[1][1].X, 1e-9)
}

func TestTextArraySpacing(t *testing.T) {
	page := contenttest.NewPage(1, `/P <</MCID 0>> BDC BT /F1 10 Tf [(A) -1000 (B)] TJ ET EMC`)
	marks := extract(t, page)

	require.Len(t, marks.Glyphs[0], 2)
	assert.InDelta(t, 15.0, marks.Glyphs[0][1].X, 1e-9)
}

func TestTextPositioningOperators(t *testing.T) {
	page := contenttest.NewPage(1,
		`/P <</MCID 0>> BDC BT /F1 10 Tf 14 TL 50 700 Td (A) Tj T* (B) Tj 0 -20 TD (C) Tj (D) ' ET EMC`)
	marks := extract(t, page)

	glyphs := marks.Glyphs[0]
	require.Len(t, glyphs, 4)
	assert.InDelta(t, 700.0, glyphs[0].Y, 1e-9)
	assert.InDelta(t, 686.0, glyphs[1].Y, 1e-9)
	assert.InDelta(t, 50.0, glyphs[1].X, 1e-9)
	assert.InDelta(t, 666.0, glyphs[2].Y, 1e-9)
	// TD set the leading to 20
	assert.InDelta(t, 646.0, glyphs[3].Y, 1e-9)
}

func TestTransformsScaleGlyphs(t *testing.T) {
	page := contenttest.NewPage(1,
		`q 2 0 0 2 100 100 cm /P <</MCID 1>> BDC BT /F1 10 Tf 50 Tz (A) Tj ET EMC Q `+
			`/P <</MCID 2>> BDC BT /F1 10 Tf (B) Tj ET EMC`)
	marks := extract(t, page)

	a := marks.Glyphs[1][0]
	assert.InDelta(t, 100.0, a.X, 1e-9)
	assert.InDelta(t, 20.0, a.FontSize, 1e-9)
	// 0.5 em at 10pt, halved by Tz and doubled by the CTM
	assert.InDelta(t, 5.0, a.Width, 1e-9)

	b := marks.Glyphs[2][0]
	assert.InDelta(t, 0.0, b.X, 1e-9)
	assert.InDelta(t, 10.0, b.FontSize, 1e-9)
}

func TestFormXObject(t *testing.T) {
	page := contenttest.NewPage(1, `q /Fm1 Do Q /P <</MCID 9>> BDC BT /F1 10 Tf (Y) Tj ET EMC`)
	page.Res.Forms["Fm1"] = &content.Form{
		Content: []byte(`/P <</MCID 2>> BDC BT /F1 10 Tf (Z) Tj ET EMC`),
		Matrix:  content.Translate(100, 200),
	}
	marks := extract(t, page)

	require.Len(t, marks.Glyphs[2], 1)
	assert.InDelta(t, 100.0, marks.Glyphs[2][0].X, 1e-9)
	assert.InDelta(t, 200.0, marks.Glyphs[2][0].Y, 1e-9)
	assert.InDelta(t, 0.0, marks.Glyphs[9][0].X, 1e-9)
}

func TestRecursiveFormStops(t *testing.T) {
	page := contenttest.NewPage(1, `/P <</MCID 1>> BDC /Fm1 Do EMC`)
	page.Res.Forms["Fm1"] = &content.Form{
		Content: []byte(`BT /F1 10 Tf (Z) Tj ET /Fm1 Do`),
		Matrix:  content.Identity(),
	}
	marks := extract(t, page)

	assert.Len(t, marks.Glyphs[1], content.DefaultMaxFormDepth)
}

func TestMissingFontSkipsText(t *testing.T) {
	page := contenttest.NewPage(1, `/P <</MCID 1>> BDC BT /F9 10 Tf (AB) Tj ET EMC`+"\n"+contenttest.Tagged(2, 0, 0, 10, "C"))
	marks := extract(t, page)

	assert.Equal(t, map[int]string{2: "C"}, marks.Text)
}

func TestUnreadableContent(t *testing.T) {
	page := contenttest.NewPage(3, "")
	page.Err = stderrors.New("bad stream")

	_, err := content.NewExtractor(nil).Extract(page)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, pdferrors.ErrMalformedPage))
}

func TestSegments(t *testing.T) {
	page := contenttest.NewPage(1,
		contenttest.HLine(10, 110, 10, 2)+
			"0 50 100 0.5 re f\n"+
			"0 0 m 5 5 l n\n"+
			"q 2 0 0 2 0 0 cm 0 w 0 100 m 0 200 l S Q\n")
	pc, err := content.NewInterpreter().Run(page)
	require.NoError(t, err)
	require.Len(t, pc.Segments, 3)

	stroke := pc.Segments[0]
	assert.True(t, stroke.Stroked)
	assert.InDelta(t, 2.0, stroke.Thickness, 1e-9)
	assert.InDelta(t, 100.0, stroke.Length(), 1e-9)

	fill := pc.Segments[1]
	assert.False(t, fill.Stroked)
	assert.InDelta(t, 50.25, fill.Y0, 1e-9)
	assert.InDelta(t, 0.5, fill.Thickness, 1e-9)

	hair := pc.Segments[2]
	assert.InDelta(t, 0.01, hair.Thickness, 1e-9)
	assert.InDelta(t, 400.0, hair.Y1, 1e-9)
}

func TestRotatedPage(t *testing.T) {
	page := contenttest.NewPage(1,
		"/P <</MCID 0>> BDC BT /F1 10 Tf 0 1 -1 0 100 200 Tm (AB) Tj ET EMC\n"+
			"1 w 100 100 m 100 300 l S\n")
	page.Geom.Rotation = 90

	pc, err := content.NewInterpreter().Run(page)
	require.NoError(t, err)

	require.Len(t, pc.Glyphs, 2)
	a, b := pc.Glyphs[0], pc.Glyphs[1]
	assert.InDelta(t, 200.0, a.X, 1e-9)
	assert.InDelta(t, 512.0, a.Y, 1e-9)
	assert.InDelta(t, 5.0, a.Width, 1e-9)
	assert.InDelta(t, 10.0, a.Height, 1e-9)
	assert.InDelta(t, 205.0, b.X, 1e-9)
	assert.InDelta(t, 512.0, b.Y, 1e-9)
	assert.Equal(t, 792.0, a.PageWidth)
	assert.Equal(t, 612.0, a.PageHeight)
	assert.Equal(t, 90, a.Rotation)

	// a vertical rule in user space is horizontal on the displayed page
	require.Len(t, pc.Segments, 1)
	s := pc.Segments[0]
	assert.InDelta(t, 512.0, s.Y0, 1e-9)
	assert.InDelta(t, 512.0, s.Y1, 1e-9)
	assert.InDelta(t, 100.0, math.Min(s.X0, s.X1), 1e-9)
	assert.InDelta(t, 300.0, math.Max(s.X0, s.X1), 1e-9)
}

func TestDeviceMatrix(t *testing.T) {
	letter := content.Rect{X1: 612, Y1: 792}
	tests := []struct {
		name         string
		geom         content.Geometry
		x, y         float64
		wantX, wantY float64
		w, h         float64
	}{
		{"unrotated", content.Geometry{MediaBox: letter}, 10, 20, 10, 20, 612, 792},
		{"90 origin", content.Geometry{MediaBox: letter, Rotation: 90}, 0, 0, 0, 612, 792, 612},
		{"90 far corner", content.Geometry{MediaBox: letter, Rotation: 90}, 612, 792, 792, 0, 792, 612},
		{"180", content.Geometry{MediaBox: letter, Rotation: 180}, 0, 0, 612, 792, 612, 792},
		{"270", content.Geometry{MediaBox: letter, Rotation: 270}, 0, 0, 792, 0, 792, 612},
		{"90 offset box", content.Geometry{MediaBox: content.Rect{X0: 10, Y0: 20, X1: 622, Y1: 812}, Rotation: 90}, 10, 20, 0, 612, 792, 612},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.geom.DeviceMatrix().Apply(tt.x, tt.y)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
			w, h := tt.geom.Size()
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}
