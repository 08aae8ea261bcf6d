package lattice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// run places text at x on a baseline; each character is half a font size wide
func run(text string, x, baseline, size float64) Run {
	return Run{
		Text:     text,
		Box:      content.Rect{X0: x, Y0: baseline, X1: x + float64(len(text))*size/2, Y1: baseline + size},
		Baseline: baseline,
		FontSize: size,
	}
}

func hline(x0, x1, y, w float64) content.Segment {
	return content.Segment{X0: x0, Y0: y, X1: x1, Y1: y, Thickness: w, Stroked: true}
}

func vline(x, y0, y1, w float64) content.Segment {
	return content.Segment{X0: x, Y0: y0, X1: x, Y1: y1, Thickness: w, Stroked: true}
}

// grid draws a fully ruled table with the given column and row breakpoints
func grid(xs, ys []float64) []content.Segment {
	var segs []content.Segment
	for _, x := range xs {
		segs = append(segs, vline(x, ys[len(ys)-1], ys[0], 1))
	}
	for _, y := range ys {
		segs = append(segs, hline(xs[0], xs[len(xs)-1], y, 1))
	}
	return segs
}

func texts(t *Table) [][]string {
	out := make([][]string, len(t.Cells))
	for r, row := range t.Cells {
		for _, c := range row {
			out[r] = append(out[r], c.Text)
		}
	}
	return out
}

func TestContinuationRowMerge(t *testing.T) {
	segs := grid([]float64{50, 150, 250, 450}, []float64{700, 660, 620, 580})
	runs := []Run{
		run("1", 60, 675, 10), run("Item", 160, 675, 10), run("First", 260, 675, 10),
		run("continued.", 260, 635, 10),
		run("2", 60, 595, 10), run("Other", 160, 595, 10), run("Second", 260, 595, 10),
	}

	table := New(Config{}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)

	assert.Equal(t, []float64{50, 150, 250, 450}, table.Columns)
	assert.Equal(t, []float64{700, 660, 620, 580}, table.Rows)
	assert.False(t, table.EvenSplit)
	assert.Equal(t, 1, table.Continuations)
	assert.Equal(t, [][]string{
		{"1", "Item", "First\ncontinued."},
		{"", "", ""},
		{"2", "Other", "Second"},
	}, texts(table))

	// the moved run stays in its column
	require.Len(t, table.Cells[0][2].Runs, 2)
	assert.Empty(t, table.Cells[1][2].Runs)
}

func textGrid(rows [][]string) [][]Cell {
	grid := make([][]Cell, len(rows))
	for r, row := range rows {
		for c, text := range row {
			grid[r] = append(grid[r], Cell{Row: r, Col: c, Text: text})
		}
	}
	return grid
}

func cellTexts(grid [][]Cell) [][]string {
	out := make([][]string, len(grid))
	for r, row := range grid {
		for _, c := range row {
			out[r] = append(out[r], c.Text)
		}
	}
	return out
}

func TestContinuationMergeDirection(t *testing.T) {
	tests := []struct {
		name   string
		rows   []float64
		cells  [][]string
		merged int
		want   [][]string
	}{
		{
			name:   "no anchor above merges below",
			rows:   []float64{700, 680, 660, 640},
			cells:  [][]string{{"", "", "head"}, {"1", "a", "b"}, {"2", "c", "d"}},
			merged: 1,
			want:   [][]string{{"", "", ""}, {"1", "a", "b\nhead"}, {"2", "c", "d"}},
		},
		{
			name:   "anchor out of range keeps the row",
			rows:   []float64{700, 600, 500, 490, 480, 470},
			cells:  [][]string{{"1", "Item", "First"}, {"", "", "alone"}, {"2", "x", "y"}, {"3", "x", "y"}, {"4", "x", "y"}},
			merged: 0,
			want:   [][]string{{"1", "Item", "First"}, {"", "", "alone"}, {"2", "x", "y"}, {"3", "x", "y"}, {"4", "x", "y"}},
		},
		{
			name:   "two columns",
			rows:   []float64{700, 680, 660},
			cells:  [][]string{{"term", "definition"}, {"", "more"}},
			merged: 1,
			want:   [][]string{{"term", "definition\nmore"}, {"", ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := textGrid(tt.cells)
			assert.Equal(t, tt.merged, mergeContinuations(grid, tt.rows))
			assert.Equal(t, tt.want, cellTexts(grid))
		})
	}
}

func TestEvenSplitFallback(t *testing.T) {
	errs := pdferrors.NewErrorCollection()
	segs := []content.Segment{hline(0, 300, 700, 1), hline(0, 300, 580, 1)}
	runs := []Run{run("A", 20, 650, 10), run("B", 120, 650, 10), run("C", 220, 650, 10)}

	table := New(Config{Errors: errs}).ReconstructRuns(4, runs, segs)
	require.NotNil(t, table)

	assert.True(t, table.EvenSplit)
	assert.Equal(t, []float64{0, 100, 200, 300}, table.Columns)
	assert.Equal(t, [][]string{{"A", "B", "C"}}, texts(table))
	assert.Equal(t, 1, errs.Count(pdferrors.ErrorTypeInsufficientGeometry))

	first, ok := errs.First(pdferrors.ErrorTypeInsufficientGeometry)
	require.True(t, ok)
	assert.Equal(t, 4, first.PageNumber)
}

func TestFallbackColumnsConfigurable(t *testing.T) {
	segs := []content.Segment{hline(0, 400, 700, 1), hline(0, 400, 580, 1)}
	runs := []Run{run("A", 20, 650, 10)}

	table := New(Config{FallbackColumns: 4}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)
	assert.Equal(t, 4, table.NumCols())
}

func TestNoGeometry(t *testing.T) {
	runs := []Run{run("Plain prose", 72, 700, 12)}
	assert.Nil(t, New(Config{}).ReconstructRuns(1, runs, nil))

	// a ruled box with no text in it
	segs := grid([]float64{50, 150, 250}, []float64{300, 200})
	assert.Nil(t, New(Config{}).ReconstructRuns(1, runs, segs))
}

func TestColumnNonOverlap(t *testing.T) {
	xs := []float64{40, 120, 210, 330, 500}
	ys := []float64{720, 690, 660, 630, 600, 570}
	segs := grid(xs, ys)

	var runs []Run
	for r := 0; r+1 < len(ys); r++ {
		for c := 0; c+1 < len(xs); c++ {
			runs = append(runs, run(fmt.Sprintf("r%dc%d", r, c), xs[c]+4, ys[r+1]+10, 9))
		}
	}
	// a run straddling a breakpoint goes where its center is
	runs = append(runs, run("wide", 115, 613, 9))

	table := New(Config{}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)
	require.Equal(t, 4, table.NumCols())
	require.Equal(t, 5, table.NumRows())

	seen := make(map[string]int)
	for _, row := range table.Cells {
		for _, cell := range row {
			for _, rn := range cell.Runs {
				seen[rn.Text]++
				assert.Equal(t, columnOf(rn.CenterX(), table.Columns), cell.Col, rn.Text)
				assert.GreaterOrEqual(t, rn.CenterX(), cell.Box.X0)
				assert.Less(t, rn.CenterX(), cell.Box.X1)
			}
		}
	}
	assert.Len(t, seen, len(runs))
	for text, n := range seen {
		assert.Equal(t, 1, n, text)
	}
	assert.Equal(t, "wide r3c1", table.Cells[3][1].Text)
}

func TestRowVotesWithoutRulings(t *testing.T) {
	// only the outer frame is ruled; rows come from text alignment
	segs := []content.Segment{
		hline(0, 300, 700, 1), hline(0, 300, 600, 1),
		vline(0, 600, 700, 1), vline(100, 600, 700, 1), vline(300, 600, 700, 1),
	}
	runs := []Run{
		run("a1", 10, 680, 10), run("b1", 110, 680, 10),
		run("a2", 10, 640, 10), run("b2", 110, 640, 10),
	}

	table := New(Config{}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)
	assert.Equal(t, [][]string{{"a1", "b1"}, {"a2", "b2"}}, texts(table))

	// two votes fall short of a raised threshold
	table = New(Config{RowSupport: 3}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)
	assert.Equal(t, [][]string{{"a1\na2", "b1\nb2"}}, texts(table))
}

func TestMultiLineCellStaysInOneRow(t *testing.T) {
	segs := grid([]float64{50, 200, 350, 500}, []float64{700, 620, 580})
	runs := []Run{
		run("alpha", 60, 685, 10), run("beta", 60, 673, 10),
		run("gamma", 60, 661, 10), run("delta", 60, 649, 10),
		run("x", 210, 685, 10), run("y", 360, 685, 10),
		run("2", 60, 595, 10), run("b", 210, 595, 10), run("c", 360, 595, 10),
	}

	table := New(Config{}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)

	assert.Equal(t, []float64{700, 620, 580}, table.Rows)
	assert.Equal(t, [][]string{
		{"alpha beta gamma delta", "x", "y"},
		{"2", "b", "c"},
	}, texts(table))
}

func TestClusterBandsByLineGap(t *testing.T) {
	bands := clusterBands([]Run{
		run("one", 10, 685, 10), run("two", 10, 673, 10),
		run("three", 10, 661, 10), run("four", 10, 649, 10),
		run("apart", 10, 600, 10),
	})
	require.Len(t, bands, 2)
	assert.Len(t, bands[0].runs, 4)
	assert.Equal(t, 649.0, bands[0].bottom)
	assert.Equal(t, 695.0, bands[0].top)
}

func TestColumnOf(t *testing.T) {
	breaks := []float64{50, 150, 250}
	tests := []struct {
		x    float64
		want int
	}{
		{49.5, 0},
		{50, 0},
		{149.9, 0},
		{150, 1},
		{250, 1},
		{250.8, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.x), func(t *testing.T) {
			assert.Equal(t, tt.want, columnOf(tt.x, breaks))
		})
	}
	assert.Equal(t, -1, columnOf(10, []float64{50}))
}

func TestRunsOnOuterEdgeAreKept(t *testing.T) {
	segs := grid([]float64{50, 150, 250}, []float64{700, 600})
	// centered half a point left of the frame, inside the EpsX tolerance
	runs := []Run{run("ab", 44.5, 650, 10), run("cd", 160, 650, 10)}

	table := New(Config{}).ReconstructRuns(1, runs, segs)
	require.NotNil(t, table)
	assert.Equal(t, [][]string{{"ab", "cd"}}, texts(table))
}

func TestSoftMerge(t *testing.T) {
	runs := []Run{
		run("second", 40, 688, 10),
		run("first", 10, 688, 10),
		run("line", 10, 676, 10),
		run("after", 10, 640, 10),
	}
	assert.Equal(t, "first second line\nafter", softMerge(runs))
	assert.Equal(t, "", softMerge(nil))
}

func TestReliableRuling(t *testing.T) {
	columns := []float64{50, 150, 250}
	word := run("under", 60, 500, 10)

	tests := []struct {
		name   string
		ruling Ruling
		want   bool
	}{
		{"anchored", Ruling{Pos: 450, Lo: 50, Hi: 250, Thickness: 1}, true},
		{"hairline", Ruling{Pos: 450, Lo: 50, Hi: 250, Thickness: 0.2}, false},
		{"unknown thickness", Ruling{Pos: 450, Lo: 50, Hi: 250}, false},
		{"short", Ruling{Pos: 450, Lo: 50, Hi: 55, Thickness: 1}, false},
		{"floating end", Ruling{Pos: 450, Lo: 50, Hi: 200, Thickness: 1}, false},
		{"underline", Ruling{Pos: 499, Lo: 60, Hi: 85, Thickness: 1}, false},
		{"strike through", Ruling{Pos: 505, Lo: 50, Hi: 250, Thickness: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reliable(tt.ruling, []Run{word}, columns))
		})
	}
}

func TestFuseRulings(t *testing.T) {
	h, v := splitRulings([]content.Segment{
		hline(0, 100, 500, 1),
		hline(101, 200, 500.4, 1),
		hline(205, 300, 500, 1),
		vline(50, 0, 100, 0.5),
		vline(50.2, 100.5, 200, 1),
		{X0: 0, Y0: 0, X1: 50, Y1: 50, Stroked: true},
	})
	require.Len(t, h, 2)
	assert.Equal(t, 0.0, h[0].Lo)
	assert.Equal(t, 200.0, h[0].Hi)
	assert.Equal(t, 205.0, h[1].Lo)

	require.Len(t, v, 1)
	assert.Equal(t, 200.0, v[0].Hi)
	assert.Equal(t, 1.0, v[0].Thickness)
}

func TestBuildRuns(t *testing.T) {
	glyph := func(text string, x, y float64) content.Glyph {
		return content.Glyph{Text: text, X: x, Y: y, Width: 5, Height: 10, FontSize: 10, Tag: -1}
	}
	runs := BuildRuns([]content.Glyph{
		glyph("A", 10, 700), glyph("b", 15, 700),
		glyph(" ", 20, 700),
		glyph("c", 25, 700), glyph("d", 30, 700),
		glyph("e", 60, 700),
		glyph("f", 10, 680),
	})

	var got []string
	for _, r := range runs {
		got = append(got, r.Text)
	}
	assert.Equal(t, []string{"Ab", "cd", "e", "f"}, got)
	assert.Equal(t, content.Rect{X0: 10, Y0: 700, X1: 20, Y1: 710}, runs[0].Box)
	assert.Equal(t, 10.0, runs[0].FontSize)
}

func TestReconstructPageContent(t *testing.T) {
	pc := &content.PageContent{
		Page:     2,
		Segments: grid([]float64{0, 100, 200}, []float64{700, 600}),
	}
	for i, ch := range "left" {
		pc.Glyphs = append(pc.Glyphs, content.Glyph{Text: string(ch), X: 10 + float64(i)*5, Y: 650, Width: 5, Height: 10, FontSize: 10})
	}
	for i, ch := range "right" {
		pc.Glyphs = append(pc.Glyphs, content.Glyph{Text: string(ch), X: 110 + float64(i)*5, Y: 650, Width: 5, Height: 10, FontSize: 10})
	}

	table := New(Config{}).Reconstruct(pc)
	require.NotNil(t, table)
	assert.Equal(t, 2, table.Page)
	assert.Equal(t, [][]string{{"left", "right"}}, texts(table))
	assert.Nil(t, New(Config{}).Reconstruct(nil))
}
