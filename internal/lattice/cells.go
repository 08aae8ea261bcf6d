package lattice

import (
	"math"
	"sort"
	"strings"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// Cell is one grid cell. Runs are the runs bucketed to its column whose
// center falls in its row band.
type Cell struct {
	Row, Col int
	Box      content.Rect
	Text     string
	Runs     []Run
}

// rowOf returns the row whose (bottom, top] span holds y; rows are
// breakpoints ordered top-down. Positions beyond the outer breakpoints clamp
// to the first or last row.
func rowOf(y float64, rows []float64) int {
	n := len(rows)
	if n < 2 {
		return -1
	}
	if y > rows[0] {
		return 0
	}
	for i := 0; i+1 < n; i++ {
		if y <= rows[i] && y > rows[i+1] {
			return i
		}
	}
	return n - 2
}

// emitCells builds the column x row grid and drops each bucketed run into
// the cell of its own column
func emitCells(columns, rows []float64, buckets [][]Run) [][]Cell {
	grid := make([][]Cell, len(rows)-1)
	for r := range grid {
		grid[r] = make([]Cell, len(columns)-1)
		for c := range grid[r] {
			grid[r][c] = Cell{
				Row: r,
				Col: c,
				Box: content.Rect{X0: columns[c], Y0: rows[r+1], X1: columns[c+1], Y1: rows[r]},
			}
		}
	}

	for c, runs := range buckets {
		for _, run := range runs {
			if r := rowOf(run.CenterY(), rows); r >= 0 {
				grid[r][c].Runs = append(grid[r][c].Runs, run)
			}
		}
	}

	for r := range grid {
		for c := range grid[r] {
			grid[r][c].Text = softMerge(grid[r][c].Runs)
		}
	}
	return grid
}

// Block is a paragraph of runs with its bounding box
type Block struct {
	Text string
	Box  content.Rect
}

type textLine struct {
	runs        []Run
	baseline    float64
	top, bottom float64
	size        float64
}

// Paragraphs groups runs top-down into lines by baseline and lines into
// blocks. A vertical gap wider than SoftMergeGapEm font sizes starts a new
// block; lines within a block are joined with a space.
func Paragraphs(runs []Run) []Block {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Baseline > sorted[j].Baseline })

	var lines []*textLine
	for _, r := range sorted {
		if n := len(lines); n > 0 {
			l := lines[n-1]
			if math.Abs(r.Baseline-l.baseline) <= math.Max(1, 0.5*l.size) {
				l.runs = append(l.runs, r)
				l.top = math.Max(l.top, r.Box.Y1)
				l.bottom = math.Min(l.bottom, r.Box.Y0)
				l.size = math.Max(l.size, r.FontSize)
				continue
			}
		}
		lines = append(lines, &textLine{runs: []Run{r}, baseline: r.Baseline, top: r.Box.Y1, bottom: r.Box.Y0, size: r.FontSize})
	}

	var blocks []Block
	var words []string
	var box content.Rect
	for i, l := range lines {
		sort.SliceStable(l.runs, func(a, b int) bool { return l.runs[a].Box.X0 < l.runs[b].Box.X0 })
		if i > 0 && lines[i-1].bottom-l.top > SoftMergeGapEm*l.size {
			blocks = append(blocks, Block{Text: strings.Join(words, " "), Box: box})
			words = nil
		}
		for j, r := range l.runs {
			if len(words) == 0 && j == 0 {
				box = r.Box
			} else {
				box = box.Union(r.Box)
			}
			words = append(words, r.Text)
		}
	}
	return append(blocks, Block{Text: strings.Join(words, " "), Box: box})
}

// softMerge joins a cell's runs into paragraphs separated by line breaks
func softMerge(runs []Run) string {
	blocks := Paragraphs(runs)
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, "\n")
}

// medianRowHeight is the upper median of row heights
func medianRowHeight(rows []float64) float64 {
	if len(rows) < 2 {
		return 0
	}
	heights := make([]float64, 0, len(rows)-1)
	for i := 0; i+1 < len(rows); i++ {
		heights = append(heights, rows[i]-rows[i+1])
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}

// mergeContinuations folds rows holding text only in the rightmost column
// into the nearest anchor row, above first, within ContinuationRange median
// row heights. Text only moves within the rightmost column.
func mergeContinuations(grid [][]Cell, rows []float64) int {
	if len(grid) == 0 || len(grid[0]) < 2 {
		return 0
	}
	last := len(grid[0]) - 1
	limit := ContinuationRange * medianRowHeight(rows)

	merged := 0
	for r := range grid {
		if anchored(grid[r], last) || grid[r][last].Text == "" {
			continue
		}
		a := nearestAnchor(grid, r, rows, limit)
		if a < 0 {
			continue
		}
		anchor, orphan := &grid[a][last], &grid[r][last]
		if anchor.Text == "" {
			anchor.Text = orphan.Text
		} else {
			anchor.Text += "\n" + orphan.Text
		}
		anchor.Runs = append(anchor.Runs, orphan.Runs...)
		orphan.Text = ""
		orphan.Runs = nil
		merged++
	}
	return merged
}

// anchored reports whether any column left of last has text
func anchored(row []Cell, last int) bool {
	for c := 0; c < last; c++ {
		if row[c].Text != "" {
			return true
		}
	}
	return false
}

func nearestAnchor(grid [][]Cell, r int, rows []float64, limit float64) int {
	last := len(grid[r]) - 1
	for a := r - 1; a >= 0; a-- {
		if anchored(grid[a], last) {
			if math.Abs(rows[r]-rows[a]) <= limit {
				return a
			}
			break
		}
	}
	for a := r + 1; a < len(grid); a++ {
		if anchored(grid[a], last) {
			if math.Abs(rows[r]-rows[a]) <= limit {
				return a
			}
			break
		}
	}
	return -1
}
