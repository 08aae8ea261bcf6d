package lattice

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// Table is a reconstructed grid. Columns are x breakpoints left to right,
// Rows are y breakpoints top to bottom.
type Table struct {
	Page      int
	Box       content.Rect
	Columns   []float64
	Rows      []float64
	EvenSplit bool
	Cells     [][]Cell
	// Continuations counts rows folded into an anchor row
	Continuations int
}

func (t *Table) NumRows() int { return len(t.Rows) - 1 }
func (t *Table) NumCols() int { return len(t.Columns) - 1 }

// Reconstructor rebuilds one table per page from glyphs and ruling lines
type Reconstructor struct {
	cfg Config
}

// New creates a reconstructor
func New(cfg Config) *Reconstructor {
	return &Reconstructor{cfg: cfg.withDefaults()}
}

// Reconstruct builds the table of an interpreted page. It returns nil when
// the page carries no ruling geometry or no text inside it.
func (r *Reconstructor) Reconstruct(pc *content.PageContent) *Table {
	if pc == nil {
		return nil
	}
	return r.ReconstructRuns(pc.Page, BuildRuns(pc.Glyphs), pc.Segments)
}

// ReconstructRuns runs the column, bucket, band, reconcile and emit stages
// over prepared runs and segments
func (r *Reconstructor) ReconstructRuns(page int, runs []Run, segs []content.Segment) *Table {
	logger := r.cfg.Logger.With("page", page)

	horizontal, vertical := splitRulings(segs)
	box, ok := extent(horizontal, vertical)
	if !ok {
		logger.Debug("no ruling geometry on page")
		return nil
	}
	if box.Width() < MinLenPt || box.Height() < MinLenPt {
		r.insufficient(page, fmt.Sprintf("ruling extent %.1fx%.1f", box.Width(), box.Height()))
		logger.Warn("ruling extent too small for a table", "width", box.Width(), "height", box.Height())
		return nil
	}

	var inside []Run
	for _, run := range runs {
		cx, cy := run.CenterX(), run.CenterY()
		if cx >= box.X0-EpsX && cx <= box.X1+EpsX && cy >= box.Y0-EpsY && cy <= box.Y1+EpsY {
			inside = append(inside, run)
		}
	}
	if len(inside) == 0 {
		logger.Debug("ruled area holds no text")
		return nil
	}

	t := &Table{Page: page, Box: box}
	t.Columns = columnBreaks(vertical, box)
	if len(t.Columns)-1 < r.cfg.MinColumns {
		r.insufficient(page, fmt.Sprintf("%d column breakpoints", len(t.Columns)))
		logger.Warn("too few column breakpoints, splitting evenly",
			"breakpoints", len(t.Columns), "columns", r.cfg.FallbackColumns)
		t.Columns = evenSplit(box, r.cfg.FallbackColumns)
		t.EvenSplit = true
	}

	buckets := bucket(inside, t.Columns)
	bands := make([][]band, len(buckets))
	for c, runs := range buckets {
		bands[c] = clusterBands(runs)
	}

	var rulings []Ruling
	for _, h := range horizontal {
		if reliable(h, inside, t.Columns) {
			rulings = append(rulings, h)
		}
	}

	rc := &reconciler{columns: bands, rulings: rulings, runs: inside, box: box, support: r.cfg.RowSupport}
	t.Rows = rc.rows()

	t.Cells = emitCells(t.Columns, t.Rows, buckets)
	t.Continuations = mergeContinuations(t.Cells, t.Rows)

	logger.Debug("table reconstructed",
		"rows", t.NumRows(), "cols", t.NumCols(), "reliable_rulings", len(rulings),
		"continuations", t.Continuations, "even_split", t.EvenSplit)
	return t
}

func (r *Reconstructor) insufficient(page int, detail string) {
	if r.cfg.Errors == nil {
		return
	}
	r.cfg.Errors.Add(pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInsufficientGeometry,
		pdferrors.ErrInsufficientGeometry.Message, detail).WithPage(page))
}
