// Package extract routes a document through the structure walker when it
// is tagged and through the lattice reconstructor when it is not.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-structure/internal/lattice"
	"github.com/a3tai/mcp-pdf-structure/internal/pagecache"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// Result sources
const (
	SourceStructure = "structure"
	SourceLattice   = "lattice"
)

// Document is an opened PDF the pipeline can read pages and structure from
type Document interface {
	pagecache.PageSource
	StructTree() (*structure.Tree, error)
	Locator(tree *structure.Tree) structure.PageLocator
}

// Options configures a Session
type Options struct {
	// Workers bounds concurrent page parses and lattice pages
	Workers         int
	ProgressEvery   int
	NormalizeText   bool
	SplitContainers bool
	Lattice         lattice.Config
	Logger          *slog.Logger
}

// Result is the output of one extraction run
type Result struct {
	RunID      string              `json:"run_id"`
	Source     string              `json:"source"`
	Pages      int                 `json:"pages"`
	Paragraphs []structure.Record  `json:"paragraphs"`
	Tables     []structure.Table   `json:"tables"`
	Elements   []structure.Element `json:"elements"`
	// Lattice holds the raw grids behind Tables on the lattice path
	Lattice    []*lattice.Table           `json:"-"`
	CacheStats pagecache.Stats            `json:"cache_stats"`
	Errors     *pdferrors.ErrorCollection `json:"-"`
	// PageErr aggregates per-page failures; the run still completes
	PageErr  error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Session owns the page cache and error summary for one document. The
// cache is warmed once and shared by every call on the session.
type Session struct {
	doc     Document
	opts    Options
	logger  *slog.Logger
	runID   string
	errors  *pdferrors.ErrorCollection
	cache   *pagecache.Cache
	latRecs *lattice.Reconstructor

	preloadOnce sync.Once
	preloadErr  error

	latticeOnce   sync.Once
	latticeTables []*lattice.Table
	latticeErr    error
}

// NewSession prepares a session over doc
func NewSession(doc Document, opts Options) *Session {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	ec := pdferrors.NewErrorCollection()
	if pe, ok := doc.(interface{ PageErrors() []*pdferrors.PDFError }); ok {
		for _, e := range pe.PageErrors() {
			ec.Add(e)
		}
	}
	interp := content.NewInterpreter(content.WithLogger(logger), content.WithErrorCollection(ec))
	cache := pagecache.New(doc, content.NewExtractor(interp), pagecache.Config{
		ProgressEvery: opts.ProgressEvery,
		Workers:       opts.Workers,
		Logger:        logger,
	})

	latCfg := opts.Lattice
	latCfg.Logger = logger
	latCfg.Errors = ec

	return &Session{
		doc:     doc,
		opts:    opts,
		logger:  logger,
		runID:   runID,
		errors:  ec,
		cache:   cache,
		latRecs: lattice.New(latCfg),
	}
}

// RunID identifies the session in logs and results
func (s *Session) RunID() string { return s.runID }

// Cache exposes the session's page cache
func (s *Session) Cache() *pagecache.Cache { return s.cache }

// Errors returns the session's error summary
func (s *Session) Errors() *pdferrors.ErrorCollection { return s.errors }

// Preload warms the cache with every page. Only cancellation is returned
// as an error; page failures are recorded and left in PageErrors.
func (s *Session) Preload(ctx context.Context) error {
	s.preloadOnce.Do(func() {
		err := s.cache.PreloadAll(ctx)
		for _, e := range multierr.Errors(err) {
			if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
				continue
			}
			// the interpreter already recorded its own failures
			var pdfErr *pdferrors.PDFError
			if !errors.As(e, &pdfErr) {
				s.errors.Add(pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, e))
			}
			s.logger.Warn("page failed to parse", "error", e)
		}
		s.preloadErr = err
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("preload cancelled: %w", err)
	}
	return nil
}

// PageErrors returns the per-page preload failures
func (s *Session) PageErrors() error {
	var out error
	for _, e := range multierr.Errors(s.preloadErr) {
		if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
			continue
		}
		out = multierr.Append(out, e)
	}
	return out
}

// Run extracts reading-order records. Tagged documents go through the
// structure walker; untagged ones, and tagged ones whose tree resolves no
// content, fall back to the lattice reconstructor.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := s.Preload(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:  s.runID,
		Pages:  s.doc.PageCount(),
		Errors: s.errors,
	}

	tree, err := s.doc.StructTree()
	switch {
	case errors.Is(err, pdferrors.ErrStructureMissing):
		s.errors.Add(pdferrors.NewPDFError(pdferrors.ErrorTypeStructureMissing, "document has no structure tree"))
		s.logger.Info("no structure tree, falling back to lattice reconstruction")
		if err := s.runLattice(ctx, res); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read structure tree: %w", err)
	default:
		walker := structure.NewWalker(tree, s.cache, s.doc.Locator(tree), structure.Options{
			SplitContainers: s.opts.SplitContainers,
			NormalizeText:   s.opts.NormalizeText,
			Logger:          s.logger,
			Errors:          s.errors,
		})
		walked := walker.Walk()
		if len(walked.Paragraphs) == 0 && len(walked.Tables) == 0 {
			s.errors.Add(pdferrors.NewPDFError(pdferrors.ErrorTypeStructureMissing, "structure tree resolved no content"))
			s.logger.Warn("structure tree yielded no records, falling back to lattice reconstruction",
				"nodes", tree.Len(), "unresolvable_tags", s.errors.Count(pdferrors.ErrorTypeTagUnresolvable))
			if err := s.runLattice(ctx, res); err != nil {
				return nil, err
			}
			break
		}
		res.Source = SourceStructure
		res.Paragraphs = walked.Paragraphs
		res.Tables = walked.Tables
		res.Elements = walked.Elements
		res.PageErr = s.PageErrors()
	}

	res.CacheStats = s.cache.Stats()
	res.Duration = time.Since(start)
	s.logger.Info("extraction complete",
		"source", res.Source,
		"paragraphs", len(res.Paragraphs),
		"tables", len(res.Tables),
		"errors", s.errors.Total(),
		"elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

// runLattice fills res from the lattice path: one table per page plus
// paragraphs from the text outside the tables, in reading order
func (s *Session) runLattice(ctx context.Context, res *Result) error {
	tables, latErr := s.Lattice(ctx)
	if ctx.Err() != nil {
		return fmt.Errorf("lattice cancelled: %w", ctx.Err())
	}
	res.Source = SourceLattice
	res.Lattice = tables
	res.Tables = TablesFromLattice(tables, s.opts.NormalizeText)
	res.Paragraphs = s.proseParagraphs(tables)
	res.Elements = structure.Merge(res.Paragraphs, res.Tables)
	res.PageErr = multierr.Append(s.PageErrors(), latErr)
	return nil
}

// proseParagraphs groups each page's runs outside its table into paragraph
// records numbered in page order
func (s *Session) proseParagraphs(tables []*lattice.Table) []structure.Record {
	byPage := make(map[int]*lattice.Table, len(tables))
	for _, t := range tables {
		byPage[t.Page] = t
	}

	var out []structure.Record
	for page := 1; page <= s.doc.PageCount(); page++ {
		pc, err := s.cache.Content(page)
		if err != nil {
			continue
		}
		var runs []lattice.Run
		for _, r := range lattice.BuildRuns(pc.Glyphs) {
			if t := byPage[page]; t != nil && t.Box.Contains(r.CenterX(), r.CenterY()) {
				continue
			}
			runs = append(runs, r)
		}
		for _, b := range lattice.Paragraphs(runs) {
			text := structure.CleanText(b.Text, s.opts.NormalizeText)
			if text == "" {
				continue
			}
			out = append(out, structure.Record{
				ID:    structure.FormatParagraphID(len(out) + 1),
				Type:  structure.TypeP,
				Text:  text,
				Pages: []int{page},
				Boxes: []structure.PageBox{{Page: page, Box: b.Box}},
			})
		}
	}
	return out
}

// Lattice reconstructs one table per page in parallel over the warmed
// cache. Pages without a table are omitted; the result is in page order.
func (s *Session) Lattice(ctx context.Context) ([]*lattice.Table, error) {
	if err := s.Preload(ctx); err != nil {
		return nil, err
	}
	s.latticeOnce.Do(func() {
		pages := make([]int, s.doc.PageCount())
		for i := range pages {
			pages[i] = i + 1
		}

		var (
			mu   sync.Mutex
			errs error
		)
		mapper := iter.Mapper[int, *lattice.Table]{MaxGoroutines: s.opts.Workers}
		tables := mapper.Map(pages, func(page *int) *lattice.Table {
			if ctx.Err() != nil {
				return nil
			}
			t, err := s.reconstructPage(*page)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return t
		})

		for _, t := range tables {
			if t != nil {
				s.latticeTables = append(s.latticeTables, t)
			}
		}
		s.latticeErr = errs
	})
	return s.latticeTables, s.latticeErr
}

func (s *Session) reconstructPage(page int) (t *lattice.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: panic during table reconstruction: %v", page, r)
			t = nil
		}
	}()

	pc, err := s.cache.Content(page)
	if err != nil {
		// already reported by preload
		return nil, nil
	}
	return s.latRecs.Reconstruct(pc), nil
}

// PageTable returns the lattice table of one page, or nil
func (s *Session) PageTable(ctx context.Context, page int) (*lattice.Table, error) {
	tables, err := s.Lattice(ctx)
	for _, t := range tables {
		if t.Page == page {
			return t, err
		}
	}
	return nil, err
}

// TablesFromLattice converts reconstructed grids into table records with
// the same id scheme the walker uses. Tables are numbered in page order.
func TablesFromLattice(tables []*lattice.Table, normalize bool) []structure.Table {
	out := make([]structure.Table, 0, len(tables))
	for i, t := range tables {
		tableID := structure.FormatTableID(i + 1)
		rec := structure.Table{Record: structure.Record{
			ID:    tableID,
			Type:  structure.TypeTable,
			Pages: []int{t.Page},
			Boxes: []structure.PageBox{{Page: t.Page, Box: t.Box}},
		}}
		for r, cells := range t.Cells {
			rowID := structure.FormatRowID(tableID, r+1)
			row := structure.Row{Record: structure.Record{
				ID:    rowID,
				Type:  structure.TypeTR,
				Pages: []int{t.Page},
				Boxes: []structure.PageBox{{Page: t.Page, Box: content.Rect{
					X0: t.Box.X0, Y0: t.Rows[r+1], X1: t.Box.X1, Y1: t.Rows[r],
				}}},
			}}
			for c, cell := range cells {
				row.Cells = append(row.Cells, structure.Record{
					ID:    structure.FormatCellID(rowID, c+1),
					Type:  structure.TypeTD,
					Text:  structure.CleanText(cell.Text, normalize),
					Pages: []int{t.Page},
					Boxes: []structure.PageBox{{Page: t.Page, Box: cell.Box}},
				})
			}
			rec.Rows = append(rec.Rows, row)
		}
		out = append(out, rec)
	}
	return out
}
