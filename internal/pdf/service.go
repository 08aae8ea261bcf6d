package pdf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-structure/internal/extract"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/document"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/security"
)

// Service opens files from the configured directory and runs extractions
// over them. Every call works on a fresh session.
type Service struct {
	fs            afero.Fs
	maxFileSize   int64
	validator     *Validator
	pathValidator *security.PathValidator
	options       extract.Options
	logger        *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithFs replaces the host filesystem
func WithFs(fs afero.Fs) Option {
	return func(s *Service) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExtractOptions sets the defaults used for every extraction
func WithExtractOptions(opts extract.Options) Option {
	return func(s *Service) {
		s.options = opts
	}
}

// NewService creates a service confined to configuredDirectory
func NewService(maxFileSize int64, configuredDirectory string, opts ...Option) (*Service, error) {
	s := &Service{
		fs:          afero.NewOsFs(),
		maxFileSize: maxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pathValidator, err := security.NewPathValidator(s.fs, configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	s.pathValidator = pathValidator
	s.validator = NewValidator(s.fs, maxFileSize)
	return s, nil
}

// Directory returns the directory files are served from
func (s *Service) Directory() string {
	return s.pathValidator.Directory()
}

// MaxFileSize returns the largest accepted file size in bytes
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// open validates path and starts a session over the parsed document
func (s *Service) open(path string, opts extract.Options) (string, *extract.Session, int, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return "", nil, 0, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.Check(resolved); err != nil {
		return "", nil, 0, err
	}

	logger := s.logger.With("path", resolved)
	doc, err := document.OpenFile(s.fs, resolved, document.WithLogger(logger))
	if err != nil {
		return "", nil, 0, err
	}

	opts.Logger = logger
	return resolved, extract.NewSession(doc, opts), doc.PageCount(), nil
}

// ExtractStructure returns reading-order paragraphs and tables
func (s *Service) ExtractStructure(ctx context.Context, req StructureRequest) (*StructureResult, error) {
	opts := s.options
	if req.Normalize != nil {
		opts.NormalizeText = *req.Normalize
	}

	path, session, _, err := s.open(req.Path, opts)
	if err != nil {
		return nil, err
	}
	res, err := session.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	return &StructureResult{
		Path:         path,
		Result:       res,
		ErrorCounts:  res.Errors.Counts(),
		ErrorSummary: res.Errors.Summary(),
	}, nil
}

// ExtractTables returns the tables of a file, from the structure tree when
// it exists and from ruling geometry otherwise
func (s *Service) ExtractTables(ctx context.Context, req TablesRequest) (*TablesResult, error) {
	path, session, pages, err := s.open(req.Path, s.options)
	if err != nil {
		return nil, err
	}
	if req.Page < 0 || req.Page > pages {
		return nil, fmt.Errorf("page %d out of range (1-%d)", req.Page, pages)
	}

	res, err := session.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	out := &TablesResult{Path: path, RunID: res.RunID, Source: res.Source}
	for _, t := range res.Tables {
		if req.Page == 0 || onPage(t.Pages, req.Page) {
			out.Tables = append(out.Tables, t)
		}
	}
	for _, g := range res.Lattice {
		if req.Page == 0 || g.Page == req.Page {
			out.Grids = append(out.Grids, g)
		}
	}
	return out, nil
}

// PageMarks parses a single page and lists its tags in first-appearance
// order
func (s *Service) PageMarks(_ context.Context, req PageMarksRequest) (*PageMarksResult, error) {
	path, session, pages, err := s.open(req.Path, s.options)
	if err != nil {
		return nil, err
	}
	if req.Page < 1 || req.Page > pages {
		return nil, fmt.Errorf("page %d out of range (1-%d)", req.Page, pages)
	}

	marks, err := session.Cache().Marks(req.Page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %d: %w", req.Page, err)
	}

	out := &PageMarksResult{
		Path:    path,
		Page:    req.Page,
		Pages:   pages,
		Nesting: marks.Nesting,
	}
	for _, mcid := range marks.Order {
		out.Tags = append(out.Tags, TagText{
			MCID:   mcid,
			Text:   marks.Text[mcid],
			Glyphs: len(marks.Glyphs[mcid]),
		})
	}
	out.Stats = session.Cache().Stats()
	return out, nil
}

// CacheStats runs a full extraction and reports the page cache counters
func (s *Service) CacheStats(ctx context.Context, req CacheStatsRequest) (*CacheStatsResult, error) {
	path, session, pages, err := s.open(req.Path, s.options)
	if err != nil {
		return nil, err
	}
	if _, err := session.Run(ctx); err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	stats := session.Cache().Stats()
	return &CacheStatsResult{
		Path:    path,
		Pages:   pages,
		Stats:   stats,
		Summary: stats.String(),
	}, nil
}

func onPage(pages []int, page int) bool {
	for _, p := range pages {
		if p == page {
			return true
		}
	}
	return false
}
