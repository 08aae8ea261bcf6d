// Package document opens PDF files and exposes their pages, structure tree
// and parent tree to the extraction layers.
package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// Document is an opened PDF. Object resolution is serialized internally so
// pages can be interpreted from several goroutines.
type Document struct {
	ctx    *model.Context
	reader *pdf.Reader
	logger *slog.Logger

	mu            sync.Mutex
	pageDicts     []types.Dict
	pageErrs      map[int]*pdferrors.PDFError
	pageNums      map[int]int
	structParents []int

	pagesMu sync.Mutex
	pages   map[int]*page
}

// Option configures Open
type Option func(*Document)

// WithLogger sets the logger used while reading the document
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// OpenFile reads a PDF from fs
func OpenFile(fs afero.Fs, path string, opts ...Option) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, err).WithContext(path)
	}
	return Open(data, opts...)
}

// Open parses a PDF held in memory
func Open(data []byte, opts ...Option) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, fmt.Errorf("panic: %v", r))
		}
	}()

	d := &Document{
		logger:   slog.Default(),
		pageErrs: make(map[int]*pdferrors.PDFError),
		pageNums: make(map[int]int),
		pages:    make(map[int]*page),
	}
	for _, opt := range opts {
		opt(d)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, fmt.Errorf("failed to read PDF context: %w", err))
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, fmt.Errorf("failed to ensure page count: %w", err))
	}
	d.ctx = ctx

	// fonts fall back to pdfcpu dictionaries when ledongthuc cannot read the file
	if reader, err := newReader(data); err != nil {
		d.logger.Warn("font reader unavailable, using simple font decoding", "error", err)
	} else {
		d.reader = reader
	}

	d.loadPages()

	d.logger.Debug("document opened", "pages", len(d.pageDicts), "malformed_pages", len(d.pageErrs), "tagged", d.Tagged())
	return d, nil
}

func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// loadPages reads every page dictionary. A page that cannot be read keeps a
// nil slot and an error; the other pages stay usable.
func (d *Document) loadPages() {
	n := d.ctx.PageCount
	d.pageDicts = make([]types.Dict, n)
	d.structParents = make([]int, n)
	for i := 1; i <= n; i++ {
		d.structParents[i-1] = -1
		dict, ref, err := d.pageDict(i)
		if err != nil {
			d.pageErrs[i] = pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, err).WithPage(i)
			d.logger.Warn("page dictionary unreadable", "page", i, "error", err)
			continue
		}
		d.pageDicts[i-1] = dict
		if ref != nil {
			d.pageNums[int(ref.ObjectNumber)] = i
		}
		if sp, ok := intOf(d.ctx, dict["StructParents"]); ok {
			d.structParents[i-1] = sp
		}
	}
}

func (d *Document) pageDict(n int) (dict types.Dict, ref *types.IndirectRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			dict, ref, err = nil, nil, fmt.Errorf("page %d: panic: %v", n, r)
		}
	}()
	dict, ref, _, err = d.ctx.PageDict(n, false)
	if err != nil {
		return nil, nil, fmt.Errorf("page %d: %w", n, err)
	}
	if dict == nil {
		return nil, nil, fmt.Errorf("page %d: no page dictionary", n)
	}
	return dict, ref, nil
}

// PageErrors returns the pages that could not be read at open, in page order
func (d *Document) PageErrors() []*pdferrors.PDFError {
	out := make([]*pdferrors.PDFError, 0, len(d.pageErrs))
	for i := 1; i <= len(d.pageDicts); i++ {
		if e, ok := d.pageErrs[i]; ok {
			out = append(out, e)
		}
	}
	return out
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return len(d.pageDicts)
}

// Page returns page n (1-based)
func (d *Document) Page(n int) (content.Page, error) {
	if n < 1 || n > len(d.pageDicts) {
		return nil, fmt.Errorf("page %d out of range [1,%d]", n, len(d.pageDicts))
	}
	if e, ok := d.pageErrs[n]; ok {
		return nil, e
	}

	d.pagesMu.Lock()
	defer d.pagesMu.Unlock()
	if p, ok := d.pages[n]; ok {
		return p, nil
	}

	var val pdf.Page
	if d.reader != nil {
		d.mu.Lock()
		val = d.reader.Page(n)
		d.mu.Unlock()
	}

	p := &page{
		number: n,
		src:    d.ctx,
		mu:     &d.mu,
		dict:   d.pageDicts[n-1],
		val:    val,
	}
	d.pages[n] = p
	return p, nil
}

func (d *Document) structTreeRoot() (types.Dict, bool) {
	catalog, err := d.ctx.Catalog()
	if err != nil || catalog == nil {
		return nil, false
	}
	return dictOf(d.ctx, catalog["StructTreeRoot"])
}

// Tagged reports whether the catalog has a /StructTreeRoot
func (d *Document) Tagged() bool {
	_, ok := d.structTreeRoot()
	return ok
}

// StructTree builds the logical structure tree. ErrStructureMissing is
// returned for untagged documents.
func (d *Document) StructTree() (*structure.Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	root, ok := d.structTreeRoot()
	if !ok {
		return nil, pdferrors.ErrStructureMissing
	}
	return BuildTree(d.ctx, root, d.pageNums, d.logger), nil
}

// Locator returns a parent tree reverse index for tree
func (d *Document) Locator(tree *structure.Tree) structure.PageLocator {
	var parentTree types.Dict
	if root, ok := d.structTreeRoot(); ok {
		parentTree, _ = dictOf(d.ctx, root["ParentTree"])
	}
	return NewReverseIndex(&lockedSource{src: d.ctx, mu: &d.mu}, tree, parentTree, d.structParents, d.logger)
}

// lockedSource serializes lookups made outside the document's own methods
type lockedSource struct {
	src ObjectSource
	mu  *sync.Mutex
}

func (s *lockedSource) Dereference(o types.Object) (types.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Dereference(o)
}

func (s *lockedSource) DereferenceStreamDict(o types.Object) (*types.StreamDict, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.DereferenceStreamDict(o)
}

func (s *lockedSource) DereferenceStringOrHexLiteral(o types.Object, v model.Version, validate func(string) bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.DereferenceStringOrHexLiteral(o, v, validate)
}
