package structure

import (
	"log/slog"

	"github.com/a3tai/mcp-pdf-structure/internal/pagecache"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// MarkSource serves captured marked content by page and tag
type MarkSource interface {
	GetAll(page int, mcids []int) map[int]pagecache.Entry
}

// PageLocator resolves the page of a tag whose owner carries no /Pg,
// using the document's reverse index
type PageLocator interface {
	LocatePage(node NodeID, mcid int) (int, bool)
}

// Options configures a Walker
type Options struct {
	// SplitContainers always descends into grouping elements such as Sect
	// and Div instead of emitting them as one paragraph
	SplitContainers bool
	// NormalizeText applies NFKC to emitted text
	NormalizeText bool
	Logger        *slog.Logger
	Errors        *pdferrors.ErrorCollection
}

// Walker turns a structure tree into reading-order records
type Walker struct {
	tree    *Tree
	marks   MarkSource
	locator PageLocator
	opts    Options
	logger  *slog.Logger
}

// NewWalker creates a walker. locator may be nil, in which case tags
// without a page reference are dropped.
func NewWalker(tree *Tree, marks MarkSource, locator PageLocator, opts Options) *Walker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		tree:    tree,
		marks:   marks,
		locator: locator,
		opts:    opts,
		logger:  logger,
	}
}

// walk is the state of one traversal
type walk struct {
	*Walker
	errors   *pdferrors.ErrorCollection
	ids      counters
	tableIdx *tagSet
	tags     map[NodeID]*tagSet
	visiting map[NodeID]bool

	paragraphs []Record
	tables     []Table
}

// Walk classifies table content, then emits tables and standalone
// paragraphs, and merges them into reading order. Walks of the same tree
// always assign the same ids.
func (w *Walker) Walk() *Result {
	st := &walk{
		Walker:   w,
		errors:   w.opts.Errors,
		tableIdx: newTagSet(),
		tags:     make(map[NodeID]*tagSet),
		visiting: make(map[NodeID]bool),
	}

	for _, root := range w.tree.Roots {
		st.classify(root, 0)
	}
	for _, root := range w.tree.Roots {
		st.extract(root, 0)
	}

	w.logger.Debug("structure walk complete",
		"nodes", w.tree.Len(), "paragraphs", len(st.paragraphs), "tables", len(st.tables))

	return &Result{
		Paragraphs: st.paragraphs,
		Tables:     st.tables,
		Elements:   Merge(st.paragraphs, st.tables),
	}
}

// maxDepth bounds recursion on degenerate trees
const maxDepth = 512

// classify indexes, per page, every tag reachable from a Table subtree
func (w *walk) classify(id NodeID, depth int) {
	if depth > maxDepth {
		return
	}
	if w.tree.TypeIs(id, TypeTable) {
		w.tableIdx.merge(w.collect(id))
	}
	for _, child := range w.tree.Children(id) {
		w.classify(child, depth+1)
	}
}

// intersectsTables reports whether any of id's tags belongs to a table
func (w *walk) intersectsTables(id NodeID) bool {
	ts := w.collect(id)
	for _, page := range ts.pages {
		for _, mcid := range ts.tags[page] {
			if w.tableIdx.contains(page, mcid) {
				return true
			}
		}
	}
	return false
}

func (w *walk) extract(id NodeID, depth int) {
	if depth > maxDepth {
		w.logger.Warn("structure tree too deep", "node", id)
		return
	}
	n := w.tree.Node(id)
	if n == nil {
		return
	}

	if w.tree.TypeIs(id, TypeTable) {
		w.tables = append(w.tables, w.emitTable(id))
	}

	if !isTableType(n.Type) && !(w.opts.SplitContainers && isContainerType(n.Type)) && !w.intersectsTables(id) {
		if w.tree.TypeIs(id, TypeL) {
			w.emitList(id)
			return
		}
		if r := w.resolveNode(id); r.text != "" {
			w.paragraphs = append(w.paragraphs, r.record(w.ids.nextParagraph(), n.RawType))
			return
		}
	}

	for _, child := range w.tree.Children(id) {
		w.extract(child, depth+1)
	}
}

// emitTable builds the row/cell hierarchy of a Table node. Rows are TR
// children, directly or inside THead/TBody/TFoot; cells are TD and TH.
func (w *walk) emitTable(id NodeID) Table {
	tableID := w.ids.nextTable()
	table := Table{Record: Record{ID: tableID, Type: w.tree.Node(id).RawType}}

	var rows []NodeID
	for _, child := range w.tree.Children(id) {
		switch {
		case w.tree.TypeIs(child, TypeTR):
			rows = append(rows, child)
		case w.tree.TypeIs(child, TypeTHead), w.tree.TypeIs(child, TypeTBody), w.tree.TypeIs(child, TypeTFoot):
			for _, grand := range w.tree.Children(child) {
				if w.tree.TypeIs(grand, TypeTR) {
					rows = append(rows, grand)
				}
			}
		}
	}

	var pageSets [][]int
	var boxSets [][]PageBox
	for i, rowNode := range rows {
		row := Row{Record: Record{ID: FormatRowID(tableID, i+1), Type: w.tree.Node(rowNode).RawType}}

		col := 0
		var rowPages [][]int
		var rowBoxes [][]PageBox
		for _, cellNode := range w.tree.Children(rowNode) {
			if !w.tree.TypeIs(cellNode, TypeTD) && !w.tree.TypeIs(cellNode, TypeTH) {
				continue
			}
			col++
			cell := w.resolveNode(cellNode).record(FormatCellID(row.ID, col), w.tree.Node(cellNode).RawType)
			row.Cells = append(row.Cells, cell)
			rowPages = append(rowPages, cell.Pages)
			rowBoxes = append(rowBoxes, cell.Boxes)
		}
		row.Pages = unionPages(rowPages...)
		row.Boxes = unionBoxes(rowBoxes...)
		pageSets = append(pageSets, row.Pages)
		boxSets = append(boxSets, row.Boxes)
		table.Rows = append(table.Rows, row)
	}

	table.Pages = unionPages(pageSets...)
	table.Boxes = unionBoxes(boxSets...)
	return table
}
