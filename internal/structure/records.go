package structure

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// PageBox is a bounding box on one page in bottom-left-origin, y-up space
type PageBox struct {
	Page int          `json:"page"`
	Box  content.Rect `json:"box"`
}

// Record is one emitted paragraph, list item, table, row or cell
type Record struct {
	ID    string    `json:"id"`
	Type  string    `json:"type"`
	Text  string    `json:"text"`
	Pages []int     `json:"pages,omitempty"`
	Boxes []PageBox `json:"boxes,omitempty"`
}

// PageString renders the record's pages as "1|2"
func (r Record) PageString() string {
	return FormatPages(r.Pages)
}

// BoxString renders the record's boxes as "x0,y0,x1,y1|..."
func (r Record) BoxString() string {
	return FormatBoxes(r.Boxes)
}

// Top returns the top edge of the record's box on page, or false if the
// record has no box there
func (r Record) Top(page int) (float64, bool) {
	for _, b := range r.Boxes {
		if b.Page == page {
			return b.Box.Y1, true
		}
	}
	return 0, false
}

// Row is one table row with its cells
type Row struct {
	Record
	Cells []Record `json:"cells"`
}

// Table is a table with its row/cell hierarchy
type Table struct {
	Record
	Rows []Row `json:"rows"`
}

// Element is one entry of the reading-order sequence; exactly one field is set
type Element struct {
	Paragraph *Record `json:"paragraph,omitempty"`
	Table     *Table  `json:"table,omitempty"`
}

// ID returns the id of whichever record the element holds
func (e Element) ID() string {
	if e.Table != nil {
		return e.Table.ID
	}
	if e.Paragraph != nil {
		return e.Paragraph.ID
	}
	return ""
}

// Result is everything the walker produced for one document
type Result struct {
	Paragraphs []Record  `json:"paragraphs"`
	Tables     []Table   `json:"tables"`
	Elements   []Element `json:"elements"`
}

// FormatPages joins page numbers with "|"
func FormatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, "|")
}

// FormatBoxes renders per-page boxes with two decimals, joined by "|"
func FormatBoxes(boxes []PageBox) string {
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.Box.X0, b.Box.Y0, b.Box.X1, b.Box.Y1)
	}
	return strings.Join(parts, "|")
}

// boxesByPage computes one bounding box per page from glyphs, ordered by page
func boxesByPage(glyphs map[int][]content.Glyph) []PageBox {
	pages := make([]int, 0, len(glyphs))
	for p, gs := range glyphs {
		if len(gs) > 0 {
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)

	out := make([]PageBox, 0, len(pages))
	for _, p := range pages {
		gs := glyphs[p]
		box := gs[0].Bounds()
		for _, g := range gs[1:] {
			box = box.Union(g.Bounds())
		}
		out = append(out, PageBox{Page: p, Box: box})
	}
	return out
}

// unionBoxes merges per-page boxes from several records
func unionBoxes(sets ...[]PageBox) []PageBox {
	byPage := make(map[int]content.Rect)
	for _, set := range sets {
		for _, b := range set {
			if cur, ok := byPage[b.Page]; ok {
				byPage[b.Page] = cur.Union(b.Box)
			} else {
				byPage[b.Page] = b.Box
			}
		}
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	out := make([]PageBox, len(pages))
	for i, p := range pages {
		out[i] = PageBox{Page: p, Box: byPage[p]}
	}
	return out
}

// unionPages merges sorted page lists
func unionPages(sets ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Ints(out)
	return out
}
