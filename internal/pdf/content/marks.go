package content

import (
	"sort"
	"strings"
)

// PageMarks is the marked-content index of one page: tag -> text and
// glyphs, in content-stream order. A tag pushed at two nesting depths on one
// page accumulates into a single bucket.
type PageMarks struct {
	Page     int
	Geometry Geometry
	Text     map[int]string
	Glyphs   map[int][]Glyph
	// Order lists tags by first appearance
	Order   []int
	Nesting NestingStats
}

// Count returns the number of distinct tags with captured glyphs
func (m *PageMarks) Count() int {
	return len(m.Order)
}

// Tags returns the captured tags in ascending order
func (m *PageMarks) Tags() []int {
	tags := append([]int(nil), m.Order...)
	sort.Ints(tags)
	return tags
}

// MarksFromContent groups an interpreted page's glyphs by tag. Untagged
// glyphs are dropped.
func MarksFromContent(pc *PageContent) *PageMarks {
	marks := &PageMarks{
		Page:     pc.Page,
		Geometry: pc.Geometry,
		Text:     make(map[int]string),
		Glyphs:   make(map[int][]Glyph),
		Nesting:  pc.Nesting,
	}
	builders := make(map[int]*strings.Builder)
	for _, g := range pc.Glyphs {
		if g.Tag < 0 {
			continue
		}
		b, ok := builders[g.Tag]
		if !ok {
			b = &strings.Builder{}
			builders[g.Tag] = b
			marks.Order = append(marks.Order, g.Tag)
		}
		b.WriteString(g.Text)
		marks.Glyphs[g.Tag] = append(marks.Glyphs[g.Tag], g)
	}
	for tag, b := range builders {
		marks.Text[tag] = b.String()
	}
	return marks
}

// Extractor produces PageMarks for single pages
type Extractor struct {
	interp *Interpreter
}

// NewExtractor wraps an interpreter
func NewExtractor(interp *Interpreter) *Extractor {
	if interp == nil {
		interp = NewInterpreter()
	}
	return &Extractor{interp: interp}
}

// Extract interprets the page and indexes its glyphs by tag
func (e *Extractor) Extract(page Page) (*PageMarks, error) {
	pc, err := e.interp.Run(page)
	if err != nil {
		return nil, err
	}
	return MarksFromContent(pc), nil
}

// ExtractContent interprets the page and returns both the raw capture and
// its tag index
func (e *Extractor) ExtractContent(page Page) (*PageContent, *PageMarks, error) {
	pc, err := e.interp.Run(page)
	if err != nil {
		return nil, nil, err
	}
	return pc, MarksFromContent(pc), nil
}
