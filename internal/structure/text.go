package structure

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// tagSet is a node's reachable tags bucketed per page, each bucket in
// first-seen order
type tagSet struct {
	pages []int
	tags  map[int][]int
	seen  map[int]map[int]bool
}

func newTagSet() *tagSet {
	return &tagSet{
		tags: make(map[int][]int),
		seen: make(map[int]map[int]bool),
	}
}

func (s *tagSet) add(page, mcid int) {
	seen, ok := s.seen[page]
	if !ok {
		seen = make(map[int]bool)
		s.seen[page] = seen
		s.pages = append(s.pages, page)
	}
	if seen[mcid] {
		return
	}
	seen[mcid] = true
	s.tags[page] = append(s.tags[page], mcid)
}

func (s *tagSet) merge(o *tagSet) {
	for _, p := range o.pages {
		for _, m := range o.tags[p] {
			s.add(p, m)
		}
	}
}

func (s *tagSet) empty() bool {
	return len(s.pages) == 0
}

func (s *tagSet) contains(page, mcid int) bool {
	return s.seen[page][mcid]
}

// sortedPages returns the pages in ascending order
func (s *tagSet) sortedPages() []int {
	pages := append([]int(nil), s.pages...)
	sort.Ints(pages)
	return pages
}

// resolved is a node's text with the glyphs it came from, per page
type resolved struct {
	text   string
	pages  []int
	glyphs map[int][]content.Glyph
}

func (r *resolved) record(id, typ string) Record {
	return Record{
		ID:    id,
		Type:  typ,
		Text:  r.text,
		Pages: r.pages,
		Boxes: boxesByPage(r.glyphs),
	}
}

// collect returns the tags reachable from id's own subtree. Results are
// memoized per node.
func (w *walk) collect(id NodeID) *tagSet {
	if ts, ok := w.tags[id]; ok {
		return ts
	}
	if w.visiting[id] {
		return newTagSet()
	}
	w.visiting[id] = true
	defer delete(w.visiting, id)

	n := w.tree.Node(id)
	ts := newTagSet()
	if n != nil {
		w.collectKids(id, n.Kids, ts)
	}
	w.tags[id] = ts
	return ts
}

// collectKids gathers tags from kids as owned by owner. It serves both
// whole nodes and the partial kid lists used for list bodies.
func (w *walk) collectKids(owner NodeID, kids []Kid, ts *tagSet) {
	for _, k := range kids {
		switch k.Kind {
		case KidNode:
			ts.merge(w.collect(k.Node))
		case KidMCID:
			page := k.Page
			if page == 0 {
				page = w.tree.InheritedPage(owner)
			}
			if page == 0 {
				page = w.locate(owner, k.MCID)
			}
			if page == 0 {
				continue
			}
			ts.add(page, k.MCID)
		}
	}
}

// locate falls back to the reverse index; 0 means unresolvable
func (w *walk) locate(owner NodeID, mcid int) int {
	if w.locator != nil {
		if page, ok := w.locator.LocatePage(owner, mcid); ok {
			return page
		}
	}
	n := w.tree.Node(owner)
	w.logger.Warn("tag page unresolvable", "node", owner, "object", n.ObjectNum, "type", n.Type, "mcid", mcid)
	if w.errors != nil {
		w.errors.Add(pdferrors.NewPDFError(pdferrors.ErrorTypeTagUnresolvable, "tag page could not be resolved").
			WithTag(mcid).WithObject(n.ObjectNum))
	}
	return 0
}

// resolveNode returns the node's text: a non-blank /ActualText, otherwise
// the geometric assembly of its own tags.
func (w *walk) resolveNode(id NodeID) *resolved {
	n := w.tree.Node(id)
	ts := w.collect(id)

	if n.HasActualText && strings.TrimSpace(n.ActualText) != "" {
		return &resolved{text: w.clean(n.ActualText), pages: ts.sortedPages()}
	}
	if ts.empty() {
		var parts []string
		for _, child := range w.tree.Children(id) {
			if c := w.tree.Node(child); c.HasActualText && strings.TrimSpace(c.ActualText) != "" {
				parts = append(parts, c.ActualText)
			}
		}
		return &resolved{text: w.clean(strings.Join(parts, " "))}
	}
	return w.resolveTags(ts)
}

// resolveKids resolves a partial kid list of owner
func (w *walk) resolveKids(owner NodeID, kids []Kid) *resolved {
	ts := newTagSet()
	w.collectKids(owner, kids, ts)
	return w.resolveTags(ts)
}

func (w *walk) resolveTags(ts *tagSet) *resolved {
	r := &resolved{glyphs: make(map[int][]content.Glyph)}
	var parts []string
	for _, page := range ts.sortedPages() {
		mcids := ts.tags[page]
		entries := w.marks.GetAll(page, mcids)

		var glyphs []content.Glyph
		for _, mcid := range mcids {
			if e, ok := entries[mcid]; ok {
				glyphs = append(glyphs, e.Glyphs...)
			}
		}
		r.pages = append(r.pages, page)
		if len(glyphs) == 0 {
			continue
		}
		r.glyphs[page] = glyphs
		if text := content.AssembleText(glyphs); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	r.text = w.clean(strings.Join(parts, " "))
	return r
}

// combine joins resolved parts with no separator, as list items do
func combine(parts ...*resolved) *resolved {
	out := &resolved{glyphs: make(map[int][]content.Glyph)}
	var b strings.Builder
	var pageSets [][]int
	for _, p := range parts {
		if p == nil {
			continue
		}
		b.WriteString(p.text)
		pageSets = append(pageSets, p.pages)
		for page, gs := range p.glyphs {
			out.glyphs[page] = append(out.glyphs[page], gs...)
		}
	}
	out.text = strings.TrimSpace(b.String())
	out.pages = unionPages(pageSets...)
	return out
}

func (w *walk) clean(s string) string {
	return CleanText(s, w.opts.NormalizeText)
}

// CleanText strips zero-width characters and surrounding space, applying
// NFKC first when normalize is set
func CleanText(s string, normalize bool) string {
	s = stripZeroWidth(s)
	if normalize {
		s = norm.NFKC.String(s)
	}
	return strings.TrimSpace(s)
}

func stripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		return r
	}, s)
}
