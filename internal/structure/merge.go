package structure

import (
	"math"
	"sort"
)

// anchor is the (page, top) sort key of a record
type anchor struct {
	page int
	top  float64
}

// tableAnchor is the table's first page and the top of its first row there.
// A table without geometry sorts to the top of its first page.
func tableAnchor(t *Table) anchor {
	a := anchor{page: math.MaxInt, top: math.Inf(1)}
	if len(t.Pages) > 0 {
		a.page = t.Pages[0]
	}
	if len(t.Boxes) > 0 {
		a.page = t.Boxes[0].Page
	}
	for _, row := range t.Rows {
		if top, ok := row.Top(a.page); ok {
			a.top = top
			break
		}
	}
	return a
}

// aboveOrLevel reports whether a paragraph precedes a table anchored at a.
// A paragraph with no box counts as being at the top of its page.
func aboveOrLevel(p *Record, a anchor) bool {
	if len(p.Boxes) == 0 {
		if len(p.Pages) == 0 {
			return true
		}
		return p.Pages[0] <= a.page
	}
	for _, b := range p.Boxes {
		if b.Page < a.page || (b.Page == a.page && b.Box.Y1 >= a.top) {
			return true
		}
	}
	return false
}

// Merge interleaves tables into the paragraph sequence: each table goes
// right after the last paragraph that sits above or level with its first
// row on the same or an earlier page. Tables sharing a slot keep their
// (page, top) order.
func Merge(paragraphs []Record, tables []Table) []Element {
	type placed struct {
		table  *Table
		anchor anchor
		slot   int
	}

	order := make([]placed, len(tables))
	for i := range tables {
		t := &tables[i]
		order[i] = placed{table: t, anchor: tableAnchor(t)}
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].anchor, order[j].anchor
		if a.page != b.page {
			return a.page < b.page
		}
		return a.top > b.top
	})

	for i := range order {
		for j := range paragraphs {
			if aboveOrLevel(&paragraphs[j], order[i].anchor) {
				order[i].slot = j + 1
			}
		}
	}

	elements := make([]Element, 0, len(paragraphs)+len(tables))
	emitSlot := func(slot int) {
		for i := range order {
			if order[i].slot == slot {
				elements = append(elements, Element{Table: order[i].table})
			}
		}
	}
	for j := range paragraphs {
		emitSlot(j)
		elements = append(elements, Element{Paragraph: &paragraphs[j]})
	}
	emitSlot(len(paragraphs))
	return elements
}
