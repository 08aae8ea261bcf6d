package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/pagecache"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// fakeMarks serves hand-placed glyph runs by (page, mcid)
type fakeMarks map[int]map[int]pagecache.Entry

func (f fakeMarks) put(page, mcid int, x, y float64, text string) {
	if f[page] == nil {
		f[page] = make(map[int]pagecache.Entry)
	}
	e := f[page][mcid]
	for _, r := range text {
		e.Glyphs = append(e.Glyphs, content.Glyph{
			Text: string(r), X: x, Y: y, Width: 5, Height: 10, FontSize: 10, Tag: mcid,
		})
		e.Text += string(r)
		x += 5
	}
	f[page][mcid] = e
}

func (f fakeMarks) GetAll(page int, mcids []int) map[int]pagecache.Entry {
	out := make(map[int]pagecache.Entry)
	for _, m := range mcids {
		if e, ok := f[page][m]; ok {
			out[m] = e
		}
	}
	return out
}

// fakeLocator resolves (node, mcid) pairs from a fixed table
type fakeLocator struct {
	pages map[[2]int]int
	calls int
}

func (l *fakeLocator) LocatePage(node NodeID, mcid int) (int, bool) {
	l.calls++
	p, ok := l.pages[[2]int{int(node), mcid}]
	return p, ok
}

func add(tree *Tree, parent NodeID, typ string, page int, mcids ...int) NodeID {
	id := tree.Add(Node{Type: typ, RawType: typ, Parent: parent, Page: page})
	for _, m := range mcids {
		tree.AddMCID(id, m, 0)
	}
	return id
}

// tableTree is a document with one paragraph and a 1x2 table on page 1
func tableTree(paraY float64) (*Tree, fakeMarks) {
	tree := NewTree()
	doc := add(tree, NoNode, "Document", 1)
	add(tree, doc, "P", 1, 0)
	table := add(tree, doc, "Table", 1)
	tr := add(tree, table, "TR", 1)
	add(tree, tr, "TD", 1, 1)
	add(tree, tr, "TD", 1, 2)

	marks := fakeMarks{}
	marks.put(1, 0, 50, paraY, "Intro")
	marks.put(1, 1, 50, 600, "Name")
	marks.put(1, 2, 200, 600, "Value")
	return tree, marks
}

func TestParagraphBeforeTable(t *testing.T) {
	tree, marks := tableTree(700)
	res := NewWalker(tree, marks, nil, Options{}).Walk()

	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "p001", res.Paragraphs[0].ID)
	assert.Equal(t, "P", res.Paragraphs[0].Type)
	assert.Equal(t, "Intro", res.Paragraphs[0].Text)

	require.Len(t, res.Tables, 1)
	table := res.Tables[0]
	assert.Equal(t, "t001", table.ID)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "t001-r001", table.Rows[0].ID)
	require.Len(t, table.Rows[0].Cells, 2)
	assert.Equal(t, "t001-r001-c001-p001", table.Rows[0].Cells[0].ID)
	assert.Equal(t, "Name", table.Rows[0].Cells[0].Text)
	assert.Equal(t, "t001-r001-c002-p001", table.Rows[0].Cells[1].ID)
	assert.Equal(t, "Value", table.Rows[0].Cells[1].Text)

	var order []string
	for _, e := range res.Elements {
		order = append(order, e.ID())
	}
	assert.Equal(t, []string{"p001", "t001"}, order)
}

func TestParagraphBelowTable(t *testing.T) {
	tree, marks := tableTree(400)
	res := NewWalker(tree, marks, nil, Options{}).Walk()

	var order []string
	for _, e := range res.Elements {
		order = append(order, e.ID())
	}
	assert.Equal(t, []string{"t001", "p001"}, order)
}

func TestTableTextNotEmittedAsParagraph(t *testing.T) {
	tree := NewTree()
	doc := add(tree, NoNode, "Document", 1)
	table := add(tree, doc, "Table", 1)
	tbody := add(tree, table, "TBody", 1)
	tr := add(tree, tbody, "TR", 1)
	td := add(tree, tr, "TH", 1)
	add(tree, td, "P", 1, 0)

	marks := fakeMarks{}
	marks.put(1, 0, 10, 500, "Header")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	assert.Empty(t, res.Paragraphs)
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 1)
	assert.Equal(t, "TH", res.Tables[0].Rows[0].Cells[0].Type)
	assert.Equal(t, "Header", res.Tables[0].Rows[0].Cells[0].Text)
}

func TestDeterministicIDs(t *testing.T) {
	tree := NewTree()
	doc := add(tree, NoNode, "Document", 1)
	marks := fakeMarks{}
	mcid := 0
	for i := 0; i < 3; i++ {
		add(tree, doc, "P", 1, mcid)
		marks.put(1, mcid, 10, 700-float64(i)*100, "para")
		mcid++
		table := add(tree, doc, "Table", 1)
		tr := add(tree, table, "TR", 1)
		add(tree, tr, "TD", 1, mcid)
		marks.put(1, mcid, 10, 650-float64(i)*100, "cell")
		mcid++
	}

	first := NewWalker(tree, marks, nil, Options{}).Walk()
	second := NewWalker(tree, marks, nil, Options{}).Walk()
	assert.Equal(t, first.Paragraphs, second.Paragraphs)
	assert.Equal(t, first.Tables, second.Tables)

	var ids []string
	for _, e := range first.Elements {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []string{"p001", "t001", "p002", "t002", "p003", "t003"}, ids)
}

func TestReverseIndexResolvesPage(t *testing.T) {
	tree := NewTree()
	para := add(tree, NoNode, "P", 0, 4, 9)

	marks := fakeMarks{}
	marks.put(2, 4, 72, 500, "Found")

	locator := &fakeLocator{pages: map[[2]int]int{{int(para), 4}: 2}}
	ec := pdferrors.NewErrorCollection()
	res := NewWalker(tree, marks, locator, Options{Errors: ec}).Walk()

	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "Found", res.Paragraphs[0].Text)
	assert.Equal(t, []int{2}, res.Paragraphs[0].Pages)
	assert.Equal(t, 1, ec.Count(pdferrors.ErrorTypeTagUnresolvable))

	// the subtree is collected once per walk
	assert.Equal(t, 2, locator.calls)
}

func TestMarkedContentReferencePage(t *testing.T) {
	tree := NewTree()
	para := tree.Add(Node{Type: "P", RawType: "P", Parent: NoNode})
	tree.AddMCID(para, 0, 1)
	tree.AddMCID(para, 0, 2)

	marks := fakeMarks{}
	marks.put(1, 0, 100, 100, "end of page")
	marks.put(2, 0, 100, 700, "continued")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Paragraphs, 1)
	p := res.Paragraphs[0]
	assert.Equal(t, "end of page continued", p.Text)
	assert.Equal(t, "1|2", p.PageString())
	require.Len(t, p.Boxes, 2)
	assert.Equal(t, "100.00,100.00,155.00,110.00|100.00,700.00,145.00,710.00", p.BoxString())
}

func TestListItems(t *testing.T) {
	tree := NewTree()
	list := add(tree, NoNode, "L", 1)

	li1 := add(tree, list, "LI", 1)
	add(tree, li1, "Lbl", 1, 0)
	body1 := add(tree, li1, "LBody", 1)
	add(tree, body1, "P", 1, 1)
	nested := add(tree, body1, "L", 1)
	nli := add(tree, nested, "LI", 1)
	add(tree, nli, "LBody", 1, 2)

	li2 := add(tree, list, "LI", 1)
	add(tree, li2, "Lbl", 1, 3)
	add(tree, li2, "LBody", 1, 4)

	marks := fakeMarks{}
	marks.put(1, 0, 50, 700, "1.")
	marks.put(1, 1, 70, 700, "First")
	marks.put(1, 2, 90, 680, "Nested")
	marks.put(1, 3, 50, 660, "2.")
	marks.put(1, 4, 70, 660, "Second")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Paragraphs, 3)

	assert.Equal(t, Record{ID: "p001", Type: "LI", Text: "1.First"}, stripGeometry(res.Paragraphs[0]))
	assert.Equal(t, Record{ID: "p002", Type: "LI", Text: "Nested"}, stripGeometry(res.Paragraphs[1]))
	assert.Equal(t, Record{ID: "p003", Type: "LI", Text: "2.Second"}, stripGeometry(res.Paragraphs[2]))

	// nested list geometry is not part of the parent item
	assert.InDelta(t, 700.0, res.Paragraphs[0].Boxes[0].Box.Y0, 1e-9)
}

func TestListBodyDirectContentWithNestedList(t *testing.T) {
	tree := NewTree()
	list := add(tree, NoNode, "L", 1)
	li := add(tree, list, "LI", 1)
	body := add(tree, li, "LBody", 1, 0)
	nested := add(tree, body, "L", 1)
	add(tree, nested, "LI", 1, 1)

	marks := fakeMarks{}
	marks.put(1, 0, 50, 700, "Body")
	marks.put(1, 1, 60, 680, "Inner")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Paragraphs, 2)
	assert.Equal(t, "Body", res.Paragraphs[0].Text)
	assert.Equal(t, "Inner", res.Paragraphs[1].Text)
}

func TestActualTextOverride(t *testing.T) {
	tree := NewTree()
	fig := tree.Add(Node{Type: "Figure", RawType: "Figure", Parent: NoNode, Page: 1, ActualText: "Logo\u200b", HasActualText: true})
	tree.AddMCID(fig, 0, 0)

	marks := fakeMarks{}
	marks.put(1, 0, 10, 10, "xx")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "Logo", res.Paragraphs[0].Text)
	assert.Empty(t, res.Paragraphs[0].Boxes)
	assert.Equal(t, []int{1}, res.Paragraphs[0].Pages)
}

func TestBlankActualTextFallsBackToTags(t *testing.T) {
	tree := NewTree()
	table := add(tree, NoNode, "Table", 1)
	tr := add(tree, table, "TR", 1)
	td := tree.Add(Node{Type: "TD", RawType: "TD", Parent: tr, Page: 1, ActualText: " ", HasActualText: true})
	tree.AddMCID(td, 0, 0)

	marks := fakeMarks{}
	marks.put(1, 0, 50, 600, "Hello")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 1)
	require.Len(t, res.Tables[0].Rows[0].Cells, 1)

	cell := res.Tables[0].Rows[0].Cells[0]
	assert.Equal(t, "Hello", cell.Text)
	require.Len(t, cell.Boxes, 1)
	assert.Equal(t, "50.00,600.00,75.00,610.00", cell.BoxString())
}

func TestPageInheritedFromAncestor(t *testing.T) {
	tree := NewTree()
	sect := add(tree, NoNode, "Sect", 3)
	para := add(tree, sect, "P", 0, 0)

	marks := fakeMarks{}
	marks.put(3, 0, 72, 500, "Inherited")

	locator := &fakeLocator{}
	ec := pdferrors.NewErrorCollection()
	res := NewWalker(tree, marks, locator, Options{Errors: ec}).Walk()

	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "Inherited", res.Paragraphs[0].Text)
	assert.Equal(t, []int{3}, res.Paragraphs[0].Pages)
	assert.Zero(t, locator.calls)
	assert.Zero(t, ec.Count(pdferrors.ErrorTypeTagUnresolvable))
	assert.Equal(t, 3, tree.InheritedPage(para))
}

func TestEmptyContainerIsSkipped(t *testing.T) {
	tree := NewTree()
	sect := add(tree, NoNode, "Sect", 1)
	add(tree, sect, "Figure", 1)
	add(tree, NoNode, "P", 1, 0)

	marks := fakeMarks{}
	marks.put(1, 0, 10, 10, "Only")

	res := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "P", res.Paragraphs[0].Type)
}

func TestSplitContainers(t *testing.T) {
	tree := NewTree()
	sect := add(tree, NoNode, "Sect", 1)
	add(tree, sect, "H1", 1, 0)
	add(tree, sect, "P", 1, 1)

	marks := fakeMarks{}
	marks.put(1, 0, 10, 700, "Title")
	marks.put(1, 1, 10, 680, "Body")

	whole := NewWalker(tree, marks, nil, Options{}).Walk()
	require.Len(t, whole.Paragraphs, 1)
	assert.Equal(t, "Title Body", whole.Paragraphs[0].Text)

	split := NewWalker(tree, marks, nil, Options{SplitContainers: true}).Walk()
	require.Len(t, split.Paragraphs, 2)
	assert.Equal(t, "H1", split.Paragraphs[0].Type)
	assert.Equal(t, "P", split.Paragraphs[1].Type)
}

func TestNormalizeText(t *testing.T) {
	tree := NewTree()
	add(tree, NoNode, "P", 1, 0)
	marks := fakeMarks{}
	marks.put(1, 0, 10, 10, "\ufb01le")

	plain := NewWalker(tree, marks, nil, Options{}).Walk()
	assert.Equal(t, "\ufb01le", plain.Paragraphs[0].Text)

	normalized := NewWalker(tree, marks, nil, Options{NormalizeText: true}).Walk()
	assert.Equal(t, "file", normalized.Paragraphs[0].Text)
}

func stripGeometry(r Record) Record {
	r.Pages = nil
	r.Boxes = nil
	return r
}
