package extract_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-structure/internal/extract"
	"github.com/a3tai/mcp-pdf-structure/internal/lattice"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/document"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/document/pdftest"
	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

const ruledTable = `1 w
50 700 m 450 700 l S
50 660 m 450 660 l S
50 620 m 450 620 l S
50 620 m 50 700 l S
250 620 m 250 700 l S
450 620 m 450 700 l S
BT /F1 10 Tf 60 675 Td (Name) Tj ET
BT /F1 10 Tf 260 675 Td (Value) Tj ET
BT /F1 10 Tf 60 635 Td (alpha) Tj ET
BT /F1 10 Tf 260 635 Td (one) Tj ET`

func untagged(t *testing.T, pages ...string) *document.Document {
	t.Helper()
	var ps []pdftest.Page
	for _, c := range pages {
		ps = append(ps, pdftest.Page{Content: c, StructParents: -1})
	}
	doc, err := document.Open(pdftest.NewDocument(ps...).Bytes())
	require.NoError(t, err)
	return doc
}

func tagged(t *testing.T) *document.Document {
	t.Helper()
	d := pdftest.NewDocument(pdftest.Page{Content: `/P <</MCID 0>> BDC
BT /F1 12 Tf 72 700 Td (Hello) Tj ET
EMC
/P <</MCID 1>> BDC
BT /F1 12 Tf 72 680 Td (World) Tj ET
EMC`, StructParents: 0})
	b := d.Builder

	root := b.Reserve()
	doc := b.Reserve()
	p1 := b.Add(fmt.Sprintf("<< /Type /StructElem /S /P /P %s /Pg %s /K 0 >>", pdftest.Ref(doc), pdftest.Ref(d.Pages[0])))
	p2 := b.Add(fmt.Sprintf("<< /Type /StructElem /S /P /P %s /Pg %s /K 1 >>", pdftest.Ref(doc), pdftest.Ref(d.Pages[0])))
	b.Set(doc, fmt.Sprintf("<< /Type /StructElem /S /Document /P %s /K [%s %s] >>",
		pdftest.Ref(root), pdftest.Ref(p1), pdftest.Ref(p2)))
	b.Set(root, fmt.Sprintf("<< /Type /StructTreeRoot /K %s >>", pdftest.Ref(doc)))
	d.Tag(root)

	opened, err := document.Open(d.Bytes())
	require.NoError(t, err)
	return opened
}

func TestRunTagged(t *testing.T) {
	s := extract.NewSession(tagged(t), extract.Options{SplitContainers: true, Workers: 2})

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, extract.SourceStructure, res.Source)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, s.RunID(), res.RunID)
	require.Len(t, res.Paragraphs, 2)
	assert.Equal(t, "Hello", res.Paragraphs[0].Text)
	assert.Equal(t, "World", res.Paragraphs[1].Text)
	assert.Equal(t, "p001", res.Elements[0].ID())
	assert.Empty(t, res.Tables)
	assert.Equal(t, 0, res.Errors.Count(pdferrors.ErrorTypeStructureMissing))
	assert.Equal(t, int64(1), res.CacheStats.Pages)
	assert.NoError(t, res.PageErr)
}

func TestRunSkipsCorruptPage(t *testing.T) {
	d := pdftest.NewDocument(
		pdftest.Page{Content: ruledTable, StructParents: -1},
		pdftest.Page{Content: "BT /F1 12 Tf 72 700 Td (lost) Tj ET", StructParents: -1},
	)
	d.Builder.Set(d.Pages[1], "<< /Foo 1 >>")
	doc, err := document.Open(d.Bytes())
	require.NoError(t, err)

	s := extract.NewSession(doc, extract.Options{Workers: 2})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Errors.Count(pdferrors.ErrorTypeMalformedPage))
	first, ok := res.Errors.First(pdferrors.ErrorTypeMalformedPage)
	require.True(t, ok)
	assert.Equal(t, 2, first.PageNumber)
	require.Len(t, res.Tables, 1)
	assert.Error(t, res.PageErr)
}

func TestRunUntaggedFallsBackToLattice(t *testing.T) {
	s := extract.NewSession(untagged(t, ruledTable, "BT /F1 12 Tf 72 700 Td (prose) Tj ET"), extract.Options{Workers: 2})

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, extract.SourceLattice, res.Source)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Errors.Count(pdferrors.ErrorTypeStructureMissing))

	require.Len(t, res.Lattice, 1)
	assert.Equal(t, 1, res.Lattice[0].Page)
	assert.Equal(t, []float64{50, 250, 450}, res.Lattice[0].Columns)
	assert.Equal(t, []float64{700, 660, 620}, res.Lattice[0].Rows)

	require.Len(t, res.Tables, 1)
	table := res.Tables[0]
	assert.Equal(t, "t001", table.ID)
	assert.Equal(t, "1", table.PageString())
	assert.Equal(t, "50.00,620.00,450.00,700.00", table.BoxString())
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "t001-r002", table.Rows[1].ID)

	var texts [][]string
	for _, row := range table.Rows {
		var cells []string
		for _, c := range row.Cells {
			cells = append(cells, c.Text)
		}
		texts = append(texts, cells)
	}
	assert.Equal(t, [][]string{{"Name", "Value"}, {"alpha", "one"}}, texts)
	assert.Equal(t, "t001-r001-c002-p001", table.Rows[0].Cells[1].ID)

	// the prose page contributes a paragraph after the table
	require.Len(t, res.Paragraphs, 1)
	assert.Equal(t, "prose", res.Paragraphs[0].Text)
	assert.Equal(t, "2", res.Paragraphs[0].PageString())
	require.Len(t, res.Elements, 2)
	assert.Equal(t, "t001", res.Elements[0].ID())
	assert.Equal(t, "p001", res.Elements[1].ID())
}

func TestLatticeParagraphsAroundTable(t *testing.T) {
	page := "BT /F1 12 Tf 72 750 Td (Heading) Tj ET\n" + ruledTable + "\nBT /F1 12 Tf 72 500 Td (Closing) Tj ET"
	s := extract.NewSession(untagged(t, page), extract.Options{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Paragraphs, 2)

	assert.Equal(t, "Heading", res.Paragraphs[0].Text)
	assert.Equal(t, structure.TypeP, res.Paragraphs[0].Type)
	assert.Equal(t, "Closing", res.Paragraphs[1].Text)

	var ids []string
	for _, e := range res.Elements {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []string{"p001", "t001", "p002"}, ids)

	// table text is not repeated as prose
	for _, p := range res.Paragraphs {
		assert.NotContains(t, p.Text, "Name")
	}
}

func TestRunTaggedWithoutContentFallsBackToLattice(t *testing.T) {
	// the tree points at a tag the page never emits
	d := pdftest.NewDocument(pdftest.Page{Content: ruledTable, StructParents: -1})
	b := d.Builder
	root := b.Reserve()
	p := b.Add(fmt.Sprintf("<< /Type /StructElem /S /P /P %s /Pg %s /K 7 >>", pdftest.Ref(root), pdftest.Ref(d.Pages[0])))
	b.Set(root, fmt.Sprintf("<< /Type /StructTreeRoot /K [%s] >>", pdftest.Ref(p)))
	d.Tag(root)
	doc, err := document.Open(d.Bytes())
	require.NoError(t, err)

	res, err := extract.NewSession(doc, extract.Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, extract.SourceLattice, res.Source)
	assert.Equal(t, 1, res.Errors.Count(pdferrors.ErrorTypeStructureMissing))
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "Value", res.Tables[0].Rows[0].Cells[1].Text)
}

func TestPageTable(t *testing.T) {
	s := extract.NewSession(untagged(t, "BT /F1 12 Tf 72 700 Td (prose) Tj ET", ruledTable), extract.Options{})

	table, err := s.PageTable(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, 2, table.NumRows())

	table, err = s.PageTable(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := extract.NewSession(untagged(t, ruledTable), extract.Options{})
	_, err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTablesFromLattice(t *testing.T) {
	grid := &lattice.Table{
		Page:    3,
		Box:     content.Rect{X0: 0, Y0: 0, X1: 200, Y1: 100},
		Columns: []float64{0, 100, 200},
		Rows:    []float64{100, 0},
		Cells: [][]lattice.Cell{{
			{Box: content.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}, Text: "\ufb01rst\u200b"},
			{Box: content.Rect{X0: 100, Y0: 0, X1: 200, Y1: 100}, Text: "x"},
		}},
	}

	tests := []struct {
		name      string
		normalize bool
		want      string
	}{
		{"raw ligature kept", false, "\ufb01rst"},
		{"ligature normalized", true, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := extract.TablesFromLattice([]*lattice.Table{grid, grid}, tt.normalize)
			require.Len(t, tables, 2)
			assert.Equal(t, "t002", tables[1].ID)
			assert.Equal(t, structure.TypeTable, tables[0].Type)

			row := tables[0].Rows[0]
			assert.Equal(t, structure.TypeTR, row.Type)
			assert.Equal(t, "0.00,0.00,200.00,100.00", row.BoxString())
			assert.Equal(t, tt.want, row.Cells[0].Text)
			assert.Equal(t, "3", row.Cells[0].PageString())
		})
	}
}
