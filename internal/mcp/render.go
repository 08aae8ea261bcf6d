package mcp

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf"
	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// maxCellWidth caps rendered grid columns; longer cell text wraps
const maxCellWidth = 40

// previewWidth is the display width of one-line text previews
const previewWidth = 80

// preview flattens s to one line and truncates it to width display cells
func preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

// renderTable draws a table record as a text grid
func renderTable(t structure.Table) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	cols := 0
	for _, row := range t.Rows {
		cols = max(cols, len(row.Cells))
	}
	configs := make([]table.ColumnConfig, cols)
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: maxCellWidth}
	}
	tw.SetColumnConfigs(configs)

	for _, row := range t.Rows {
		r := make(table.Row, cols)
		for i := range r {
			r[i] = ""
		}
		for i, cell := range row.Cells {
			r[i] = cell.Text
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func writeRecordHeader(b *strings.Builder, r structure.Record) {
	fmt.Fprintf(b, "[%s] %s", r.ID, r.Type)
	if len(r.Pages) > 0 {
		fmt.Fprintf(b, " pages=%s", r.PageString())
	}
	if len(r.Boxes) > 0 {
		fmt.Fprintf(b, " box=%s", r.BoxString())
	}
	b.WriteString("\n")
}

func writeTable(b *strings.Builder, t structure.Table) {
	writeRecordHeader(b, t.Record)
	b.WriteString(renderTable(t))
	b.WriteString("\n")
	for _, row := range t.Rows {
		for _, cell := range row.Cells {
			if cell.Text == "" {
				continue
			}
			fmt.Fprintf(b, "  %s", cell.ID)
			if len(cell.Boxes) > 0 {
				fmt.Fprintf(b, " box=%s", cell.BoxString())
			}
			fmt.Fprintf(b, " %s\n", preview(cell.Text, previewWidth))
		}
	}
}

// formatStructureResult renders the records in reading order
func formatStructureResult(res *pdf.StructureResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structure of %s\n", res.Path)
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Source: %s\n", res.Source)
	fmt.Fprintf(&b, "Pages: %d\n", res.Pages)
	fmt.Fprintf(&b, "Paragraphs: %d, Tables: %d\n\n", len(res.Paragraphs), len(res.Tables))

	for _, el := range res.Elements {
		switch {
		case el.Table != nil:
			writeTable(&b, *el.Table)
		case el.Paragraph != nil:
			writeRecordHeader(&b, *el.Paragraph)
			b.WriteString(el.Paragraph.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Errors: %s\n", res.ErrorSummary)
	fmt.Fprintf(&b, "Cache: %s\n", res.CacheStats.String())
	return b.String()
}

// formatTablesResult renders every table as a grid followed by its cell ids
func formatTablesResult(res *pdf.TablesResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tables in %s (source: %s, run: %s)\n", res.Path, res.Source, res.RunID)
	if len(res.Tables) == 0 {
		b.WriteString("\nNo tables found.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Found %d table(s)\n\n", len(res.Tables))

	for _, t := range res.Tables {
		writeTable(&b, t)
		b.WriteString("\n")
	}
	for _, g := range res.Grids {
		if g.EvenSplit {
			fmt.Fprintf(&b, "Note: page %d had too few vertical rules; columns were split evenly.\n", g.Page)
		}
		if g.Continuations > 0 {
			fmt.Fprintf(&b, "Note: page %d folded %d wrapped row(s) into their anchor rows.\n", g.Page, g.Continuations)
		}
	}
	return b.String()
}

// formatPageMarksResult lists one page's tags as a table
func formatPageMarksResult(res *pdf.PageMarksResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Marked content of %s, page %d of %d\n", res.Path, res.Page, res.Pages)
	fmt.Fprintf(&b, "Tags: %d\n", len(res.Tags))

	n := res.Nesting
	if n.Balanced() && n.Unclosed == 0 {
		fmt.Fprintf(&b, "Nesting: balanced (%d scopes)\n\n", n.Pushes)
	} else {
		fmt.Fprintf(&b, "Nesting: unbalanced (pushes=%d pops=%d underflows=%d unclosed=%d)\n\n",
			n.Pushes, n.Pops, n.Underflows, n.Unclosed)
	}

	if len(res.Tags) == 0 {
		b.WriteString("No tagged content on this page.\n")
		return b.String()
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"MCID", "Glyphs", "Text"})
	for _, tag := range res.Tags {
		tw.AppendRow(table.Row{tag.MCID, tag.Glyphs, preview(tag.Text, previewWidth)})
	}
	b.WriteString(tw.Render())
	b.WriteString("\n")
	return b.String()
}

func formatCacheStatsResult(res *pdf.CacheStatsResult) string {
	return fmt.Sprintf("Cache statistics for %s (%d pages)\n%s\n", res.Path, res.Pages, res.Summary)
}
