package structure

import "fmt"

// FormatTableID returns the id of the n-th table, 1-based
func FormatTableID(n int) string {
	return fmt.Sprintf("t%03d", n)
}

// FormatRowID returns the id of the n-th row of tableID
func FormatRowID(tableID string, n int) string {
	return fmt.Sprintf("%s-r%03d", tableID, n)
}

// FormatCellID returns the id of the n-th cell of rowID. Cells hold a
// single paragraph, hence the fixed p001 suffix.
func FormatCellID(rowID string, n int) string {
	return fmt.Sprintf("%s-c%03d-p001", rowID, n)
}

// FormatParagraphID returns the id of the n-th standalone paragraph
func FormatParagraphID(n int) string {
	return fmt.Sprintf("p%03d", n)
}

// counters is threaded through one traversal; it is never shared between
// walks so independent walks can run in parallel.
type counters struct {
	tables     int
	paragraphs int
}

func (c *counters) nextTable() string {
	c.tables++
	return FormatTableID(c.tables)
}

func (c *counters) nextParagraph() string {
	c.paragraphs++
	return FormatParagraphID(c.paragraphs)
}
