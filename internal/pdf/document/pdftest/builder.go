// Package pdftest assembles small PDF files with a correct cross-reference
// table for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// Builder collects numbered objects and serializes them
type Builder struct {
	objects []string
}

// Reserve allocates an object number to be filled in later with Set
func (b *Builder) Reserve() int {
	b.objects = append(b.objects, "null")
	return len(b.objects)
}

// Add appends an object body and returns its object number
func (b *Builder) Add(body string) int {
	b.objects = append(b.objects, body)
	return len(b.objects)
}

// Set replaces the body of object num
func (b *Builder) Set(num int, body string) {
	b.objects[num-1] = body
}

// Stream formats a stream object body with the given extra dict entries
func Stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Ref formats an indirect reference
func Ref(num int) string {
	return fmt.Sprintf("%d 0 R", num)
}

// Bytes serializes the file with root as the catalog
func (b *Builder) Bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, root, xref)
	return buf.Bytes()
}

// Page describes one page of a generated document
type Page struct {
	Content string
	// StructParents is the page's parent tree key, -1 for none
	StructParents int
}

// Document holds the object numbers of a generated file
type Document struct {
	Builder  *Builder
	Catalog  int
	PageTree int
	Pages    []int
	Font     int
}

// NewDocument lays out a catalog, a page tree and one Helvetica font
// registered as /F1 on every page. Pages are 612x792.
func NewDocument(pages ...Page) *Document {
	b := &Builder{}
	d := &Document{Builder: b}

	d.Catalog = b.Reserve()
	tree := b.Reserve()
	d.PageTree = tree
	d.Font = b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := ""
	for _, p := range pages {
		contents := b.Add(Stream("", p.Content))
		num := b.Reserve()
		sp := ""
		if p.StructParents >= 0 {
			sp = fmt.Sprintf(" /StructParents %d", p.StructParents)
		}
		b.Set(num, fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << /Font << /F1 %s >> >> /Contents %s%s >>",
			Ref(tree), Ref(d.Font), Ref(contents), sp))
		d.Pages = append(d.Pages, num)
		kids += Ref(num) + " "
	}
	b.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	b.Set(d.Catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s >>", Ref(tree)))
	return d
}

// Tag sets the catalog's /StructTreeRoot and /MarkInfo
func (d *Document) Tag(structTreeRoot int) {
	d.Builder.Set(d.Catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s /MarkInfo << /Marked true >> /StructTreeRoot %s >>",
		Ref(d.PageTree), Ref(structTreeRoot)))
}

// Bytes serializes the document
func (d *Document) Bytes() []byte {
	return d.Builder.Bytes(d.Catalog)
}
