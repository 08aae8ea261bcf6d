// Package contenttest provides in-memory pages and fonts for exercising the
// content interpreter without a PDF file.
package contenttest

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// Font is a single-byte font mapping each code to its Latin-1 rune with a
// fixed advance. Codes listed in Unmapped fail to decode.
type Font struct {
	Advance  float64
	Unmapped map[int]bool
}

// NewFont returns a font with a 500/1000 em advance
func NewFont() *Font {
	return &Font{Advance: 500}
}

func (f *Font) Codes(s []byte) []content.Code {
	codes := make([]content.Code, len(s))
	for i, b := range s {
		codes[i] = content.Code{Raw: s[i : i+1], Value: int(b)}
	}
	return codes
}

func (f *Font) Decode(c content.Code) (string, bool) {
	if f.Unmapped[c.Value] {
		return "", false
	}
	return string(rune(c.Value)), true
}

func (f *Font) Width(content.Code) float64 {
	return f.Advance
}

// Resources is a static resource dictionary
type Resources struct {
	Fonts      map[string]content.Font
	Properties map[string]int
	Forms      map[string]*content.Form
}

// NewResources returns resources with font F1 registered
func NewResources() *Resources {
	return &Resources{
		Fonts:      map[string]content.Font{"F1": NewFont()},
		Properties: map[string]int{},
		Forms:      map[string]*content.Form{},
	}
}

func (r *Resources) Font(name string) (content.Font, error) {
	f, ok := r.Fonts[name]
	if !ok {
		return nil, fmt.Errorf("font %s not found", name)
	}
	return f, nil
}

func (r *Resources) MarkedContentID(name string) (int, bool) {
	id, ok := r.Properties[name]
	return id, ok
}

func (r *Resources) Form(name string) (*content.Form, error) {
	f, ok := r.Forms[name]
	if !ok {
		return nil, fmt.Errorf("xobject %s not found", name)
	}
	return f, nil
}

// Page is an in-memory page. A non-nil Err is returned from Content.
type Page struct {
	Num  int
	Data string
	Res  *Resources
	Geom content.Geometry
	Err  error
}

// NewPage returns a US Letter page with default resources
func NewPage(num int, data string) *Page {
	return &Page{
		Num:  num,
		Data: data,
		Res:  NewResources(),
		Geom: content.Geometry{MediaBox: content.Rect{X1: 612, Y1: 792}},
	}
}

func (p *Page) Number() int { return p.Num }

func (p *Page) Content() ([]byte, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return []byte(p.Data), nil
}

func (p *Page) Resources() content.Resources {
	if p.Res == nil {
		return nil
	}
	return p.Res
}

func (p *Page) Geometry() content.Geometry { return p.Geom }

// Tagged wraps a text-showing fragment in a BDC/EMC scope with the given
// MCID, positioned at (x, y) with font F1 at size.
func Tagged(mcid int, x, y, size float64, text string) string {
	return fmt.Sprintf("/P <</MCID %d>> BDC BT /F1 %g Tf %g %g Td (%s) Tj ET EMC\n", mcid, size, x, y, text)
}

// Run returns an untagged text-showing fragment at (x, y)
func Run(x, y, size float64, text string) string {
	return fmt.Sprintf("BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, x, y, text)
}

// HLine returns a stroked horizontal rule
func HLine(x0, x1, y, width float64) string {
	return fmt.Sprintf("%g w %g %g m %g %g l S\n", width, x0, y, x1, y)
}

// VLine returns a stroked vertical rule
func VLine(x, y0, y1, width float64) string {
	return fmt.Sprintf("%g w %g %g m %g %g l S\n", width, x, y0, x, y1)
}
