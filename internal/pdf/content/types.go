package content

import "math"

// Code is one character code cut from a shown string
type Code struct {
	Raw   []byte
	Value int
}

// Font maps character codes of one font resource to text and widths
type Font interface {
	// Codes splits a shown string into character codes
	Codes(s []byte) []Code
	// Decode returns the unicode text for a code; false when unmapped
	Decode(c Code) (string, bool)
	// Width returns the glyph advance in thousandths of text space
	Width(c Code) float64
}

// Form is a form XObject ready to be interpreted
type Form struct {
	Content   []byte
	Matrix    Matrix
	Resources Resources
}

// Resources is the resource scope active while interpreting a stream
type Resources interface {
	// Font returns the font registered under name
	Font(name string) (Font, error)
	// MarkedContentID resolves a /Properties entry to its MCID
	MarkedContentID(name string) (int, bool)
	// Form returns the form XObject under name; nil without error when the
	// XObject exists but is not a form
	Form(name string) (*Form, error)
}

// Rect is an axis-aligned box in bottom-left-origin, y-up coordinates
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Union returns the smallest rect covering r and o
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Contains reports whether (x, y) lies inside r, edges included
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Geometry is the page's media box and /Rotate value
type Geometry struct {
	MediaBox Rect
	Rotation int
}

// DeviceMatrix maps user space onto the page as displayed: the media box
// turned clockwise by Rotation with its lower-left corner at the origin.
// Unrotated pages map through the identity.
func (g Geometry) DeviceMatrix() Matrix {
	b := g.MediaBox
	switch g.Rotation {
	case 90:
		return Matrix{0, -1, 1, 0, -b.Y0, b.X1}
	case 180:
		return Matrix{-1, 0, 0, -1, b.X1, b.Y1}
	case 270:
		return Matrix{0, 1, -1, 0, b.Y1, -b.X0}
	}
	return Identity()
}

// Size returns the displayed page width and height
func (g Geometry) Size() (w, h float64) {
	if g.Rotation == 90 || g.Rotation == 270 {
		return g.MediaBox.Height(), g.MediaBox.Width()
	}
	return g.MediaBox.Width(), g.MediaBox.Height()
}

// Page is one page handed to the interpreter
type Page interface {
	Number() int
	Content() ([]byte, error)
	Resources() Resources
	Geometry() Geometry
}

// Glyph is one rendered glyph in device space. X/Y is the baseline origin.
type Glyph struct {
	Text       string
	X, Y       float64
	Width      float64
	Height     float64
	FontSize   float64
	HorizScale float64
	Rotation   int
	PageWidth  float64
	PageHeight float64
	// Tag is the innermost enclosing marked-content tag, -1 if untagged
	Tag int
}

// Right is the x coordinate of the glyph's advance end
func (g Glyph) Right() float64 { return g.X + g.Width }

// Top is the y coordinate of baseline + height
func (g Glyph) Top() float64 { return g.Y + g.Height }

// Bounds returns the glyph box
func (g Glyph) Bounds() Rect {
	return Rect{X0: g.X, Y0: g.Y, X1: g.X + g.Width, Y1: g.Y + g.Height}
}

// Segment is a straight painted path segment in device space
type Segment struct {
	X0, Y0, X1, Y1 float64
	// Thickness is the painted width; 0 when unknown (edges of filled areas)
	Thickness float64
	Stroked   bool
}

// Length returns the segment length
func (s Segment) Length() float64 {
	return math.Hypot(s.X1-s.X0, s.Y1-s.Y0)
}

// NestingStats reports marked-content balance for one page
type NestingStats struct {
	Pushes     int
	Pops       int
	Underflows int
	Unclosed   int
}

// Balanced reports whether every scope opened on the page was closed
func (n NestingStats) Balanced() bool {
	return n.Pushes == n.Pops && n.Underflows == 0
}

// PageContent is everything the interpreter captured for one page
type PageContent struct {
	Page     int
	Geometry Geometry
	Glyphs   []Glyph
	Segments []Segment
	Nesting  NestingStats
	// Undecodable counts glyphs skipped because their font could not map them
	Undecodable int
}
