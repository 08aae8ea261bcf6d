// Package lattice rebuilds tables from page geometry alone: ruling lines
// give columns, text alignment gives rows.
package lattice

import (
	"math"
	"strings"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// Run is a horizontal sequence of glyphs on one baseline with no word gap
type Run struct {
	Text     string
	Box      content.Rect
	Baseline float64
	FontSize float64
	Rotation int
}

func (r Run) CenterX() float64 { return (r.Box.X0 + r.Box.X1) / 2 }
func (r Run) CenterY() float64 { return (r.Box.Y0 + r.Box.Y1) / 2 }
func (r Run) Height() float64  { return r.Box.Height() }

// BuildRuns groups glyphs in content order into runs. A run ends on a line
// change, an x regression, a rotation change, a word gap or a whitespace
// glyph.
func BuildRuns(glyphs []content.Glyph) []Run {
	var runs []Run
	var cur *Run
	var text strings.Builder
	var lastRight float64

	flush := func() {
		if cur != nil && text.Len() > 0 {
			cur.Text = text.String()
			runs = append(runs, *cur)
		}
		cur = nil
		text.Reset()
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.Text) == "" {
			flush()
			continue
		}

		box := content.Rect{
			X0: g.X,
			Y0: g.Y,
			X1: g.X + math.Max(0.5, math.Abs(g.Width)),
			Y1: g.Y + math.Max(0.5, math.Abs(g.Height)),
		}

		if cur != nil {
			size := cur.FontSize
			switch {
			case math.Abs(g.Y-cur.Baseline) > math.Max(1, size*0.5),
				box.X0+math.Max(1, size*0.4) < lastRight,
				g.Rotation != cur.Rotation,
				box.X0-cur.Box.X1 >= math.Max(1, size*0.3):
				flush()
			}
		}

		if cur == nil {
			cur = &Run{Box: box, Baseline: g.Y, FontSize: math.Abs(g.Height), Rotation: g.Rotation}
		} else {
			cur.Box = cur.Box.Union(box)
		}
		text.WriteString(g.Text)
		lastRight = box.X1
	}
	flush()
	return runs
}
