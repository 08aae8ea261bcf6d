package lattice

import (
	"math"
	"sort"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// Ruling is an axis-aligned line segment. For horizontal rulings Pos is y
// and [Lo, Hi] the x-extent; for vertical rulings Pos is x.
type Ruling struct {
	Pos       float64
	Lo, Hi    float64
	Thickness float64
	Vertical  bool
}

func (r Ruling) Length() float64 { return r.Hi - r.Lo }

// splitRulings keeps near-horizontal and near-vertical segments and fuses
// collinear pieces separated by at most GapTol
func splitRulings(segs []content.Segment) (horizontal, vertical []Ruling) {
	for _, s := range segs {
		dx, dy := math.Abs(s.X1-s.X0), math.Abs(s.Y1-s.Y0)
		switch {
		case dy < 2 && dx > 5:
			horizontal = append(horizontal, Ruling{
				Pos:       (s.Y0 + s.Y1) / 2,
				Lo:        math.Min(s.X0, s.X1),
				Hi:        math.Max(s.X0, s.X1),
				Thickness: s.Thickness,
			})
		case dx < 2 && dy > 5:
			vertical = append(vertical, Ruling{
				Pos:       (s.X0 + s.X1) / 2,
				Lo:        math.Min(s.Y0, s.Y1),
				Hi:        math.Max(s.Y0, s.Y1),
				Thickness: s.Thickness,
				Vertical:  true,
			})
		}
	}
	return fuse(horizontal, EpsY), fuse(vertical, EpsX)
}

// fuse joins rulings on the same line whose extents touch or are at most
// GapTol apart
func fuse(rs []Ruling, eps float64) []Ruling {
	if len(rs) == 0 {
		return nil
	}
	sorted := append([]Ruling(nil), rs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	var out []Ruling
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Pos-sorted[i].Pos < eps {
			j++
		}
		line := sorted[i:j]
		sort.Slice(line, func(a, b int) bool { return line[a].Lo < line[b].Lo })

		cur := line[0]
		for _, r := range line[1:] {
			if r.Lo <= cur.Hi+GapTol {
				cur.Hi = math.Max(cur.Hi, r.Hi)
				cur.Thickness = math.Max(cur.Thickness, r.Thickness)
				continue
			}
			out = append(out, cur)
			cur = r
		}
		out = append(out, cur)
		i = j
	}
	return out
}

// extent returns the bounding rect of a ruling set
func extent(horizontal, vertical []Ruling) (content.Rect, bool) {
	box := content.Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	found := false
	for _, r := range horizontal {
		if r.Length() < MinLenPt {
			continue
		}
		box = box.Union(content.Rect{X0: r.Lo, Y0: r.Pos, X1: r.Hi, Y1: r.Pos})
		found = true
	}
	for _, r := range vertical {
		if r.Length() < MinLenPt {
			continue
		}
		box = box.Union(content.Rect{X0: r.Pos, Y0: r.Lo, X1: r.Pos, Y1: r.Hi})
		found = true
	}
	return box, found
}

// reliable reports whether a horizontal ruling can corroborate a row
// boundary: long enough, not a hairline, not an underline or strike-through
// of some run, and anchored at two column breakpoints
func reliable(r Ruling, runs []Run, columns []float64) bool {
	if r.Vertical || r.Length() < MinLenPt || r.Thickness <= HairlinePt {
		return false
	}
	for _, run := range runs {
		if underlines(r, run) || strikes(r, run) {
			return false
		}
	}
	lo, hi := snap(r.Lo, columns), snap(r.Hi, columns)
	return lo >= 0 && hi >= 0 && lo != hi
}

func underlines(r Ruling, run Run) bool {
	if math.Abs(r.Pos-run.Baseline) > 0.3*run.FontSize {
		return false
	}
	return r.Lo >= run.Box.X0-EndSnapSlack && r.Hi <= run.Box.X1+EndSnapSlack
}

func strikes(r Ruling, run Run) bool {
	if r.Hi <= run.Box.X0 || r.Lo >= run.Box.X1 {
		return false
	}
	inset := TextOverlapMax * run.Height()
	return r.Pos > run.Box.Y0+inset && r.Pos < run.Box.Y1-inset
}

// snap returns the index of the breakpoint within EndSnapSlack of x, or -1
func snap(x float64, breaks []float64) int {
	for i, b := range breaks {
		if math.Abs(x-b) <= EndSnapSlack {
			return i
		}
	}
	return -1
}
