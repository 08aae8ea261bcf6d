package lattice

import (
	"math"
	"sort"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// band is a cluster of runs forming one text row within a column
type band struct {
	top, bottom float64
	runs        []Run
}

func (b *band) absorb(r Run) {
	b.top = math.Max(b.top, r.Box.Y1)
	b.bottom = math.Min(b.bottom, r.Box.Y0)
	b.runs = append(b.runs, r)
}

// clusterBands sorts a column's runs top-down and greedily grows bands while
// the gap from the band's bottom to the next run's top stays within
// IntraColLineGapEm font sizes
func clusterBands(runs []Run) []band {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CenterY() > sorted[j].CenterY() })

	var bands []band
	cur := band{top: sorted[0].Box.Y1, bottom: sorted[0].Box.Y0, runs: []Run{sorted[0]}}
	for _, r := range sorted[1:] {
		if cur.bottom-r.Box.Y1 <= IntraColLineGapEm*r.FontSize {
			cur.absorb(r)
			continue
		}
		bands = append(bands, cur)
		cur = band{top: r.Box.Y1, bottom: r.Box.Y0, runs: []Run{r}}
	}
	return append(bands, cur)
}

// boundary is a candidate row break
type boundary struct {
	y     float64
	votes int
	ruled bool
}

// reconciler merges per-column bands into global row breakpoints
type reconciler struct {
	columns [][]band
	rulings []Ruling
	runs    []Run
	box     content.Rect
	support int
}

// rows returns row breakpoints from the table top down to its bottom
func (rc *reconciler) rows() []float64 {
	var accepted []boundary
	for _, y := range rc.candidates() {
		if rc.cutsBand(y) {
			continue
		}
		b := boundary{y: y, votes: rc.votes(y), ruled: rc.ruledAt(y)}
		if b.votes >= rc.support || (b.ruled && b.votes >= 1) {
			accepted = append(accepted, b)
		}
	}
	accepted = rc.dedupe(accepted)

	out := make([]float64, 0, len(accepted)+2)
	out = append(out, rc.box.Y1)
	for _, b := range accepted {
		out = append(out, b.y)
	}
	return append(out, rc.box.Y0)
}

// candidates are the midpoints of every column's inter-band gaps plus the
// reliable rulings, clustered within EpsY and ordered top-down
func (rc *reconciler) candidates() []float64 {
	var ys []float64
	for _, bands := range rc.columns {
		for i := 0; i+1 < len(bands); i++ {
			if bands[i].bottom > bands[i+1].top {
				ys = append(ys, (bands[i].bottom+bands[i+1].top)/2)
			}
		}
	}
	for _, r := range rc.rulings {
		ys = append(ys, r.Pos)
	}

	var inside []float64
	for _, y := range ys {
		if y > rc.box.Y0+EpsY && y < rc.box.Y1-EpsY {
			inside = append(inside, y)
		}
	}
	sort.Float64s(inside)

	// a ruling position wins over text midpoints in its cluster
	clustered := cluster(inside, EpsY)
	for i, y := range clustered {
		for _, r := range rc.rulings {
			if math.Abs(r.Pos-y) < EpsY {
				clustered[i] = r.Pos
				break
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(clustered)))
	return clustered
}

// cutsBand reports whether y passes through text in any column
func (rc *reconciler) cutsBand(y float64) bool {
	for _, bands := range rc.columns {
		for _, b := range bands {
			if y > b.bottom && y < b.top {
				return true
			}
		}
	}
	return false
}

// votes counts columns with a band boundary of their own at y: a gap
// between two adjacent bands that contains y within EpsY
func (rc *reconciler) votes(y float64) int {
	n := 0
	for _, bands := range rc.columns {
		for i := 0; i+1 < len(bands); i++ {
			if y <= bands[i].bottom+EpsY && y >= bands[i+1].top-EpsY {
				n++
				break
			}
		}
	}
	return n
}

func (rc *reconciler) ruledAt(y float64) bool {
	for _, r := range rc.rulings {
		if math.Abs(r.Pos-y) < EpsY {
			return true
		}
	}
	return false
}

// dedupe drops a boundary when no run lies between it and its neighbour
// above, unless both are ruled. The ruled or better supported one stays.
func (rc *reconciler) dedupe(bs []boundary) []boundary {
	var out []boundary
	for _, b := range bs {
		if len(out) == 0 {
			out = append(out, b)
			continue
		}
		prev := &out[len(out)-1]
		if rc.occupied(b.y, prev.y) || (prev.ruled && b.ruled) {
			out = append(out, b)
			continue
		}
		if (b.ruled && !prev.ruled) || (b.ruled == prev.ruled && b.votes > prev.votes) {
			*prev = b
		}
	}
	return out
}

// occupied reports whether any run center lies strictly between lo and hi
func (rc *reconciler) occupied(lo, hi float64) bool {
	for _, r := range rc.runs {
		if cy := r.CenterY(); cy > lo && cy < hi {
			return true
		}
	}
	return false
}
