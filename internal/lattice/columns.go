package lattice

import (
	"math"
	"sort"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// columnBreaks clusters the x positions of vertical rulings. Breakpoints
// closer than EpsX collapse to their mean. The table's left and right edges
// are added when no ruling sits there.
func columnBreaks(vertical []Ruling, box content.Rect) []float64 {
	var xs []float64
	for _, v := range vertical {
		if v.Length() < MinLenPt || v.Hi < box.Y0 || v.Lo > box.Y1 {
			continue
		}
		xs = append(xs, v.Pos)
	}
	xs = append(xs, box.X0, box.X1)
	sort.Float64s(xs)
	return cluster(xs, EpsX)
}

// cluster averages runs of sorted values that stay within eps of the
// first value of their group
func cluster(sorted []float64, eps float64) []float64 {
	if len(sorted) == 0 {
		return nil
	}
	var out []float64
	first, sum, n := sorted[0], sorted[0], 1
	for _, x := range sorted[1:] {
		if math.Abs(x-first) < eps {
			sum += x
			n++
			continue
		}
		out = append(out, sum/float64(n))
		first, sum, n = x, x, 1
	}
	return append(out, sum/float64(n))
}

// evenSplit divides the box into n equal columns
func evenSplit(box content.Rect, n int) []float64 {
	breaks := make([]float64, n+1)
	step := box.Width() / float64(n)
	for i := range breaks {
		breaks[i] = box.X0 + step*float64(i)
	}
	breaks[n] = box.X1
	return breaks
}

// columnOf returns the column whose [left, right) span holds x. Positions
// beyond the outer breakpoints clamp to the first or last column.
func columnOf(x float64, breaks []float64) int {
	n := len(breaks)
	if n < 2 {
		return -1
	}
	if x < breaks[0] {
		return 0
	}
	for i := 0; i+1 < n; i++ {
		if x >= breaks[i] && x < breaks[i+1] {
			return i
		}
	}
	return n - 2
}

// bucket assigns every run to exactly one column by its horizontal center
func bucket(runs []Run, breaks []float64) [][]Run {
	buckets := make([][]Run, len(breaks)-1)
	for _, r := range runs {
		if c := columnOf(r.CenterX(), breaks); c >= 0 {
			buckets[c] = append(buckets[c], r)
		}
	}
	return buckets
}
