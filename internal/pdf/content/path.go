package content

import "math"

// minStrokeWidth stands in for a zero-width (device thinnest) stroke
const minStrokeWidth = 0.01

// thinFillMax is the largest minor dimension of a filled rectangle that is
// still treated as a drawn rule
const thinFillMax = 3.0

type pt struct{ x, y float64 }

func point(x, y float64) pt { return pt{x, y} }

type subpath struct {
	points []pt
	closed bool
	rect   bool
}

// pathBuilder accumulates the current path in device space. Curves are
// flattened to their end point since only straight rules matter here.
type pathBuilder struct {
	subpaths []subpath
}

func (p *pathBuilder) current() *subpath {
	if len(p.subpaths) == 0 {
		return nil
	}
	return &p.subpaths[len(p.subpaths)-1]
}

func (p *pathBuilder) moveTo(x, y float64) {
	p.subpaths = append(p.subpaths, subpath{points: []pt{{x, y}}})
}

func (p *pathBuilder) lineTo(x, y float64) {
	sp := p.current()
	if sp == nil || sp.closed {
		p.moveTo(x, y)
		return
	}
	sp.points = append(sp.points, pt{x, y})
}

func (p *pathBuilder) closePath() {
	sp := p.current()
	if sp == nil || len(sp.points) == 0 {
		return
	}
	if first := sp.points[0]; sp.points[len(sp.points)-1] != first {
		sp.points = append(sp.points, first)
	}
	sp.closed = true
}

func (p *pathBuilder) rect(a, b, c, d pt) {
	p.subpaths = append(p.subpaths, subpath{
		points: []pt{a, b, c, d, a},
		closed: true,
		rect:   true,
	})
}

func (p *pathBuilder) reset() {
	p.subpaths = p.subpaths[:0]
}

// segments converts the path into painted segments. A filled thin
// rectangle collapses to its centre line so filled rules look like strokes.
func (p *pathBuilder) segments(stroke, fill bool, thickness float64) []Segment {
	var out []Segment
	for _, sp := range p.subpaths {
		if fill && !stroke && sp.rect {
			if seg, ok := thinRectRule(sp.points); ok {
				out = append(out, seg)
				continue
			}
		}
		edgeThickness := thickness
		if !stroke {
			edgeThickness = 0
		}
		for i := 1; i < len(sp.points); i++ {
			a, b := sp.points[i-1], sp.points[i]
			if a == b {
				continue
			}
			out = append(out, Segment{
				X0: a.x, Y0: a.y, X1: b.x, Y1: b.y,
				Thickness: edgeThickness,
				Stroked:   stroke,
			})
		}
	}
	return out
}

func thinRectRule(points []pt) (Segment, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, q := range points {
		minX, maxX = math.Min(minX, q.x), math.Max(maxX, q.x)
		minY, maxY = math.Min(minY, q.y), math.Max(maxY, q.y)
	}
	w, h := maxX-minX, maxY-minY
	switch {
	case h <= thinFillMax && w > h:
		cy := (minY + maxY) / 2
		return Segment{X0: minX, Y0: cy, X1: maxX, Y1: cy, Thickness: h}, true
	case w <= thinFillMax && h > w:
		cx := (minX + maxX) / 2
		return Segment{X0: cx, Y0: minY, X1: cx, Y1: maxY, Thickness: w}, true
	}
	return Segment{}, false
}
