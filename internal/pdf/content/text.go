package content

import (
	"math"
	"strings"
	"unicode"
)

// wordGapFactor is the fraction of the average glyph width above which a
// horizontal gap between glyphs becomes a space
const wordGapFactor = 0.5

// AssembleText joins glyphs in the given order, inserting spaces where the
// geometry shows a word gap or a line change. No space is inserted at a
// line change between CJK characters.
func AssembleText(glyphs []Glyph) string {
	if len(glyphs) == 0 {
		return ""
	}

	avg := averageWidth(glyphs)
	var b strings.Builder
	prev := glyphs[0]
	b.WriteString(prev.Text)

	for _, g := range glyphs[1:] {
		switch {
		case newLine(prev, g):
			if !endsWithSpace(&b) && !strings.HasPrefix(g.Text, " ") &&
				!(isCJK(lastRune(prev.Text)) || isCJK(firstRune(g.Text))) {
				b.WriteByte(' ')
			}
		case g.X-prev.Right() > wordGapFactor*avg:
			if !endsWithSpace(&b) && !strings.HasPrefix(g.Text, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.Text)
		prev = g
	}
	return b.String()
}

func averageWidth(glyphs []Glyph) float64 {
	var sum float64
	var n int
	for _, g := range glyphs {
		if g.Width > 0 {
			sum += g.Width
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// newLine reports whether g starts below prev's line or moves back left
func newLine(prev, g Glyph) bool {
	tol := math.Max(1, 0.5*math.Max(prev.FontSize, g.FontSize))
	if math.Abs(g.Y-prev.Y) > tol {
		return true
	}
	return g.X < prev.X-tol
}

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	return len(s) > 0 && unicode.IsSpace(rune(s[len(s)-1]))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
