package content

// TextState holds the text parameters that survive q/Q
type TextState struct {
	Font        Font
	FontName    string
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	HorizScale  float64 // percentage, 100 is unscaled
	Leading     float64
	Rise        float64
}

// GraphicsState is the part of the PDF graphics state the interpreter needs
type GraphicsState struct {
	CTM       Matrix
	LineWidth float64
	Text      TextState
}

func newGraphicsState(ctm Matrix) GraphicsState {
	return GraphicsState{
		CTM:       ctm,
		LineWidth: 1,
		Text: TextState{
			FontSize:   0,
			HorizScale: 100,
		},
	}
}

// stateStack implements q/Q. Restore on an empty stack is ignored.
type stateStack struct {
	current GraphicsState
	saved   []GraphicsState
}

func (s *stateStack) save() {
	s.saved = append(s.saved, s.current)
}

func (s *stateStack) restore() {
	if len(s.saved) == 0 {
		return
	}
	s.current = s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
}

// markStack is the nesting stack of active marked-content tags; untagged
// scopes hold the -1 sentinel so BMC/BDC/EMC stay balanced.
type markStack struct {
	tags   []int
	pushes int
	pops   int
	// underflows counts EMC operators seen with nothing to close
	underflows int
}

const untagged = -1

func (m *markStack) push(tag int) {
	m.tags = append(m.tags, tag)
	m.pushes++
}

func (m *markStack) pop() {
	if len(m.tags) == 0 {
		m.underflows++
		return
	}
	m.tags = m.tags[:len(m.tags)-1]
	m.pops++
}

// top returns the innermost active tag, or -1 if none
func (m *markStack) top() int {
	if len(m.tags) == 0 {
		return untagged
	}
	return m.tags[len(m.tags)-1]
}
