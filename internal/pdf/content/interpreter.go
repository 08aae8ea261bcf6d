package content

import (
	"fmt"
	"log/slog"
	"math"

	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// DefaultMaxFormDepth bounds nested form XObject interpretation
const DefaultMaxFormDepth = 12

// Interpreter runs page content streams and captures glyphs and ruling
// segments. It keeps no per-page state, so one Interpreter may serve
// many goroutines.
type Interpreter struct {
	logger       *slog.Logger
	errors       *pdferrors.ErrorCollection
	maxFormDepth int
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithLogger sets the logger used for degraded-path messages
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithErrorCollection records isolated failures into ec
func WithErrorCollection(ec *pdferrors.ErrorCollection) Option {
	return func(in *Interpreter) {
		in.errors = ec
	}
}

// WithMaxFormDepth overrides DefaultMaxFormDepth
func WithMaxFormDepth(depth int) Option {
	return func(in *Interpreter) {
		if depth > 0 {
			in.maxFormDepth = depth
		}
	}
}

// NewInterpreter creates an interpreter
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{
		logger:       slog.Default(),
		maxFormDepth: DefaultMaxFormDepth,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run interprets one page. Only a page whose content cannot be read at all
// returns an error; everything else degrades to skipped glyphs or scopes.
func (in *Interpreter) Run(page Page) (*PageContent, error) {
	data, err := page.Content()
	if err != nil {
		pdfErr := pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, err).WithPage(page.Number())
		in.record(pdfErr)
		return nil, pdfErr
	}

	geom := page.Geometry()
	r := &run{
		in:    in,
		page:  page.Number(),
		geom:  geom,
		state: stateStack{current: newGraphicsState(geom.DeviceMatrix())},
		out: &PageContent{
			Page:     page.Number(),
			Geometry: geom,
		},
	}
	r.execute(data, page.Resources(), 0)

	r.out.Nesting = NestingStats{
		Pushes:     r.marks.pushes,
		Pops:       r.marks.pops,
		Underflows: r.marks.underflows,
		Unclosed:   len(r.marks.tags),
	}
	if r.marks.underflows > 0 || len(r.marks.tags) > 0 {
		in.record(pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeMalformedNesting, "unbalanced marked content",
			fmt.Sprintf("underflows=%d unclosed=%d", r.marks.underflows, len(r.marks.tags))).WithPage(page.Number()))
		in.logger.Debug("unbalanced marked content",
			"page", page.Number(), "underflows", r.marks.underflows, "unclosed", len(r.marks.tags))
	}
	return r.out, nil
}

func (in *Interpreter) record(err *pdferrors.PDFError) {
	if in.errors != nil {
		in.errors.Add(err)
	}
}

// run is the mutable state of one page interpretation
type run struct {
	in    *Interpreter
	page  int
	geom  Geometry
	state stateStack
	marks markStack
	path  pathBuilder
	out   *PageContent

	textMatrix Matrix
	lineMatrix Matrix
}

func (r *run) execute(data []byte, res Resources, depth int) {
	parser := NewParser(data)
	for {
		op, ok := parser.Next()
		if !ok {
			return
		}
		r.dispatch(op, res, depth)
	}
}

func (r *run) dispatch(op Operation, res Resources, depth int) {
	gs := &r.state.current
	args := op.Operands

	switch op.Kind {
	case OpSave:
		r.state.save()
	case OpRestore:
		r.state.restore()
	case OpConcat:
		if m, ok := matrixFromOperands(args); ok {
			gs.CTM = m.Multiply(gs.CTM)
		}
	case OpLineWidth:
		if v, ok := number(args, 0, 1); ok {
			gs.LineWidth = v
		}

	case OpBeginText:
		r.textMatrix = Identity()
		r.lineMatrix = Identity()
	case OpEndText:
	case OpCharSpacing:
		if v, ok := number(args, 0, 1); ok {
			gs.Text.CharSpacing = v
		}
	case OpWordSpacing:
		if v, ok := number(args, 0, 1); ok {
			gs.Text.WordSpacing = v
		}
	case OpHorizScale:
		if v, ok := number(args, 0, 1); ok {
			gs.Text.HorizScale = v
		}
	case OpLeading:
		if v, ok := number(args, 0, 1); ok {
			gs.Text.Leading = v
		}
	case OpRise:
		if v, ok := number(args, 0, 1); ok {
			gs.Text.Rise = v
		}
	case OpFont:
		r.setFont(args, res)
	case OpMoveText:
		if tx, ok := number(args, 0, 2); ok {
			ty, _ := number(args, 1, 2)
			r.moveText(tx, ty)
		}
	case OpMoveTextLeading:
		if tx, ok := number(args, 0, 2); ok {
			ty, _ := number(args, 1, 2)
			gs.Text.Leading = -ty
			r.moveText(tx, ty)
		}
	case OpTextMatrix:
		if m, ok := matrixFromOperands(args); ok {
			r.textMatrix = m
			r.lineMatrix = m
		}
	case OpNextLine:
		r.moveText(0, -gs.Text.Leading)

	case OpShowText:
		if s, ok := stringArg(args, 0, 1); ok {
			r.showText(s)
		}
	case OpShowTextArray:
		if len(args) > 0 && args[len(args)-1].Kind == OperandArray {
			r.showTextArray(args[len(args)-1].Array)
		}
	case OpNextLineShow:
		r.moveText(0, -gs.Text.Leading)
		if s, ok := stringArg(args, 0, 1); ok {
			r.showText(s)
		}
	case OpNextLineShowSpaced:
		if len(args) >= 3 {
			if aw, ok := number(args, 0, 3); ok {
				gs.Text.WordSpacing = aw
			}
			if ac, ok := number(args, 1, 3); ok {
				gs.Text.CharSpacing = ac
			}
		}
		r.moveText(0, -gs.Text.Leading)
		if s, ok := stringArg(args, 2, 3); ok {
			r.showText(s)
		}

	case OpBeginMarked:
		r.marks.push(untagged)
	case OpBeginMarkedProps:
		r.marks.push(r.resolveTag(args, res))
	case OpEndMarked:
		r.marks.pop()

	case OpMoveTo:
		if x, ok := number(args, 0, 2); ok {
			y, _ := number(args, 1, 2)
			r.path.moveTo(gs.CTM.Apply(x, y))
		}
	case OpLineTo:
		if x, ok := number(args, 0, 2); ok {
			y, _ := number(args, 1, 2)
			r.path.lineTo(gs.CTM.Apply(x, y))
		}
	case OpCurveTo:
		if x, ok := number(args, 4, 6); ok {
			y, _ := number(args, 5, 6)
			r.path.lineTo(gs.CTM.Apply(x, y))
		}
	case OpCurveToV, OpCurveToY:
		if x, ok := number(args, 2, 4); ok {
			y, _ := number(args, 3, 4)
			r.path.lineTo(gs.CTM.Apply(x, y))
		}
	case OpClosePath:
		r.path.closePath()
	case OpRectangle:
		r.rectangle(args)

	case OpStroke:
		r.paint(true, false)
	case OpCloseStroke:
		r.path.closePath()
		r.paint(true, false)
	case OpFill, OpFillEvenOdd:
		r.paint(false, true)
	case OpFillStroke, OpFillStrokeEvenOdd:
		r.paint(true, true)
	case OpCloseFillStroke, OpCloseFillStrokeEvenOdd:
		r.path.closePath()
		r.paint(true, true)
	case OpEndPath:
		r.path.reset()

	case OpXObject:
		if name, ok := nameArg(args); ok {
			r.invokeForm(name, res, depth)
		}
	}
}

// resolveTag reads the MCID of a BDC operator from an inline dictionary or
// a named /Properties resource; anything else yields the untagged sentinel.
func (r *run) resolveTag(args []Operand, res Resources) int {
	if len(args) < 2 {
		return untagged
	}
	props := args[len(args)-1]
	switch props.Kind {
	case OperandDict:
		if mcid, ok := props.Dict["MCID"]; ok {
			if v, ok := mcid.Int(); ok && v >= 0 {
				return v
			}
		}
	case OperandName:
		if res != nil {
			if v, ok := res.MarkedContentID(props.Name()); ok && v >= 0 {
				return v
			}
		}
	}
	return untagged
}

func (r *run) setFont(args []Operand, res Resources) {
	gs := &r.state.current
	if len(args) < 2 {
		return
	}
	name := args[len(args)-2].Name()
	if size, ok := number(args, 1, 2); ok {
		gs.Text.FontSize = size
	}
	gs.Text.FontName = name
	gs.Text.Font = nil
	if res == nil || name == "" {
		return
	}
	font, err := res.Font(name)
	if err != nil {
		r.in.logger.Debug("font not available", "page", r.page, "font", name, "error", err)
		r.in.record(pdferrors.WrapError(pdferrors.ErrorTypeResourceNotFound, err).WithPage(r.page).WithContext("font " + name))
		return
	}
	gs.Text.Font = font
}

func (r *run) moveText(tx, ty float64) {
	r.lineMatrix = Translate(tx, ty).Multiply(r.lineMatrix)
	r.textMatrix = r.lineMatrix
}

func (r *run) showTextArray(items []Operand) {
	ts := &r.state.current.Text
	for _, item := range items {
		switch item.Kind {
		case OperandString:
			r.showText(item.Bytes)
		case OperandNumber:
			tx := -item.Number / 1000 * ts.FontSize * ts.HorizScale / 100
			r.textMatrix = Translate(tx, 0).Multiply(r.textMatrix)
		}
	}
}

func (r *run) showText(s []byte) {
	gs := &r.state.current
	ts := &gs.Text
	th := ts.HorizScale / 100

	if ts.Font == nil {
		r.out.Undecodable += len(s)
		r.in.record(pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeGlyphUndecodable,
			"no font selected", ts.FontName).WithPage(r.page))
		return
	}

	for _, code := range ts.Font.Codes(s) {
		trm := Matrix{ts.FontSize * th, 0, 0, ts.FontSize, 0, ts.Rise}.Multiply(r.textMatrix).Multiply(gs.CTM)
		w0 := ts.Font.Width(code) / 1000

		r.glyph(code, trm, w0)

		tx := w0*ts.FontSize + ts.CharSpacing
		if len(code.Raw) == 1 && code.Value == 32 {
			tx += ts.WordSpacing
		}
		r.textMatrix = Translate(tx*th, 0).Multiply(r.textMatrix)
	}
}

// glyph is the hook run for every rendered glyph
func (r *run) glyph(code Code, trm Matrix, w0 float64) {
	font := r.state.current.Text.Font
	text, ok := decode(font, code)
	if !ok {
		r.out.Undecodable++
		r.in.record(pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeGlyphUndecodable,
			"unmapped character code", fmt.Sprintf("code=%d", code.Value)).WithPage(r.page).WithTag(r.marks.top()))
		return
	}

	size := trm.ScaleY()
	pw, ph := r.geom.Size()
	r.out.Glyphs = append(r.out.Glyphs, Glyph{
		Text:       text,
		X:          trm[4],
		Y:          trm[5],
		Width:      w0 * trm.ScaleX(),
		Height:     size,
		FontSize:   size,
		HorizScale: r.state.current.Text.HorizScale / 100,
		Rotation:   r.geom.Rotation,
		PageWidth:  pw,
		PageHeight: ph,
		Tag:        r.marks.top(),
	})
}

// decode maps one code through the font, converting decoder panics and
// replacement characters into a miss.
func decode(font Font, code Code) (text string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			text, ok = "", false
		}
	}()
	text, ok = font.Decode(code)
	if !ok || text == "" {
		return "", false
	}
	for _, ch := range text {
		if ch != '\ufffd' && ch != 0 {
			return text, true
		}
	}
	return "", false
}

func (r *run) rectangle(args []Operand) {
	if len(args) < 4 {
		return
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		n, ok := number(args, i, 4)
		if !ok {
			return
		}
		v[i] = n
	}
	ctm := r.state.current.CTM
	x, y, w, h := v[0], v[1], v[2], v[3]
	r.path.rect(
		point(ctm.Apply(x, y)),
		point(ctm.Apply(x+w, y)),
		point(ctm.Apply(x+w, y+h)),
		point(ctm.Apply(x, y+h)),
	)
}

func (r *run) paint(stroke, fill bool) {
	gs := r.state.current
	thickness := 0.0
	if stroke {
		thickness = gs.LineWidth * (gs.CTM.ScaleX() + gs.CTM.ScaleY()) / 2
		if thickness <= 0 {
			thickness = minStrokeWidth
		}
	}
	r.out.Segments = append(r.out.Segments, r.path.segments(stroke, fill, thickness)...)
	r.path.reset()
}

func (r *run) invokeForm(name string, res Resources, depth int) {
	if res == nil {
		return
	}
	if depth >= r.in.maxFormDepth {
		r.in.logger.Warn("form nesting too deep", "page", r.page, "form", name, "depth", depth)
		return
	}
	form, err := res.Form(name)
	if err != nil {
		r.in.logger.Debug("xobject not available", "page", r.page, "name", name, "error", err)
		return
	}
	if form == nil {
		return
	}

	formRes := form.Resources
	if formRes == nil {
		formRes = res
	}

	r.state.save()
	r.state.current.CTM = form.Matrix.Multiply(r.state.current.CTM)
	savedText, savedLine := r.textMatrix, r.lineMatrix
	r.execute(form.Content, formRes, depth+1)
	r.textMatrix, r.lineMatrix = savedText, savedLine
	r.state.restore()
}

// number returns operand i of the trailing n operands
func number(args []Operand, i, n int) (float64, bool) {
	if len(args) < n {
		return 0, false
	}
	op := args[len(args)-n+i]
	if op.Kind != OperandNumber || math.IsNaN(op.Number) {
		return 0, false
	}
	return op.Number, true
}

func stringArg(args []Operand, i, n int) ([]byte, bool) {
	if len(args) < n {
		return nil, false
	}
	op := args[len(args)-n+i]
	if op.Kind != OperandString {
		return nil, false
	}
	return op.Bytes, true
}

func nameArg(args []Operand) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	name := args[len(args)-1].Name()
	return name, name != ""
}
