package content

import (
	"strconv"
)

// OperandKind tags the variant held by an Operand
type OperandKind int

const (
	OperandNull OperandKind = iota
	OperandNumber
	OperandString
	OperandName
	OperandBool
	OperandArray
	OperandDict
)

// Operand is a content-stream operand value
type Operand struct {
	Kind   OperandKind
	Number float64
	Bytes  []byte // String and Name payloads
	Bool   bool
	Array  []Operand
	Dict   map[string]Operand
}

// Name returns the operand as a name, or "" when it is not one
func (o Operand) Name() string {
	if o.Kind != OperandName {
		return ""
	}
	return string(o.Bytes)
}

// Int returns the operand as an integer and whether it was numeric
func (o Operand) Int() (int, bool) {
	if o.Kind != OperandNumber {
		return 0, false
	}
	return int(o.Number), true
}

// OpKind is the operator variant dispatched on by the interpreter
type OpKind int

const (
	OpUnknown OpKind = iota

	// graphics state
	OpSave
	OpRestore
	OpConcat
	OpLineWidth

	// text objects and state
	OpBeginText
	OpEndText
	OpCharSpacing
	OpWordSpacing
	OpHorizScale
	OpLeading
	OpFont
	OpRise
	OpMoveText
	OpMoveTextLeading
	OpTextMatrix
	OpNextLine

	// text showing
	OpShowText
	OpShowTextArray
	OpNextLineShow
	OpNextLineShowSpaced

	// marked content
	OpBeginMarked
	OpBeginMarkedProps
	OpEndMarked

	// path construction
	OpMoveTo
	OpLineTo
	OpCurveTo
	OpCurveToV
	OpCurveToY
	OpClosePath
	OpRectangle

	// path painting
	OpStroke
	OpCloseStroke
	OpFill
	OpFillEvenOdd
	OpFillStroke
	OpFillStrokeEvenOdd
	OpCloseFillStroke
	OpCloseFillStrokeEvenOdd
	OpEndPath

	// external objects
	OpXObject
	OpInlineImage
)

var opKinds = map[string]OpKind{
	"q":   OpSave,
	"Q":   OpRestore,
	"cm":  OpConcat,
	"w":   OpLineWidth,
	"BT":  OpBeginText,
	"ET":  OpEndText,
	"Tc":  OpCharSpacing,
	"Tw":  OpWordSpacing,
	"Tz":  OpHorizScale,
	"TL":  OpLeading,
	"Tf":  OpFont,
	"Ts":  OpRise,
	"Td":  OpMoveText,
	"TD":  OpMoveTextLeading,
	"Tm":  OpTextMatrix,
	"T*":  OpNextLine,
	"Tj":  OpShowText,
	"TJ":  OpShowTextArray,
	"'":   OpNextLineShow,
	"\"":  OpNextLineShowSpaced,
	"BMC": OpBeginMarked,
	"BDC": OpBeginMarkedProps,
	"EMC": OpEndMarked,
	"m":   OpMoveTo,
	"l":   OpLineTo,
	"c":   OpCurveTo,
	"v":   OpCurveToV,
	"y":   OpCurveToY,
	"h":   OpClosePath,
	"re":  OpRectangle,
	"S":   OpStroke,
	"s":   OpCloseStroke,
	"f":   OpFill,
	"F":   OpFill,
	"f*":  OpFillEvenOdd,
	"B":   OpFillStroke,
	"B*":  OpFillStrokeEvenOdd,
	"b":   OpCloseFillStroke,
	"b*":  OpCloseFillStrokeEvenOdd,
	"n":   OpEndPath,
	"Do":  OpXObject,
	"BI":  OpInlineImage,
}

// Operation is one operator together with its operands
type Operation struct {
	Kind     OpKind
	Operator string
	Operands []Operand
}

// Parser groups lexer tokens into operations
type Parser struct {
	lexer *Lexer
	stack []Operand
}

// NewParser creates a parser over decoded content bytes
func NewParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data)}
}

// Next returns the next operation, or false at the end of the stream.
// Operands of unknown operators are dropped with them.
func (p *Parser) Next() (Operation, bool) {
	for {
		tok := p.lexer.NextToken()
		switch tok.Type {
		case TokenEOF:
			return Operation{}, false
		case TokenKeyword:
			if op, ok := p.keyword(tok); ok {
				return op, true
			}
		default:
			if operand, ok := p.operand(tok, 0); ok {
				p.stack = append(p.stack, operand)
			}
		}
	}
}

// Parse returns every operation in the stream
func (p *Parser) Parse() []Operation {
	var ops []Operation
	for {
		op, ok := p.Next()
		if !ok {
			return ops
		}
		ops = append(ops, op)
	}
}

func (p *Parser) keyword(tok Token) (Operation, bool) {
	word := string(tok.Value)
	switch word {
	case "true", "false":
		p.stack = append(p.stack, Operand{Kind: OperandBool, Bool: word == "true"})
		return Operation{}, false
	case "null":
		p.stack = append(p.stack, Operand{Kind: OperandNull})
		return Operation{}, false
	}

	operands := p.stack
	p.stack = nil

	kind := opKinds[word]
	if kind == OpInlineImage {
		p.skipInlineImage()
	}
	return Operation{Kind: kind, Operator: word, Operands: operands}, true
}

// skipInlineImage consumes the BI dictionary and the binary image data
func (p *Parser) skipInlineImage() {
	for {
		tok := p.lexer.NextToken()
		if tok.Type == TokenEOF {
			return
		}
		if tok.Type == TokenKeyword && string(tok.Value) == "ID" {
			p.lexer.SkipInlineImage()
			return
		}
	}
}

const maxNesting = 32

func (p *Parser) operand(tok Token, depth int) (Operand, bool) {
	switch tok.Type {
	case TokenNumber:
		f, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return Operand{}, false
		}
		return Operand{Kind: OperandNumber, Number: f}, true
	case TokenString:
		return Operand{Kind: OperandString, Bytes: tok.Value}, true
	case TokenName:
		return Operand{Kind: OperandName, Bytes: tok.Value}, true
	case TokenArrayStart:
		if depth > maxNesting {
			return Operand{}, false
		}
		return p.readArray(depth + 1), true
	case TokenDictStart:
		if depth > maxNesting {
			return Operand{}, false
		}
		return p.readDict(depth + 1), true
	case TokenKeyword:
		switch string(tok.Value) {
		case "true", "false":
			return Operand{Kind: OperandBool, Bool: string(tok.Value) == "true"}, true
		case "null":
			return Operand{Kind: OperandNull}, true
		}
	}
	return Operand{}, false
}

func (p *Parser) readArray(depth int) Operand {
	arr := Operand{Kind: OperandArray}
	for {
		tok := p.lexer.NextToken()
		if tok.Type == TokenEOF || tok.Type == TokenArrayEnd {
			return arr
		}
		if v, ok := p.operand(tok, depth); ok {
			arr.Array = append(arr.Array, v)
		}
	}
}

func (p *Parser) readDict(depth int) Operand {
	dict := Operand{Kind: OperandDict, Dict: make(map[string]Operand)}
	for {
		tok := p.lexer.NextToken()
		if tok.Type == TokenEOF || tok.Type == TokenDictEnd {
			return dict
		}
		if tok.Type != TokenName {
			continue
		}
		key := string(tok.Value)
		valTok := p.lexer.NextToken()
		if valTok.Type == TokenEOF || valTok.Type == TokenDictEnd {
			return dict
		}
		if v, ok := p.operand(valTok, depth); ok {
			dict.Dict[key] = v
		}
	}
}
