package content

import (
	"bytes"
	"encoding/hex"
	"strconv"
)

// Character classes used by the lexer
const (
	nullChar           = 0x00
	tabChar            = '\t'
	lineFeedChar       = '\n'
	formFeedChar       = '\f'
	carriageReturnChar = '\r'
	spaceChar          = ' '

	leftParen   = '('
	rightParen  = ')'
	leftAngle   = '<'
	rightAngle  = '>'
	leftSquare  = '['
	rightSquare = ']'
	leftCurly   = '{'
	rightCurly  = '}'
	solidus     = '/'
	percentSign = '%'
)

func isWhitespace(ch byte) bool {
	return ch == nullChar || ch == tabChar || ch == lineFeedChar ||
		ch == formFeedChar || ch == carriageReturnChar || ch == spaceChar
}

func isDelimiter(ch byte) bool {
	return ch == leftParen || ch == rightParen || ch == leftAngle || ch == rightAngle ||
		ch == leftSquare || ch == rightSquare || ch == leftCurly || ch == rightCurly ||
		ch == solidus || ch == percentSign
}

func isRegular(ch byte) bool {
	return !isWhitespace(ch) && !isDelimiter(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// TokenType represents the type of a content-stream token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenName
	TokenKeyword
	TokenArrayStart // [
	TokenArrayEnd   // ]
	TokenDictStart  // <<
	TokenDictEnd    // >>
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenName:
		return "Name"
	case TokenKeyword:
		return "Keyword"
	case TokenArrayStart:
		return "ArrayStart"
	case TokenArrayEnd:
		return "ArrayEnd"
	case TokenDictStart:
		return "DictStart"
	case TokenDictEnd:
		return "DictEnd"
	default:
		return "Unknown"
	}
}

// Token is one lexical unit of a content stream. String tokens carry raw
// bytes (hex strings already decoded), names are unescaped.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int
}

// Lexer tokenizes a decoded content stream held in memory
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a lexer over data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

func (l *Lexer) hasNext() bool {
	return l.pos < len(l.data)
}

func (l *Lexer) current() byte {
	if !l.hasNext() {
		return 0
	}
	return l.data[l.pos]
}

func (l *Lexer) peek() byte {
	if l.pos+1 >= len(l.data) {
		return 0
	}
	return l.data[l.pos+1]
}

func (l *Lexer) advance() {
	if l.hasNext() {
		l.pos++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.hasNext() && isWhitespace(l.current()) {
		l.advance()
	}
}

// skipComment skips a comment line starting with %
func (l *Lexer) skipComment() {
	for l.hasNext() && l.current() != lineFeedChar && l.current() != carriageReturnChar {
		l.advance()
	}
}

// Position returns the current byte offset
func (l *Lexer) Position() int {
	return l.pos
}

// NextToken returns the next token. Malformed input never fails: stray
// delimiters come back as keywords so the parser can discard them.
func (l *Lexer) NextToken() Token {
	for l.hasNext() {
		if isWhitespace(l.current()) {
			l.skipWhitespace()
		} else if l.current() == percentSign {
			l.skipComment()
		} else {
			break
		}
	}

	if !l.hasNext() {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	switch ch := l.current(); ch {
	case leftParen:
		return l.readLiteralString()
	case leftAngle:
		if l.peek() == leftAngle {
			l.pos += 2
			return Token{Type: TokenDictStart, Pos: start}
		}
		return l.readHexString()
	case rightAngle:
		if l.peek() == rightAngle {
			l.pos += 2
			return Token{Type: TokenDictEnd, Pos: start}
		}
		l.advance()
		return Token{Type: TokenKeyword, Value: []byte{ch}, Pos: start}
	case leftSquare:
		l.advance()
		return Token{Type: TokenArrayStart, Pos: start}
	case rightSquare:
		l.advance()
		return Token{Type: TokenArrayEnd, Pos: start}
	case solidus:
		return l.readName()
	case rightParen, leftCurly, rightCurly:
		l.advance()
		return Token{Type: TokenKeyword, Value: []byte{ch}, Pos: start}
	default:
		if isDigit(ch) || ch == '+' || ch == '-' || ch == '.' {
			return l.readNumber()
		}
		return l.readKeyword()
	}
}

func (l *Lexer) readLiteralString() Token {
	start := l.pos
	var buffer bytes.Buffer

	l.advance()
	depth := 1

	for l.hasNext() {
		ch := l.current()
		if ch == leftParen {
			depth++
		} else if ch == rightParen {
			depth--
			if depth == 0 {
				l.advance()
				break
			}
		} else if ch == '\\' {
			l.advance()
			if !l.hasNext() {
				break
			}
			switch esc := l.current(); esc {
			case 'n':
				buffer.WriteByte('\n')
			case 'r':
				buffer.WriteByte('\r')
			case 't':
				buffer.WriteByte('\t')
			case 'b':
				buffer.WriteByte('\b')
			case 'f':
				buffer.WriteByte('\f')
			case lineFeedChar:
			case carriageReturnChar:
				if l.peek() == lineFeedChar {
					l.advance()
				}
			default:
				if esc >= '0' && esc <= '7' {
					octal := []byte{esc}
					for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
						l.advance()
						octal = append(octal, l.current())
					}
					val, _ := strconv.ParseUint(string(octal), 8, 16)
					buffer.WriteByte(byte(val))
				} else {
					buffer.WriteByte(esc)
				}
			}
			l.advance()
			continue
		}
		buffer.WriteByte(ch)
		l.advance()
	}

	return Token{Type: TokenString, Value: buffer.Bytes(), Pos: start}
}

func (l *Lexer) readHexString() Token {
	start := l.pos
	digits := make([]byte, 0, 16)

	l.advance()
	for l.hasNext() && l.current() != rightAngle {
		if isHexDigit(l.current()) {
			digits = append(digits, l.current())
		}
		l.advance()
	}
	l.advance()

	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	decoded := make([]byte, hex.DecodedLen(len(digits)))
	n, _ := hex.Decode(decoded, digits)

	return Token{Type: TokenString, Value: decoded[:n], Pos: start}
}

func (l *Lexer) readName() Token {
	start := l.pos
	var buffer bytes.Buffer

	l.advance()
	for l.hasNext() && isRegular(l.current()) {
		ch := l.current()
		if ch == '#' && isHexDigit(l.peek()) && l.pos+2 < len(l.data) && isHexDigit(l.data[l.pos+2]) {
			val, _ := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8)
			buffer.WriteByte(byte(val))
			l.pos += 3
			continue
		}
		buffer.WriteByte(ch)
		l.advance()
	}

	return Token{Type: TokenName, Value: buffer.Bytes(), Pos: start}
}

func (l *Lexer) readNumber() Token {
	start := l.pos

	if l.current() == '+' || l.current() == '-' {
		l.advance()
	}
	for l.hasNext() && (isDigit(l.current()) || l.current() == '.') {
		l.advance()
	}

	// Malformed numbers such as "--5" or "1.2.3" are handed on as keywords.
	raw := l.data[start:l.pos]
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		for l.hasNext() && isRegular(l.current()) {
			l.advance()
		}
		return Token{Type: TokenKeyword, Value: l.data[start:l.pos], Pos: start}
	}
	return Token{Type: TokenNumber, Value: raw, Pos: start}
}

func (l *Lexer) readKeyword() Token {
	start := l.pos
	for l.hasNext() && isRegular(l.current()) {
		l.advance()
	}
	return Token{Type: TokenKeyword, Value: l.data[start:l.pos], Pos: start}
}

// SkipInlineImage advances past the binary payload that follows an ID
// operator, up to and including the terminating EI keyword.
func (l *Lexer) SkipInlineImage() {
	// A single whitespace byte separates ID from the data.
	if l.hasNext() && isWhitespace(l.current()) {
		l.advance()
	}
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhitespace(l.data[l.pos-1])) &&
			(l.pos+2 >= len(l.data) || !isRegular(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}
