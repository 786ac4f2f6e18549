package token

import (
	"strings"

	"github.com/flowquery-dev/flowquery/fqerr"
)

var opsym = operatorsAndSymbols()

var keywordSet = func() map[string]bool {
	m := make(map[string]bool, len(Keywords))
	for _, k := range Keywords {
		m[strings.ToUpper(k)] = true
	}
	return m
}()

type fstringFrame struct {
	quote     byte
	inExpr    bool // true once the '{' opening an embedded expression has been consumed
	exprDepth int  // brace-nesting depth while inExpr; reaching 0 closes the expression
}

// Lexer scans FlowQuery source text into a Token stream, one Token per
// Next call.
type Lexer struct {
	src    string
	pos    int // byte offset
	line   int
	col    int
	fstack []*fstringFrame
}

// New returns a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Col: l.col, Offset: l.pos}
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) eof() bool { return l.pos >= len(l.src) }

// Next returns the next Token, or a Token of Kind EOF at end of input.
func (l *Lexer) Next() (Token, error) {
	if len(l.fstack) > 0 && !l.fstack[len(l.fstack)-1].inExpr {
		return l.scanFStringLiteral()
	}

	l.skipWhitespaceAndComments()
	if l.eof() {
		return Token{Kind: EOF, Pos: l.position()}, nil
	}

	start := l.position()
	c := l.peek()

	switch {
	case c == '`':
		return l.scanBacktickIdent(start)
	case c == '\'' || c == '"':
		return l.scanString(start)
	case (c == 'f' || c == 'F') && (l.peekAt(1) == '\'' || l.peekAt(1) == '"'):
		return l.scanFStringOpen(start)
	case isDigit(c):
		return l.scanNumber(start)
	case isIdentStart(c):
		return l.scanIdentOrKeyword(start)
	default:
		return l.scanOperatorOrSymbol(start)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.eof() {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.advance()
			continue
		}
		if c == '/' && l.peekAt(1) == '*' {
			l.advance()
			l.advance()
			for !l.eof() && !(l.peek() == '*' && l.peekAt(1) == '/') {
				l.advance()
			}
			if !l.eof() {
				l.advance()
				l.advance()
			}
			continue
		}
		break
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func (l *Lexer) scanIdentOrKeyword(start Position) (Token, error) {
	s := l.pos
	for !l.eof() && isIdentCont(l.peek()) {
		l.advance()
	}
	text := l.src[s:l.pos]
	if keywordSet[strings.ToUpper(text)] {
		return Token{Kind: Keyword, Text: text, Pos: start}, nil
	}
	return Token{Kind: Ident, Text: text, Pos: start}, nil
}

func (l *Lexer) scanBacktickIdent(start Position) (Token, error) {
	l.advance() // opening backtick
	s := l.pos
	for !l.eof() && l.peek() != '`' {
		l.advance()
	}
	if l.eof() {
		return Token{}, fqerr.ErrSyntax.New("unterminated backtick identifier at " + start.String())
	}
	text := l.src[s:l.pos]
	l.advance() // closing backtick
	return Token{Kind: Ident, Text: text, Pos: start}, nil
}

func (l *Lexer) scanNumber(start Position) (Token, error) {
	s := l.pos
	for !l.eof() && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for !l.eof() && isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if isDigit(l.peek()) {
			isFloat = true
			for !l.eof() && isDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.pos = save
		}
	}
	text := l.src[s:l.pos]
	if isFloat {
		return Token{Kind: Float, Text: text, Pos: start}, nil
	}
	return Token{Kind: Int, Text: text, Pos: start}, nil
}

func (l *Lexer) scanString(start Position) (Token, error) {
	quote := l.advance()
	var b strings.Builder
	for {
		if l.eof() {
			return Token{}, fqerr.ErrSyntax.New("unterminated string literal at " + start.String())
		}
		c := l.peek()
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			b.WriteByte(unescape(l.advance()))
			continue
		}
		b.WriteByte(l.advance())
	}
	return Token{Kind: String, Text: b.String(), Pos: start}, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (l *Lexer) scanFStringOpen(start Position) (Token, error) {
	l.advance() // 'f'/'F'
	quote := l.advance()
	l.fstack = append(l.fstack, &fstringFrame{quote: quote})
	return l.scanFStringLiteral()
}

// scanFStringLiteral scans a run of literal text for the innermost active
// f-string frame, handling {{ / }} brace escapes, until it hits an
// unescaped '{' (embedded expression begins) or the frame's closing quote.
func (l *Lexer) scanFStringLiteral() (Token, error) {
	frame := l.fstack[len(l.fstack)-1]
	start := l.position()
	var b strings.Builder
	for {
		if l.eof() {
			return Token{}, fqerr.ErrSyntax.New("unterminated f-string at " + start.String())
		}
		c := l.peek()
		switch {
		case c == frame.quote:
			l.advance()
			l.fstack = l.fstack[:len(l.fstack)-1]
			return Token{Kind: FStringLiteral, Text: b.String(), Pos: start, Final: true}, nil
		case c == '{' && l.peekAt(1) == '{':
			l.advance()
			l.advance()
			b.WriteByte('{')
		case c == '}' && l.peekAt(1) == '}':
			l.advance()
			l.advance()
			b.WriteByte('}')
		case c == '{':
			// Leave the '{' unconsumed: the next Next() call dispatches to
			// scanOperatorOrSymbol, which recognizes it as the start of this
			// frame's embedded expression and emits FStringExprStart.
			frame.inExpr = true
			return Token{Kind: FStringLiteral, Text: b.String(), Pos: start}, nil
		default:
			b.WriteByte(l.advance())
		}
	}
}

// scanOperatorOrSymbol is called for a '{'/'}' that may need to update the
// active f-string frame's brace-nesting depth, and otherwise performs the
// trie-backed longest match over Operators and Symbols.
func (l *Lexer) scanOperatorOrSymbol(start Position) (Token, error) {
	c := l.peek()
	if len(l.fstack) > 0 {
		frame := l.fstack[len(l.fstack)-1]
		if frame.inExpr {
			if c == '{' {
				l.advance()
				frame.exprDepth++
				if frame.exprDepth == 1 {
					return Token{Kind: FStringExprStart, Text: "{", Pos: start}, nil
				}
				return Token{Kind: Symbol, Text: "{", Pos: start}, nil
			}
			if c == '}' && frame.exprDepth > 0 {
				l.advance()
				frame.exprDepth--
				if frame.exprDepth == 0 {
					frame.inExpr = false
					return Token{Kind: FStringExprEnd, Text: "}", Pos: start}, nil
				}
				return Token{Kind: Symbol, Text: "}", Pos: start}, nil
			}
		}
	}

	length, kind, ok := opsym.longestMatch(l.src, l.pos)
	if !ok {
		return Token{}, fqerr.ErrSyntax.New("unexpected character '" + string(c) + "' at " + start.String())
	}
	text := l.src[l.pos : l.pos+length]
	for i := 0; i < length; i++ {
		l.advance()
	}
	return Token{Kind: kind, Text: text, Pos: start}, nil
}
