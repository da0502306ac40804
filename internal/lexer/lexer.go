package lexer

import (
	"errors"
	"fmt"
	"strings"
)

// LexError is a lexical error with the position where it was detected.
type LexError struct {
	Pos     Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Message)
}

// IsLexError reports whether err is or wraps a *LexError.
func IsLexError(err error) bool {
	var le *LexError
	return errors.As(err, &le)
}

// Lexer scans source text one token at a time.
type Lexer struct {
	src  []rune
	off  int
	line int
	col  int
}

// New creates a lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

// HasMoreTokens reports whether any non-trivia input remains.
func (l *Lexer) HasMoreTokens() bool {
	l.skipTrivia()
	return l.off < len(l.src)
}

// NextToken returns the next token. At end of input it returns a
// TokenEOF token, repeatedly. Unknown characters yield TokenUnknown so the
// caller decides whether to skip them; only an unterminated string is an
// error.
func (l *Lexer) NextToken() (Token, error) {
	l.skipTrivia()
	pos := Position{Line: l.line, Column: l.col}
	if l.off >= len(l.src) {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	ch := l.src[l.off]
	switch {
	case isIdentStart(ch):
		word := l.take(isIdentPart)
		typ := TokenIdent
		if keywords[word] {
			typ = TokenKeyword
		}
		return Token{Type: typ, Literal: word, Value: word, Pos: pos}, nil
	case isDigit(ch):
		digits := l.take(isDigit)
		return Token{Type: TokenInt, Literal: digits, Value: digits, Pos: pos}, nil
	case ch == '"' || ch == '\'':
		return l.scanString(pos)
	}

	if typ, width := l.symbol(); width > 0 {
		lit := string(l.src[l.off : l.off+width])
		l.advance(width)
		return Token{Type: typ, Literal: lit, Value: lit, Pos: pos}, nil
	}

	l.advance(1)
	return Token{Type: TokenUnknown, Literal: string(ch), Value: string(ch), Pos: pos}, nil
}

// Tokenize scans all of src. The returned slice always ends with TokenEOF.
func Tokenize(src string) ([]Token, error) {
	l := New(src)
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) symbol() (TokenType, int) {
	ch := l.src[l.off]
	var next rune
	if l.off+1 < len(l.src) {
		next = l.src[l.off+1]
	}
	if next == '=' {
		switch ch {
		case '=':
			return TokenEq, 2
		case '!':
			return TokenNe, 2
		case '>':
			return TokenGe, 2
		case '<':
			return TokenLe, 2
		}
	}
	switch ch {
	case '{':
		return TokenLBrace, 1
	case '}':
		return TokenRBrace, 1
	case '(':
		return TokenLParen, 1
	case ')':
		return TokenRParen, 1
	case '[':
		return TokenLBracket, 1
	case ']':
		return TokenRBracket, 1
	case ':':
		return TokenColon, 1
	case ';':
		return TokenSemi, 1
	case ',':
		return TokenComma, 1
	case '.':
		return TokenDot, 1
	case '=':
		return TokenAssign, 1
	case '>':
		return TokenGt, 1
	case '<':
		return TokenLt, 1
	case '+':
		return TokenPlus, 1
	case '-':
		return TokenMinus, 1
	case '*':
		return TokenStar, 1
	case '/':
		return TokenSlash, 1
	}
	return TokenUnknown, 0
}

// scanString reads a quoted literal. A newline before the closing quote
// counts as unterminated so that statement text never spans lines.
func (l *Lexer) scanString(pos Position) (Token, error) {
	quote := l.src[l.off]
	start := l.off
	l.advance(1)

	var val strings.Builder
	for l.off < len(l.src) {
		ch := l.src[l.off]
		switch {
		case ch == quote:
			l.advance(1)
			return Token{
				Type:    TokenString,
				Literal: string(l.src[start:l.off]),
				Value:   val.String(),
				Pos:     pos,
			}, nil
		case ch == '\n':
			return Token{}, &LexError{Pos: pos, Message: "unterminated string literal"}
		case ch == '\\' && l.off+1 < len(l.src):
			val.WriteRune(unescape(l.src[l.off+1]))
			l.advance(2)
		default:
			val.WriteRune(ch)
			l.advance(1)
		}
	}
	return Token{}, &LexError{Pos: pos, Message: "unterminated string literal"}
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return ch
}

func (l *Lexer) skipTrivia() {
	for l.off < len(l.src) {
		ch := l.src[l.off]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance(1)
		case ch == '/' && l.off+1 < len(l.src) && l.src[l.off+1] == '/':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *Lexer) take(pred func(rune) bool) string {
	start := l.off
	for l.off < len(l.src) && pred(l.src[l.off]) {
		l.advance(1)
	}
	return string(l.src[start:l.off])
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
