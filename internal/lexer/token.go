// Package lexer converts Cardity protocol source text into positioned tokens.
package lexer

import "fmt"

// TokenType classifies a lexeme.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenUnknown
	TokenIdent
	TokenKeyword
	TokenInt
	TokenString

	TokenLBrace   // {
	TokenRBrace   // }
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenColon    // :
	TokenSemi     // ;
	TokenComma    // ,
	TokenDot      // .
	TokenAssign   // =
	TokenEq       // ==
	TokenNe       // !=
	TokenGe       // >=
	TokenLe       // <=
	TokenGt       // >
	TokenLt       // <
	TokenPlus     // +
	TokenMinus    // -
	TokenStar     // *
	TokenSlash    // /
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenUnknown:  "UNKNOWN",
	TokenIdent:    "IDENT",
	TokenKeyword:  "KEYWORD",
	TokenInt:      "INT",
	TokenString:   "STRING",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenColon:    ":",
	TokenSemi:     ";",
	TokenComma:    ",",
	TokenDot:      ".",
	TokenAssign:   "=",
	TokenEq:       "==",
	TokenNe:       "!=",
	TokenGe:       ">=",
	TokenLe:       "<=",
	TokenGt:       ">",
	TokenLt:       "<",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// IsComparison reports whether t is one of == != > < >= <=.
func (t TokenType) IsComparison() bool {
	switch t {
	case TokenEq, TokenNe, TokenGt, TokenLt, TokenGe, TokenLe:
		return true
	}
	return false
}

// IsArithmetic reports whether t is one of + - * /.
func (t TokenType) IsArithmetic() bool {
	switch t {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash:
		return true
	}
	return false
}

// Keywords recognised by the tokenizer. Anything else shaped like an
// identifier is a TokenIdent (including if, emit and returns).
var keywords = map[string]bool{
	"protocol": true,
	"state":    true,
	"method":   true,
	"event":    true,
	"version":  true,
	"owner":    true,
	"return":   true,
	"import":   true,
	"using":    true,
	"from":     true,
	"as":       true,
	"int":      true,
	"string":   true,
	"bool":     true,
	"address":  true,
	"map":      true,
	"true":     true,
	"false":    true,
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	return keywords[word]
}

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a classified lexeme.
//
// Literal is the exact source text (string literals keep their quotes).
// Value is the decoded form: the unquoted, unescaped content for strings
// and the same as Literal for everything else.
type Token struct {
	Type    TokenType
	Literal string
	Value   string
	Pos     Position
}

// Is reports whether the token is the given keyword or identifier text.
func (t Token) Is(word string) bool {
	return (t.Type == TokenKeyword || t.Type == TokenIdent) && t.Literal == word
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent, TokenKeyword, TokenInt, TokenString, TokenUnknown:
		return fmt.Sprintf("%s %q", t.Type, t.Literal)
	default:
		return fmt.Sprintf("%q", t.Literal)
	}
}
