package logic

import (
	"strings"

	"github.com/cardity-org/cardity-core/internal/lexer"
)

// Render joins statement tokens into normalised text: single spaces
// between words and operators, none around "." or inside brackets, and
// unary minus attached to its operand. The output re-tokenizes to the same
// token sequence.
func Render(toks []lexer.Token) string {
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && needsSpace(toks[i-1], tok, i >= 2 && !isUnaryContext(toks[i-2])) {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Literal)
	}
	return b.String()
}

// needsSpace decides spacing between prev and tok. prevBinary is false when
// prev is a minus sign in unary position.
func needsSpace(prev, tok lexer.Token, prevBinary bool) bool {
	switch tok.Type {
	case lexer.TokenDot, lexer.TokenComma, lexer.TokenSemi,
		lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenLBracket:
		return false
	case lexer.TokenLParen:
		return prev.Is("if") || prev.Type.IsComparison() || prev.Type.IsArithmetic() ||
			prev.Type == lexer.TokenAssign
	}
	switch prev.Type {
	case lexer.TokenDot, lexer.TokenLParen, lexer.TokenLBracket:
		return false
	case lexer.TokenMinus:
		return prevBinary || tok.Type != lexer.TokenInt
	}
	return true
}

// isUnaryContext reports whether a minus following tok is a sign rather
// than a subtraction.
func isUnaryContext(tok lexer.Token) bool {
	switch tok.Type {
	case lexer.TokenInt, lexer.TokenString, lexer.TokenIdent,
		lexer.TokenRParen, lexer.TokenRBracket:
		return false
	case lexer.TokenKeyword:
		return !(tok.Is("true") || tok.Is("false"))
	}
	return true
}

// Split breaks method logic text into statements at top-level ";" and at
// any "}" that closes a block. Each statement is re-rendered in normal
// form; empty statements are dropped.
func Split(text string) ([]string, error) {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	var stmts []string
	var cur []lexer.Token
	depth := 0
	flush := func() {
		if len(cur) > 0 {
			stmts = append(stmts, Render(cur))
		}
		cur = nil
	}
	for _, tok := range toks[:len(toks)-1] {
		switch tok.Type {
		case lexer.TokenSemi:
			if depth == 0 {
				flush()
				continue
			}
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			if depth > 0 {
				depth--
				if depth == 0 {
					cur = append(cur, tok)
					flush()
					continue
				}
			}
		}
		cur = append(cur, tok)
	}
	flush()
	return stmts, nil
}
