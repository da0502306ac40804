package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenize_Symbols(t *testing.T) {
	toks, err := Tokenize("{ } ( ) [ ] : ; , . = == != >= <= > < + - * /")
	require.NoError(t, err)

	assert.Equal(t, []TokenType{
		TokenLBrace, TokenRBrace, TokenLParen, TokenRParen, TokenLBracket, TokenRBracket,
		TokenColon, TokenSemi, TokenComma, TokenDot, TokenAssign, TokenEq, TokenNe,
		TokenGe, TokenLe, TokenGt, TokenLt, TokenPlus, TokenMinus, TokenStar, TokenSlash,
		TokenEOF,
	}, types(toks))
}

func TestTokenize_KeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		word string
		want TokenType
	}{
		{"protocol", TokenKeyword},
		{"state", TokenKeyword},
		{"map", TokenKeyword},
		{"false", TokenKeyword},
		{"returns", TokenIdent},
		{"if", TokenIdent},
		{"emit", TokenIdent},
		{"balance_2", TokenIdent},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			toks, err := Tokenize(tt.word)
			require.NoError(t, err)
			require.Len(t, toks, 2)
			assert.Equal(t, tt.want, toks[0].Type)
			assert.Equal(t, tt.word, toks[0].Literal)
		})
	}
}

func TestTokenize_Positions(t *testing.T) {
	src := "protocol P {\n  // comment\n  state { x: int = 42; }\n}"
	toks, err := Tokenize(src)
	require.NoError(t, err)

	assert.Equal(t, Position{Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, Position{Line: 1, Column: 10}, toks[1].Pos)
	// "state" on line 3 after the comment line
	assert.Equal(t, "state", toks[3].Literal)
	assert.Equal(t, Position{Line: 3, Column: 3}, toks[3].Pos)
	assert.Equal(t, "42", toks[9].Literal)
	assert.Equal(t, TokenInt, toks[9].Type)
}

func TestTokenize_Strings(t *testing.T) {
	toks, err := Tokenize(`"a \"quoted\" word" 'single'`)
	require.NoError(t, err)

	require.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, `"a \"quoted\" word"`, toks[0].Literal)
	assert.Equal(t, `a "quoted" word`, toks[0].Value)
	assert.Equal(t, "single", toks[1].Value)
}

func TestTokenize_UnterminatedString(t *testing.T) {
	tests := []string{`x = "abc`, "x = \"abc\ndef\""}
	for _, src := range tests {
		_, err := Tokenize(src)
		require.Error(t, err)
		assert.True(t, IsLexError(err))

		le := err.(*LexError)
		assert.Equal(t, Position{Line: 1, Column: 5}, le.Pos)
	}
}

func TestTokenize_UnknownCharacter(t *testing.T) {
	toks, err := Tokenize("a # b")
	require.NoError(t, err)

	assert.Equal(t, []TokenType{TokenIdent, TokenUnknown, TokenIdent, TokenEOF}, types(toks))
	assert.Equal(t, "#", toks[1].Literal)
}

func TestLexer_HasMoreTokens(t *testing.T) {
	l := New("  x // trailing comment")
	assert.True(t, l.HasMoreTokens())

	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, "x", tok.Literal)
	assert.False(t, l.HasMoreTokens())

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokenEOF, tok.Type)
}
