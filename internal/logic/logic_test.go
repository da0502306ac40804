package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/lexer"
)

func TestParseStatement_Shapes(t *testing.T) {
	tests := []struct {
		text string
		want ast.Statement
	}{
		{
			text: "state.count = state.count + 1",
			want: &ast.Assign{
				Target: &ast.StateRef{Name: "count"},
				Value: &ast.BinaryOp{Op: "+",
					Left:  &ast.StateRef{Name: "count"},
					Right: &ast.Literal{Value: "1"}},
			},
		},
		{
			text: "state.balances[params.to][ctx.sender] = -3",
			want: &ast.Assign{
				Target: &ast.StateRef{Name: "balances", Index: []ast.Expr{
					&ast.ParamRef{Name: "to"}, &ast.CtxRef{Name: "sender"},
				}},
				Value: &ast.Literal{Value: "-3"},
			},
		},
		{
			text: `emit Changed(state.count, "done", true)`,
			want: &ast.Emit{Event: "Changed", Args: []ast.Expr{
				&ast.StateRef{Name: "count"},
				&ast.Literal{Value: "done", Quoted: true},
				&ast.Literal{Value: "true"},
			}},
		},
		{
			text: "emit Ping()",
			want: &ast.Emit{Event: "Ping"},
		},
		{
			text: "if (params.amount >= 10) { state.big = true; }",
			want: &ast.If{
				Cond: &ast.BinaryOp{Op: ">=", Left: &ast.ParamRef{Name: "amount"}, Right: &ast.Literal{Value: "10"}},
				Then: &ast.Assign{Target: &ast.StateRef{Name: "big"}, Value: &ast.Literal{Value: "true"}},
			},
		},
		{
			text: "tk.transfer(params.to, 5)",
			want: &ast.Call{Alias: "tk", Method: "transfer", Args: []ast.Expr{
				&ast.ParamRef{Name: "to"}, &ast.Literal{Value: "5"},
			}},
		},
		{
			text: "state.total = Registry.lookup(params.id)",
			want: &ast.Assign{
				Target: &ast.StateRef{Name: "total"},
				Value:  &ast.Call{Alias: "Registry", Method: "lookup", Args: []ast.Expr{&ast.ParamRef{Name: "id"}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseStatement(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatement_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"two operators", "state.x = state.a - state.b - 1"},
		{"comparison on assignment", "state.x = state.a == 1"},
		{"non-comparison condition", "if (state.a + 1) { state.x = 1; }"},
		{"nested if", "if (state.a > 1) { if (state.b > 1) { state.x = 1; } }"},
		{"emit in if body", "if (state.a > 1) { emit E(); }"},
		{"assign to params", "params.x = 1"},
		{"missing value", "state.x ="},
		{"unclosed index", "state.m[params.k = 1"},
		{"trailing tokens", "emit E() extra"},
		{"empty", "   "},
		{"unterminated string", `state.x = "abc`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatement(tt.text)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err), "got %T", err)
		})
	}
}

func TestParseReturn(t *testing.T) {
	assert.Equal(t, &ast.StateRef{Name: "count"}, ParseReturn("state.count"))
	assert.Equal(t,
		&ast.BinaryOp{Op: "==", Left: &ast.CtxRef{Name: "sender"}, Right: &ast.Literal{Value: "abc", Quoted: true}},
		ParseReturn(`ctx.sender == "abc"`))
	assert.Equal(t, &ast.Literal{Value: "not an expression at all"}, ParseReturn("not an expression at all"))
}

func TestStatementString_RoundTrips(t *testing.T) {
	texts := []string{
		"state.count = state.count + 1",
		"state.m[params.k] = ctx.sender",
		`emit E(state.a, "x y")`,
		"if (state.a != 0) { state.b = state.a / 2; }",
		"tk.transfer(params.to, 5)",
	}
	for _, text := range texts {
		stmt, err := ParseStatement(text)
		require.NoError(t, err)
		assert.Equal(t, text, stmt.String())
	}
}

func TestParseStatements_StopsAtFirstError(t *testing.T) {
	_, err := ParseStatements([]string{"state.a = 1", "bogus statement", "state.b = 2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus statement")
}

func TestRender_Reparses(t *testing.T) {
	stmts := []string{
		"state.a = state.b - -3",
		"emit E(params.x, \"a b\", ctx.sender)",
		"if (state.x >= 2) { state.y = state.y / 2; }",
	}
	for _, s := range stmts {
		toks, err := lexer.Tokenize(s)
		require.NoError(t, err)
		assert.Equal(t, s, Render(toks[:len(toks)-1]))
	}
}

func TestSplit(t *testing.T) {
	got, err := Split("state.a = 1;if (state.a == 1) { state.b = 2; } emit E(state.b);;")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"state.a = 1",
		"if (state.a == 1) { state.b = 2; }",
		"emit E(state.b)",
	}, got)
}
