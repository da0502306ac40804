package compiler

import (
	goast "go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/ast"
)

func validProtocol() *ast.Protocol {
	return &ast.Protocol{
		Name:    "Counter",
		Version: "1.0",
		StateVars: []ast.StateVar{
			{Name: "count", Type: "int", Default: "0"},
			{Name: "open", Type: "bool", Default: "true"},
			{Name: "balances", Type: "map"},
		},
		Methods: []ast.Method{
			{Name: "inc", Logic: []string{"state.count = state.count + 1", "emit Changed(state.count)"}},
			{
				Name:   "credit",
				Params: []ast.Param{{Name: "who", Type: "address"}, {Name: "amount", Type: "int"}},
				Logic:  []string{"state.balances[params.who] = state.balances[params.who] + params.amount"},
			},
			{Name: "get", Returns: &ast.Returns{Type: "int", Expr: "state.count"}},
		},
		Events: []ast.Event{{Name: "Changed", Params: []ast.Param{{Name: "value", Type: "int"}}}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	errs, warnings := Validate(validProtocol())
	assert.Empty(t, errs)
	assert.Empty(t, warnings)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ast.Protocol)
		want   []string
	}{
		{
			name:   "duplicate state",
			mutate: func(p *ast.Protocol) { p.StateVars = append(p.StateVars, ast.StateVar{Name: "count", Type: "int"}) },
			want:   []string{ErrDuplicateState},
		},
		{
			name:   "duplicate method",
			mutate: func(p *ast.Protocol) { p.Methods = append(p.Methods, ast.Method{Name: "inc"}) },
			want:   []string{ErrDuplicateMethod},
		},
		{
			name: "duplicate param",
			mutate: func(p *ast.Protocol) {
				p.Methods = append(p.Methods, ast.Method{Name: "pair", Params: []ast.Param{{Name: "a"}, {Name: "a"}}})
			},
			want: []string{ErrDuplicateParam},
		},
		{
			name:   "duplicate event",
			mutate: func(p *ast.Protocol) { p.Events = append(p.Events, ast.Event{Name: "Changed"}) },
			want:   []string{ErrDuplicateEvent},
		},
		{
			name:   "unknown state type",
			mutate: func(p *ast.Protocol) { p.StateVars[0].Type = "float" },
			want:   []string{ErrUnknownType},
		},
		{
			name:   "unknown return type",
			mutate: func(p *ast.Protocol) { p.Methods[2].Returns.Type = "uint" },
			want:   []string{ErrUnknownType},
		},
		{
			name:   "int default",
			mutate: func(p *ast.Protocol) { p.StateVars[0].Default = "ten" },
			want:   []string{ErrDefaultMismatch},
		},
		{
			name:   "bool default",
			mutate: func(p *ast.Protocol) { p.StateVars[1].Default = "yes" },
			want:   []string{ErrDefaultMismatch},
		},
		{
			name:   "missing name",
			mutate: func(p *ast.Protocol) { p.Name = "" },
			want:   []string{ErrEmptyName},
		},
		{
			name: "all reported together",
			mutate: func(p *ast.Protocol) {
				p.StateVars[0].Default = "x"
				p.Methods = append(p.Methods, ast.Method{Name: "inc"})
			},
			want: []string{ErrDefaultMismatch, ErrDuplicateMethod},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProtocol()
			tt.mutate(p)
			errs, _ := Validate(p)
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidate_NegativeIntDefault(t *testing.T) {
	p := validProtocol()
	p.StateVars[0].Default = "-5"
	errs, _ := Validate(p)
	assert.Empty(t, errs)
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ast.Protocol)
		want   string
	}{
		{"version", func(p *ast.Protocol) { p.Version = "latest" }, WarnVersionFormat},
		{"syntax", func(p *ast.Protocol) { p.Methods[0].Logic = []string{"state.count = = 1"} }, WarnStatementSyntax},
		{"unknown state", func(p *ast.Protocol) { p.Methods[0].Logic = []string{"state.total = 1"} }, WarnUnknownState},
		{"unknown param", func(p *ast.Protocol) { p.Methods[0].Logic = []string{"state.count = params.n"} }, WarnUnknownParam},
		{"unknown param in return", func(p *ast.Protocol) { p.Methods[2].Returns.Expr = "params.n" }, WarnUnknownParam},
		{"event arity", func(p *ast.Protocol) { p.Methods[0].Logic = []string{"emit Changed(1, 2)"} }, WarnEventArity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProtocol()
			tt.mutate(p)
			errs, warnings := Validate(p)
			assert.Empty(t, errs)
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.want, warnings[0].Code)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	err := ValidationErrors{
		{Field: "methods[1]", Message: `duplicate method "inc"`, Code: ErrDuplicateMethod},
		{Field: "state[0].type", Message: `unknown type "float"`, Code: ErrUnknownType, Line: 4},
	}
	assert.Equal(t, `2 validation error(s): [E102] methods[1]: duplicate method "inc"; [E104] line 4: state[0].type: unknown type "float"`, err.Error())
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(err[0]))
}

func TestValidationCodes_Gofmt(t *testing.T) {
	src, err := os.ReadFile("validate.go")
	require.NoError(t, err)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "validate.go", src, parser.ParseComments)
	require.NoError(t, err)

	var blocks int
	for _, decl := range file.Decls {
		gen, ok := decl.(*goast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		blocks++
		text := string(src[fset.Position(gen.Pos()).Offset:fset.Position(gen.End()).Offset])
		wrapped := "package compiler\n\n" + text + "\n"
		formatted, err := format.Source([]byte(wrapped))
		require.NoError(t, err)
		assert.Equal(t, wrapped, string(formatted))
	}
	assert.Positive(t, blocks)
}
