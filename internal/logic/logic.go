// Package logic parses method statement text into the statement AST.
//
// The statement language is deliberately small:
//
//	stmt    := if | emit | call | assign
//	if      := "if" "(" operand CMP operand ")" "{" assign ";"? "}"
//	emit    := "emit" NAME "(" (operand ("," operand)*)? ")"
//	call    := ID "." NAME "(" args ")"
//	assign  := stateref "=" (call | operand (ARITH operand)?)
//	operand := stateref | "params" "." NAME | "ctx" "." NAME | literal
//	stateref:= "state" "." NAME ("[" operand "]")*
//
// An expression carries at most one operator. Anything left over after a
// complete statement is a syntax error.
package logic

import (
	"errors"
	"fmt"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/lexer"
)

// SyntaxError reports a statement that does not match any supported shape.
type SyntaxError struct {
	Text    string
	Pos     lexer.Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("statement %q at column %d: %s", e.Text, e.Pos.Column, e.Message)
}

// IsSyntaxError reports whether err is or wraps a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// ParseStatement parses a single statement.
func ParseStatement(text string) (ast.Statement, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ParseStatements parses every statement of a method body, stopping at the
// first failure.
func ParseStatements(texts []string) ([]ast.Statement, error) {
	stmts := make([]ast.Statement, 0, len(texts))
	for _, text := range texts {
		stmt, err := ParseStatement(text)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// ParseExpr parses an expression: an operand, or two operands joined by
// one arithmetic or comparison operator.
func ParseExpr(text string) (ast.Expr, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	expr, err := p.expr(true)
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseReturn parses a return expression. Text that is not a valid
// expression is returned verbatim as an unquoted literal.
func ParseReturn(text string) ast.Expr {
	expr, err := ParseExpr(text)
	if err != nil {
		return &ast.Literal{Value: text}
	}
	return expr
}

type parser struct {
	text string
	toks []lexer.Token
	pos  int
}

func newParser(text string) (*parser, error) {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, &SyntaxError{Text: text, Pos: le.Pos, Message: le.Message}
		}
		return nil, err
	}
	p := &parser{text: text, toks: toks}
	if p.cur().Type == lexer.TokenEOF {
		return nil, p.errorf("empty statement")
	}
	return p, nil
}

func (p *parser) statement() (ast.Statement, error) {
	tok := p.cur()
	switch {
	case tok.Is("if") && p.peek().Type == lexer.TokenLParen:
		return p.ifStmt()
	case tok.Is("emit") && p.peek().Type == lexer.TokenIdent:
		return p.emitStmt()
	case tok.Is("state"):
		return p.assign()
	case p.isCallStart():
		return p.call()
	}
	return nil, p.errorf("unsupported statement starting with %s", tok)
}

func (p *parser) ifStmt() (ast.Statement, error) {
	p.next()
	p.next()
	cond, err := p.expr(true)
	if err != nil {
		return nil, err
	}
	cmp, ok := cond.(*ast.BinaryOp)
	if !ok || !cmp.IsComparison() {
		return nil, p.errorf("if condition must be a comparison")
	}
	if err := p.expect(lexer.TokenRParen, "\")\""); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenLBrace, "\"{\""); err != nil {
		return nil, err
	}
	if !p.cur().Is("state") {
		return nil, p.errorf("if body must be a single state assignment, got %s", p.cur())
	}
	body, err := p.assign()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == lexer.TokenSemi {
		p.next()
	}
	if err := p.expect(lexer.TokenRBrace, "\"}\" closing if body"); err != nil {
		return nil, err
	}
	return &ast.If{Cond: cmp, Then: body}, nil
}

func (p *parser) emitStmt() (ast.Statement, error) {
	p.next()
	name := p.cur().Literal
	p.next()
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	return &ast.Emit{Event: name, Args: args}, nil
}

func (p *parser) assign() (ast.Statement, error) {
	target, err := p.stateRef()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenAssign, "\"=\""); err != nil {
		return nil, err
	}
	if p.isCallStart() {
		call, err := p.call()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Target: target, Value: call.(*ast.Call)}, nil
	}
	value, err := p.expr(false)
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Target: target, Value: value}, nil
}

func (p *parser) isCallStart() bool {
	tok := p.cur()
	if tok.Type != lexer.TokenIdent || tok.Literal == "params" || tok.Literal == "ctx" {
		return false
	}
	return p.peek().Type == lexer.TokenDot
}

func (p *parser) call() (ast.Statement, error) {
	alias := p.cur().Literal
	p.next()
	p.next()
	method, err := p.name("method name")
	if err != nil {
		return nil, err
	}
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	return &ast.Call{Alias: alias, Method: method, Args: args}, nil
}

// args parses "(" (operand ("," operand)*)? ")".
func (p *parser) args() ([]ast.Expr, error) {
	if err := p.expect(lexer.TokenLParen, "\"(\""); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur().Type != lexer.TokenRParen {
		if len(args) > 0 {
			if err := p.expect(lexer.TokenComma, "\",\""); err != nil {
				return nil, err
			}
		}
		arg, err := p.operand()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.next()
	return args, nil
}

// expr parses an operand optionally followed by one operator and a second
// operand. Comparisons are only accepted when allowCompare is set.
func (p *parser) expr(allowCompare bool) (ast.Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	op := p.cur()
	if !op.Type.IsArithmetic() && !(allowCompare && op.Type.IsComparison()) {
		return left, nil
	}
	p.next()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryOp{Op: op.Literal, Left: left, Right: right}, nil
}

func (p *parser) operand() (ast.Expr, error) {
	tok := p.cur()
	switch {
	case tok.Is("state"):
		return p.stateRef()
	case tok.Is("params") || tok.Is("ctx"):
		p.next()
		if err := p.expect(lexer.TokenDot, "\".\""); err != nil {
			return nil, err
		}
		name, err := p.name("field name")
		if err != nil {
			return nil, err
		}
		if tok.Literal == "params" {
			return &ast.ParamRef{Name: name}, nil
		}
		return &ast.CtxRef{Name: name}, nil
	case tok.Type == lexer.TokenString:
		p.next()
		return &ast.Literal{Value: tok.Value, Quoted: true}, nil
	case tok.Type == lexer.TokenInt:
		p.next()
		return &ast.Literal{Value: tok.Literal}, nil
	case tok.Type == lexer.TokenMinus && p.peek().Type == lexer.TokenInt:
		p.next()
		lit := "-" + p.cur().Literal
		p.next()
		return &ast.Literal{Value: lit}, nil
	case tok.Is("true"), tok.Is("false"):
		p.next()
		return &ast.Literal{Value: tok.Literal}, nil
	case tok.Type == lexer.TokenIdent && p.peek().Type != lexer.TokenDot:
		p.next()
		return &ast.Literal{Value: tok.Literal}, nil
	}
	return nil, p.errorf("expected operand, got %s", tok)
}

func (p *parser) stateRef() (*ast.StateRef, error) {
	if !p.cur().Is("state") {
		return nil, p.errorf("expected state reference, got %s", p.cur())
	}
	p.next()
	if err := p.expect(lexer.TokenDot, "\".\" after state"); err != nil {
		return nil, err
	}
	name, err := p.name("state variable name")
	if err != nil {
		return nil, err
	}
	ref := &ast.StateRef{Name: name}
	for p.cur().Type == lexer.TokenLBracket {
		p.next()
		idx, err := p.operand()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenRBracket, "\"]\""); err != nil {
			return nil, err
		}
		ref.Index = append(ref.Index, idx)
	}
	return ref, nil
}

func (p *parser) name(what string) (string, error) {
	tok := p.cur()
	if tok.Type != lexer.TokenIdent && tok.Type != lexer.TokenKeyword {
		return "", p.errorf("expected %s, got %s", what, tok)
	}
	p.next()
	return tok.Literal, nil
}

func (p *parser) end() error {
	if p.cur().Type != lexer.TokenEOF {
		return p.errorf("unexpected %s after end of statement", p.cur())
	}
	return nil
}

func (p *parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *parser) expect(typ lexer.TokenType, what string) error {
	if p.cur().Type != typ {
		return p.errorf("expected %s, got %s", what, p.cur())
	}
	p.next()
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Text: p.text, Pos: p.cur().Pos, Message: fmt.Sprintf(format, args...)}
}
