// Package parser builds an ast.Protocol from Cardity source text.
//
// The grammar is parsed by recursive descent with one token of lookahead:
//
//	protocol    := "protocol" ID "{" decl* "}"
//	decl        := version | owner | import | using | state | method | event
//	version     := "version" ":" STRING ";"
//	owner       := "owner" ":" STRING ";"
//	import      := "import" ID ("from" STRING)? ";"
//	using       := "using" ID ("as" ID)? ";"
//	state       := "state" "{" (NAME ":" TYPE ("=" literal)? ";")* "}"
//	method      := "method" NAME "(" params? ")" "{" statements "}" returns?
//	returns     := "returns" ":" TYPE? expr ";"
//	event       := "event" NAME "{" (NAME ":" TYPE ";")* "}"
//	             | "event" NAME "(" params? ")" ";"?
//
// Method bodies are captured as raw statement text. Malformed top-level
// declarations other than state and method blocks are skipped with a
// Diagnostic; errors inside state or method blocks are fatal.
package parser

import (
	"fmt"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/lexer"
	"github.com/cardity-org/cardity-core/internal/logic"
)

// Parser consumes a token slice produced by the lexer.
type Parser struct {
	toks  []lexer.Token
	pos   int
	diags []Diagnostic
}

// Parse tokenizes and parses src.
func Parse(src string) (*ast.Protocol, []Diagnostic, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, nil, err
	}
	p := New(toks)
	proto, err := p.ParseProtocol()
	return proto, p.Diagnostics(), err
}

// New creates a parser over toks. The slice must end with TokenEOF.
func New(toks []lexer.Token) *Parser {
	if len(toks) == 0 || toks[len(toks)-1].Type != lexer.TokenEOF {
		toks = append(toks, lexer.Token{Type: lexer.TokenEOF})
	}
	return &Parser{toks: toks}
}

// Diagnostics returns the warnings collected so far.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diags
}

// ParseProtocol parses one protocol unit.
func (p *Parser) ParseProtocol() (*ast.Protocol, error) {
	for !p.cur().Is("protocol") {
		if p.cur().Type == lexer.TokenEOF {
			return nil, p.errorf(p.cur(), "expected \"protocol\", got %s", p.cur())
		}
		p.warnf(p.cur(), "skipping unexpected %s before protocol", p.cur())
		p.next()
	}
	p.next()

	name, err := p.expect(lexer.TokenIdent, "protocol name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenLBrace, "\"{\""); err != nil {
		return nil, err
	}

	proto := &ast.Protocol{Name: name.Literal, Version: ast.DefaultVersion}
	for p.cur().Type != lexer.TokenRBrace {
		if p.cur().Type == lexer.TokenEOF {
			return nil, p.errorf(p.cur(), "expected \"}\" to close protocol %s", proto.Name)
		}
		if err := p.parseDecl(proto); err != nil {
			return nil, err
		}
	}
	p.next()

	for p.cur().Type != lexer.TokenEOF {
		p.warnf(p.cur(), "skipping unexpected %s after protocol", p.cur())
		p.next()
	}
	return proto, nil
}

func (p *Parser) parseDecl(proto *ast.Protocol) error {
	tok := p.cur()
	switch {
	case tok.Is("state"):
		return p.parseState(proto)
	case tok.Is("method"):
		return p.parseMethod(proto)
	case tok.Is("version"):
		p.tolerate(func() error { return p.parseVersion(proto) })
	case tok.Is("owner"):
		p.tolerate(func() error { return p.parseOwner(proto) })
	case tok.Is("import"):
		p.tolerate(func() error { return p.parseImport(proto) })
	case tok.Is("using"):
		p.tolerate(func() error { return p.parseUsing(proto) })
	case tok.Is("event"):
		p.tolerate(func() error { return p.parseEvent(proto) })
	default:
		p.warnf(tok, "skipping unexpected %s", tok)
		p.next()
	}
	return nil
}

// tolerate runs a non-critical declaration parser. On failure it records a
// warning and resynchronises at the next declaration boundary.
func (p *Parser) tolerate(fn func() error) {
	start := p.pos
	if err := fn(); err != nil {
		if pe, ok := err.(*ParseError); ok {
			p.diags = append(p.diags, Diagnostic{Pos: pe.Pos, Message: pe.Message + " (declaration skipped)"})
		} else {
			p.warnf(p.toks[start], "%v (declaration skipped)", err)
		}
		p.pos = start + 1
		p.skipDecl()
	}
}

// skipDecl advances past the current declaration: through the next
// top-level ";" or balanced "{...}" block, stopping before the protocol's
// closing brace or the next declaration keyword.
func (p *Parser) skipDecl() {
	for {
		tok := p.cur()
		switch {
		case tok.Type == lexer.TokenEOF, tok.Type == lexer.TokenRBrace:
			return
		case tok.Type == lexer.TokenSemi:
			p.next()
			return
		case tok.Type == lexer.TokenLBrace:
			p.skipBlock()
			if p.cur().Type == lexer.TokenSemi {
				p.next()
			}
			return
		case isDeclKeyword(tok):
			return
		}
		p.next()
	}
}

func (p *Parser) skipBlock() {
	depth := 0
	for p.cur().Type != lexer.TokenEOF {
		switch p.cur().Type {
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			depth--
		}
		p.next()
		if depth == 0 {
			return
		}
	}
}

func isDeclKeyword(tok lexer.Token) bool {
	if tok.Type != lexer.TokenKeyword {
		return false
	}
	switch tok.Literal {
	case "state", "method", "event", "version", "owner", "import", "using":
		return true
	}
	return false
}

func (p *Parser) parseVersion(proto *ast.Protocol) error {
	p.next()
	val, err := p.parseHeaderValue("version")
	if err != nil {
		return err
	}
	proto.Version = val
	return nil
}

func (p *Parser) parseOwner(proto *ast.Protocol) error {
	p.next()
	val, err := p.parseHeaderValue("owner")
	if err != nil {
		return err
	}
	proto.Owner = val
	return nil
}

// parseHeaderValue parses `":" STRING ";"` after version or owner.
func (p *Parser) parseHeaderValue(what string) (string, error) {
	if _, err := p.expect(lexer.TokenColon, "\":\" after "+what); err != nil {
		return "", err
	}
	val, err := p.expect(lexer.TokenString, what+" string")
	if err != nil {
		return "", err
	}
	if _, err := p.expect(lexer.TokenSemi, "\";\""); err != nil {
		return "", err
	}
	return val.Value, nil
}

func (p *Parser) parseImport(proto *ast.Protocol) error {
	p.next()
	mod, err := p.expect(lexer.TokenIdent, "module name")
	if err != nil {
		return err
	}
	if p.cur().Is("from") {
		p.next()
		if _, err := p.expect(lexer.TokenString, "import path"); err != nil {
			return err
		}
	}
	if _, err := p.expect(lexer.TokenSemi, "\";\""); err != nil {
		return err
	}
	proto.Imports = append(proto.Imports, mod.Literal)
	return nil
}

func (p *Parser) parseUsing(proto *ast.Protocol) error {
	p.next()
	mod, err := p.expect(lexer.TokenIdent, "module name")
	if err != nil {
		return err
	}
	alias := mod.Literal
	if p.cur().Is("as") {
		p.next()
		tok, err := p.expect(lexer.TokenIdent, "alias")
		if err != nil {
			return err
		}
		alias = tok.Literal
	}
	if _, err := p.expect(lexer.TokenSemi, "\";\""); err != nil {
		return err
	}
	proto.Using = append(proto.Using, ast.UsingAlias{Module: mod.Literal, Alias: alias})
	return nil
}

func (p *Parser) parseState(proto *ast.Protocol) error {
	p.next()
	if _, err := p.expect(lexer.TokenLBrace, "\"{\" after state"); err != nil {
		return err
	}
	for p.cur().Type != lexer.TokenRBrace {
		name, err := p.expectName("state variable name")
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenColon, "\":\" after "+name.Literal); err != nil {
			return err
		}
		typ, err := p.parseType()
		if err != nil {
			return err
		}
		sv := ast.StateVar{Name: name.Literal, Type: typ}
		if p.cur().Type == lexer.TokenAssign {
			p.next()
			if sv.Default, err = p.parseLiteral(); err != nil {
				return err
			}
		}
		if _, err := p.expect(lexer.TokenSemi, "\";\" after state variable"); err != nil {
			return err
		}
		proto.StateVars = append(proto.StateVars, sv)
	}
	p.next()
	return nil
}

// parseType parses a declared type. map<K, V> is recorded as map.
func (p *Parser) parseType() (string, error) {
	tok := p.cur()
	if tok.Type != lexer.TokenKeyword || !ast.IsDeclaredType(tok.Literal) {
		return "", p.errorf(tok, "expected type, got %s", tok)
	}
	p.next()
	if tok.Literal == ast.TypeMap && p.cur().Type == lexer.TokenLt {
		p.next()
		if _, err := p.parseType(); err != nil {
			return "", err
		}
		if _, err := p.expect(lexer.TokenComma, "\",\" in map type"); err != nil {
			return "", err
		}
		if _, err := p.parseType(); err != nil {
			return "", err
		}
		if _, err := p.expect(lexer.TokenGt, "\">\" closing map type"); err != nil {
			return "", err
		}
	}
	return tok.Literal, nil
}

// parseLiteral parses a default value: an optionally negated integer, a
// string (stored unquoted), true, false, or a bare identifier.
func (p *Parser) parseLiteral() (string, error) {
	tok := p.cur()
	switch {
	case tok.Type == lexer.TokenMinus && p.peek().Type == lexer.TokenInt:
		p.next()
		lit := "-" + p.cur().Literal
		p.next()
		return lit, nil
	case tok.Type == lexer.TokenInt, tok.Type == lexer.TokenIdent,
		tok.Is("true"), tok.Is("false"):
		p.next()
		return tok.Literal, nil
	case tok.Type == lexer.TokenString:
		p.next()
		return tok.Value, nil
	}
	return "", p.errorf(tok, "expected literal, got %s", tok)
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(lexer.TokenLParen, "\"(\""); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.cur().Type != lexer.TokenRParen {
		if len(params) > 0 {
			if _, err := p.expect(lexer.TokenComma, "\",\" between parameters"); err != nil {
				return nil, err
			}
		}
		name, err := p.expectName("parameter name")
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: name.Literal}
		if p.cur().Type == lexer.TokenColon {
			p.next()
			if param.Type, err = p.parseType(); err != nil {
				return nil, err
			}
		}
		params = append(params, param)
	}
	p.next()
	return params, nil
}

func (p *Parser) parseMethod(proto *ast.Protocol) error {
	p.next()
	name, err := p.expectName("method name")
	if err != nil {
		return err
	}
	m := ast.Method{Name: name.Literal}
	if m.Params, err = p.parseParams(); err != nil {
		return err
	}
	open, err := p.expect(lexer.TokenLBrace, "\"{\" opening method body")
	if err != nil {
		return err
	}
	stmts, err := p.captureBody(open)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		ret, isReturn, err := p.returnDecl(stmt)
		if err != nil {
			return err
		}
		if isReturn {
			if m.Returns != nil {
				p.warnf(stmt[0], "method %s declares more than one return; the last one wins", m.Name)
			}
			m.Returns = ret
			continue
		}
		m.Logic = append(m.Logic, logic.Render(stmt))
	}

	if p.cur().Is("returns") {
		var stmt []lexer.Token
		for p.cur().Type != lexer.TokenSemi {
			if p.cur().Type == lexer.TokenEOF || p.cur().Type == lexer.TokenRBrace {
				return p.errorf(p.cur(), "expected \";\" after returns declaration, got %s", p.cur())
			}
			stmt = append(stmt, p.cur())
			p.next()
		}
		p.next()
		if m.Returns, _, err = p.returnDecl(stmt); err != nil {
			return err
		}
	}

	proto.Methods = append(proto.Methods, m)
	return nil
}

// captureBody collects brace-balanced tokens up to the body's closing
// brace and splits them into statements at top-level ";" or at a "}"
// that closes a nested block.
func (p *Parser) captureBody(open lexer.Token) ([][]lexer.Token, error) {
	var stmts [][]lexer.Token
	var cur []lexer.Token
	depth := 0
	for {
		tok := p.cur()
		switch tok.Type {
		case lexer.TokenEOF:
			return nil, p.errorf(open, "unterminated method body")
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			if depth == 0 {
				p.next()
				if len(cur) > 0 {
					stmts = append(stmts, cur)
				}
				return stmts, nil
			}
			depth--
			if depth == 0 {
				cur = append(cur, tok)
				stmts = append(stmts, cur)
				cur = nil
				p.next()
				if p.cur().Type == lexer.TokenSemi {
					p.next()
				}
				continue
			}
		case lexer.TokenSemi:
			if depth == 0 {
				if len(cur) > 0 {
					stmts = append(stmts, cur)
				}
				cur = nil
				p.next()
				continue
			}
		}
		cur = append(cur, tok)
		p.next()
	}
}

// returnDecl recognises `return expr` and `returns : TYPE? expr`.
func (p *Parser) returnDecl(stmt []lexer.Token) (*ast.Returns, bool, error) {
	if len(stmt) == 0 {
		return nil, false, nil
	}
	head := stmt[0]
	switch {
	case head.Is("return"):
		return &ast.Returns{Expr: logic.Render(stmt[1:])}, true, nil
	case head.Is("returns"):
		if len(stmt) < 2 || stmt[1].Type != lexer.TokenColon {
			return nil, false, p.errorf(head, "expected \":\" after returns")
		}
		rest := stmt[2:]
		ret := &ast.Returns{}
		if len(rest) > 0 && rest[0].Type == lexer.TokenKeyword && ast.IsDeclaredType(rest[0].Literal) {
			ret.Type = rest[0].Literal
			rest = rest[1:]
		}
		ret.Expr = logic.Render(rest)
		return ret, true, nil
	}
	return nil, false, nil
}

func (p *Parser) parseEvent(proto *ast.Protocol) error {
	evTok := p.cur()
	p.next()
	if p.cur().Type == lexer.TokenLBrace {
		p.warnf(evTok, "skipping anonymous event block")
		p.skipBlock()
		return nil
	}
	name, err := p.expectName("event name")
	if err != nil {
		return err
	}
	ev := ast.Event{Name: name.Literal}

	switch p.cur().Type {
	case lexer.TokenLParen:
		if ev.Params, err = p.parseParams(); err != nil {
			return err
		}
		if p.cur().Type == lexer.TokenSemi {
			p.next()
		}
	case lexer.TokenLBrace:
		p.next()
		for p.cur().Type != lexer.TokenRBrace {
			field, err := p.expectName("event field name")
			if err != nil {
				return err
			}
			if _, err := p.expect(lexer.TokenColon, "\":\" after "+field.Literal); err != nil {
				return err
			}
			typ, err := p.parseType()
			if err != nil {
				return err
			}
			if p.cur().Type == lexer.TokenSemi || p.cur().Type == lexer.TokenComma {
				p.next()
			} else if p.cur().Type != lexer.TokenRBrace {
				return p.errorf(p.cur(), "expected \";\" after event field, got %s", p.cur())
			}
			ev.Params = append(ev.Params, ast.Param{Name: field.Literal, Type: typ})
		}
		p.next()
	default:
		return p.errorf(p.cur(), "expected \"{\" or \"(\" after event %s, got %s", ev.Name, p.cur())
	}

	proto.Events = append(proto.Events, ev)
	return nil
}

func (p *Parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *Parser) expect(typ lexer.TokenType, what string) (lexer.Token, error) {
	tok := p.cur()
	if tok.Type != typ {
		return tok, p.errorf(tok, "expected %s, got %s", what, tok)
	}
	p.next()
	return tok, nil
}

// expectName accepts an identifier or a keyword used as a name, so that
// fields such as "owner" or "from" can be declared.
func (p *Parser) expectName(what string) (lexer.Token, error) {
	tok := p.cur()
	if tok.Type != lexer.TokenIdent && tok.Type != lexer.TokenKeyword {
		return tok, p.errorf(tok, "expected %s, got %s", what, tok)
	}
	p.next()
	return tok, nil
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) error {
	return &ParseError{Pos: tok.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) warnf(tok lexer.Token, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{Pos: tok.Pos, Message: fmt.Sprintf(format, args...)})
}
