package ast

import (
	"strconv"
	"strings"
)

// Statement is one executable method statement.
type Statement interface {
	String() string
	iamaStatement()
}

// Expr is an operand or a single binary operation over two operands.
type Expr interface {
	String() string
	iamaExpr()
}

// Assign writes Value to the state slot named by Target.
type Assign struct {
	Target *StateRef
	Value  Expr
}

func (*Assign) iamaStatement() {}

func (s *Assign) String() string {
	return s.Target.String() + " = " + s.Value.String()
}

// If executes Then when Cond holds. Conditionals do not nest.
type If struct {
	Cond *BinaryOp
	Then Statement
}

func (*If) iamaStatement() {}

func (s *If) String() string {
	return "if (" + s.Cond.String() + ") { " + s.Then.String() + "; }"
}

// Emit appends an event log entry.
type Emit struct {
	Event string
	Args  []Expr
}

func (*Emit) iamaStatement() {}

func (s *Emit) String() string {
	return "emit " + s.Event + "(" + joinExprs(s.Args) + ")"
}

// Return yields the method result.
type Return struct {
	Value Expr
}

func (*Return) iamaStatement() {}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}

// Call is a call into another module, alias.method(args). It is both a
// statement and the right-hand side of an assignment.
type Call struct {
	Alias  string
	Method string
	Args   []Expr
}

func (*Call) iamaStatement() {}
func (*Call) iamaExpr()      {}

func (c *Call) String() string {
	return c.Alias + "." + c.Method + "(" + joinExprs(c.Args) + ")"
}

// Literal is constant text. Quoted records whether it was written as a
// string literal.
type Literal struct {
	Value  string
	Quoted bool
}

func (*Literal) iamaExpr() {}

func (e *Literal) String() string {
	if e.Quoted {
		return strconv.Quote(e.Value)
	}
	return e.Value
}

// StateRef reads state.Name, optionally indexed: state.Name[i][j].
type StateRef struct {
	Name  string
	Index []Expr
}

func (*StateRef) iamaExpr() {}

func (e *StateRef) String() string {
	var b strings.Builder
	b.WriteString("state.")
	b.WriteString(e.Name)
	for _, idx := range e.Index {
		b.WriteString("[")
		b.WriteString(idx.String())
		b.WriteString("]")
	}
	return b.String()
}

// ParamRef reads params.Name.
type ParamRef struct {
	Name string
}

func (*ParamRef) iamaExpr() {}

func (e *ParamRef) String() string { return "params." + e.Name }

// CtxRef reads ctx.Name from the execution context.
type CtxRef struct {
	Name string
}

func (*CtxRef) iamaExpr() {}

func (e *CtxRef) String() string { return "ctx." + e.Name }

// BinaryOp is Left Op Right where Op is arithmetic (+ - * /) or a
// comparison (== != > < >= <=).
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryOp) iamaExpr() {}

func (e *BinaryOp) String() string {
	return e.Left.String() + " " + e.Op + " " + e.Right.String()
}

// IsComparison reports whether the operator yields a boolean.
func (e *BinaryOp) IsComparison() bool {
	switch e.Op {
	case "==", "!=", ">", "<", ">=", "<=":
		return true
	}
	return false
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
