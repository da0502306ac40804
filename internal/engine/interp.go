package engine

import (
	"math"

	"github.com/cardity-org/cardity-core/internal/ast"
)

// ResultOK is returned by methods without a return declaration.
const ResultOK = "ok"

// EventLogEntry is one emitted event.
type EventLogEntry struct {
	Name   string
	Values []string
}

// EventLog is the append-only log of one or more invocations.
type EventLog []EventLogEntry

func (l *EventLog) append(name string, values []string) {
	*l = append(*l, EventLogEntry{Name: name, Values: values})
}

// Invoke executes method against st, appending emitted events to log.
// log may be nil when events are not needed. args are positional; ctx is
// read-only and may be nil.
//
// Faults are returned as *RuntimeError. Assignments made before a fault
// are not undone.
func Invoke(u *Unit, st *State, log *EventLog, method string, args []string, ctx map[string]string) (string, error) {
	m, ok := u.methods[method]
	if !ok {
		return "", faultf(ErrCodeUnknownMethod, "Method not found: %s", method)
	}
	if m.fault != nil {
		fault := *m.fault
		return "", &fault
	}
	if log == nil {
		log = &EventLog{}
	}

	fr := &frame{unit: u, method: m, state: st, log: log, args: args, ctx: ctx}
	for _, stmt := range m.body {
		if ret, ok := stmt.(*ast.Return); ok {
			return fr.result(ret.Value)
		}
		if err := fr.exec(stmt); err != nil {
			return "", fr.wrap(err, stmt)
		}
	}
	if m.ret != nil {
		return fr.result(m.ret)
	}
	return ResultOK, nil
}

// frame carries one invocation's inputs.
type frame struct {
	unit   *Unit
	method *method
	state  *State
	log    *EventLog
	args   []string
	ctx    map[string]string
}

func (f *frame) wrap(err error, stmt ast.Statement) error {
	if re, ok := err.(*RuntimeError); ok {
		re.Method = f.method.name
		if re.Statement == "" {
			re.Statement = stmt.String()
		}
	}
	return err
}

func (f *frame) exec(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Assign:
		key, err := f.key(s.Target)
		if err != nil {
			return err
		}
		v, err := f.eval(s.Value)
		if err != nil {
			return err
		}
		f.state.Set(key, v)
		return nil

	case *ast.If:
		cond, err := f.eval(s.Cond)
		if err != nil {
			return err
		}
		if cond.Kind() == KindBool && cond.b {
			return f.exec(s.Then)
		}
		return nil

	case *ast.Emit:
		values := make([]string, len(s.Args))
		for i, arg := range s.Args {
			v, err := f.eval(arg)
			if err != nil {
				return err
			}
			values[i] = v.String()
		}
		if want, declared := f.unit.events[s.Event]; declared && want != len(values) {
			return faultf(ErrCodeEventArity, "Event %s expects %d values, got %d", s.Event, want, len(values))
		}
		f.log.append(s.Event, values)
		return nil

	case *ast.Call:
		return faultf(ErrCodeUnsupported, "Cross-module call %s.%s is not executable", s.Alias, s.Method)
	}
	return faultf(ErrCodeUnsupported, "Unsupported statement: %s", stmt)
}

// result evaluates a return expression. Comparisons yield "true"/"false".
func (f *frame) result(expr ast.Expr) (string, error) {
	if expr == nil {
		return ResultOK, nil
	}
	v, err := f.eval(expr)
	if err != nil {
		re, ok := err.(*RuntimeError)
		if ok {
			re.Method = f.method.name
		}
		return "", err
	}
	return v.String(), nil
}

// key resolves a state reference to its slot.
func (f *frame) key(ref *ast.StateRef) (StateKey, error) {
	if len(ref.Index) == 0 {
		return Scalar(ref.Name), nil
	}
	index := make([]string, len(ref.Index))
	for i, idx := range ref.Index {
		v, err := f.eval(idx)
		if err != nil {
			return StateKey{}, err
		}
		index[i] = v.String()
	}
	return Indexed(ref.Name, index...), nil
}

func (f *frame) eval(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return Str(e.Value), nil

	case *ast.StateRef:
		key, err := f.key(e)
		if err != nil {
			return Value{}, err
		}
		if v, ok := f.state.Get(key); ok {
			return v, nil
		}
		// Unseen map entries read as zero, unset scalars as empty.
		if len(key.Index) > 0 {
			return Int(0), nil
		}
		return Str(""), nil

	case *ast.ParamRef:
		pos := -1
		for i, name := range f.method.params {
			if name == e.Name {
				pos = i
				break
			}
		}
		if pos < 0 {
			return Value{}, faultf(ErrCodeUnknownParameter, "Unknown parameter: %s", e.Name)
		}
		if pos >= len(f.args) {
			return Value{}, faultf(ErrCodeMissingArgument, "Missing argument for parameter: %s", e.Name)
		}
		return Str(f.args[pos]), nil

	case *ast.CtxRef:
		return Str(f.ctx[e.Name]), nil

	case *ast.BinaryOp:
		return f.binary(e)

	case *ast.Call:
		return Value{}, faultf(ErrCodeUnsupported, "Cross-module call %s.%s is not executable", e.Alias, e.Method)
	}
	return Value{}, faultf(ErrCodeUnsupported, "Unsupported expression: %v", expr)
}

func (f *frame) binary(e *ast.BinaryOp) (Value, error) {
	left, err := f.eval(e.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := f.eval(e.Right)
	if err != nil {
		return Value{}, err
	}

	switch e.Op {
	case "==":
		return Bool(left.Equal(right)), nil
	case "!=":
		return Bool(!left.Equal(right)), nil
	}

	a, ok := left.Int()
	if !ok {
		return Value{}, faultf(ErrCodeInvalidNumber, "Invalid number: %q", left.String())
	}
	b, ok := right.Int()
	if !ok {
		return Value{}, faultf(ErrCodeInvalidNumber, "Invalid number: %q", right.String())
	}

	switch e.Op {
	case "+", "-", "*", "/":
		c, ok := arith(e.Op, a, b)
		if !ok {
			return Value{}, faultf(ErrCodeInvalidNumber, "Integer overflow: %d %s %d", a, e.Op, b)
		}
		return Int(c), nil
	case ">":
		return Bool(a > b), nil
	case "<":
		return Bool(a < b), nil
	case ">=":
		return Bool(a >= b), nil
	case "<=":
		return Bool(a <= b), nil
	}
	return Value{}, faultf(ErrCodeUnsupported, "Unsupported operator: %s", e.Op)
}

// arith applies an arithmetic operator, reporting false when the result
// does not fit in an int64. Division by zero yields 0.
func arith(op string, a, b int64) (int64, bool) {
	switch op {
	case "+":
		c := a + b
		return c, (c > a) == (b > 0)
	case "-":
		c := a - b
		return c, (c < a) == (b > 0)
	case "*":
		if a == 0 || b == 0 {
			return 0, true
		}
		c := a * b
		if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return c, true
	case "/":
		if b == 0 {
			return 0, true
		}
		if a == math.MinInt64 && b == -1 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}
