package compiler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/logic"
)

// Validation codes (E100-E199).
const (
	// Errors (E101-E109)
	ErrDuplicateState  = "E101" // state variable declared twice
	ErrDuplicateMethod = "E102" // method declared twice
	ErrDuplicateParam  = "E103" // parameter declared twice in one signature
	ErrUnknownType     = "E104" // type is not int, string, bool, address or map
	ErrDefaultMismatch = "E105" // default literal does not fit the declared type
	ErrDuplicateEvent  = "E106" // event declared twice
	ErrEmptyName       = "E107" // protocol has no name

	// Warnings (E110-E119)
	WarnVersionFormat   = "E110" // version is not semver
	WarnStatementSyntax = "E111" // statement will fault when executed
	WarnUnknownState    = "E112" // statement references an undeclared state variable
	WarnUnknownParam    = "E113" // statement references an undeclared parameter
	WarnEventArity      = "E114" // emit argument count differs from the event declaration
)

// ValidationError is one problem found in a unit.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a batch of errors reported together.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(msgs, "; "))
}

// IsValidationError reports whether err is or wraps ValidationErrors or a
// single ValidationError.
func IsValidationError(err error) bool {
	var batch ValidationErrors
	var single ValidationError
	return errors.As(err, &batch) || errors.As(err, &single)
}

// Validate runs the semantic checks over a parsed unit. Errors and
// warnings are returned separately; neither list stops at the first hit.
func Validate(proto *ast.Protocol) (errs, warnings []ValidationError) {
	if strings.TrimSpace(proto.Name) == "" {
		errs = append(errs, ValidationError{Field: "protocol", Message: "protocol name is required", Code: ErrEmptyName})
	}

	if proto.Version != "" {
		if _, err := semver.NewVersion(proto.Version); err != nil {
			warnings = append(warnings, ValidationError{
				Field:   "version",
				Message: fmt.Sprintf("version %q is not a semantic version", proto.Version),
				Code:    WarnVersionFormat,
			})
		}
	}

	seen := make(map[string]bool)
	for i, sv := range proto.StateVars {
		field := fmt.Sprintf("state[%d]", i)
		if seen[sv.Name] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate state variable %q", sv.Name), Code: ErrDuplicateState})
		}
		seen[sv.Name] = true
		errs = append(errs, checkType(field+".type", sv.Type, false)...)
		if msg := defaultMismatch(sv.Type, sv.Default); msg != "" {
			errs = append(errs, ValidationError{Field: field + ".default", Message: fmt.Sprintf("%s: %s", sv.Name, msg), Code: ErrDefaultMismatch})
		}
	}

	seen = make(map[string]bool)
	for i, m := range proto.Methods {
		field := fmt.Sprintf("methods[%d]", i)
		if seen[m.Name] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate method %q", m.Name), Code: ErrDuplicateMethod})
		}
		seen[m.Name] = true
		errs = append(errs, checkParams(field, m.Name, m.Params)...)
		if m.Returns != nil {
			errs = append(errs, checkType(field+".returns.type", m.Returns.Type, true)...)
		}
		warnings = append(warnings, checkLogic(proto, field, &m)...)
	}

	seen = make(map[string]bool)
	for i, ev := range proto.Events {
		field := fmt.Sprintf("events[%d]", i)
		if seen[ev.Name] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate event %q", ev.Name), Code: ErrDuplicateEvent})
		}
		seen[ev.Name] = true
		errs = append(errs, checkParams(field, ev.Name, ev.Params)...)
	}
	return errs, warnings
}

func checkParams(field, owner string, params []ast.Param) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(params))
	for j, p := range params {
		pf := fmt.Sprintf("%s.params[%d]", field, j)
		if seen[p.Name] {
			errs = append(errs, ValidationError{Field: pf, Message: fmt.Sprintf("%s: duplicate parameter %q", owner, p.Name), Code: ErrDuplicateParam})
		}
		seen[p.Name] = true
		errs = append(errs, checkType(pf+".type", p.Type, true)...)
	}
	return errs
}

func checkType(field, typ string, optional bool) []ValidationError {
	if optional && typ == "" {
		return nil
	}
	if ast.IsDeclaredType(typ) {
		return nil
	}
	return []ValidationError{{Field: field, Message: fmt.Sprintf("unknown type %q", typ), Code: ErrUnknownType}}
}

var intLiteral = regexp.MustCompile(`^-?[0-9]+$`)

// defaultMismatch describes why def cannot seed a variable of type typ.
// An empty default always fits.
func defaultMismatch(typ, def string) string {
	if def == "" {
		return ""
	}
	switch typ {
	case ast.TypeInt:
		if !intLiteral.MatchString(def) {
			return fmt.Sprintf("default %q is not an integer", def)
		}
	case ast.TypeBool:
		if def != "true" && def != "false" {
			return fmt.Sprintf("default %q is not true or false", def)
		}
	}
	return ""
}

// checkLogic parses each statement once and reports references the
// runtime would resolve to nothing or fault on.
func checkLogic(proto *ast.Protocol, field string, m *ast.Method) []ValidationError {
	var warnings []ValidationError
	params := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		params[p.Name] = true
	}

	warn := func(f, code, format string, args ...any) {
		warnings = append(warnings, ValidationError{Field: f, Message: m.Name + ": " + fmt.Sprintf(format, args...), Code: code})
	}
	for k, text := range m.Logic {
		sf := fmt.Sprintf("%s.logic[%d]", field, k)
		stmt, err := logic.ParseStatement(text)
		if err != nil {
			warn(sf, WarnStatementSyntax, "%v", err)
			continue
		}
		walkStatement(stmt, func(e ast.Expr) {
			switch e := e.(type) {
			case *ast.StateRef:
				if _, ok := proto.StateVar(e.Name); !ok {
					warn(sf, WarnUnknownState, "undeclared state variable %q", e.Name)
				}
			case *ast.ParamRef:
				if !params[e.Name] {
					warn(sf, WarnUnknownParam, "undeclared parameter %q", e.Name)
				}
			}
		})
		if emit, ok := stmt.(*ast.Emit); ok {
			if ev, ok := proto.Event(emit.Event); ok && len(ev.Params) != len(emit.Args) {
				warn(sf, WarnEventArity, "event %s takes %d argument(s), emitted with %d", emit.Event, len(ev.Params), len(emit.Args))
			}
		}
	}
	if m.Returns != nil && m.Returns.Expr != "" {
		walkExpr(logic.ParseReturn(m.Returns.Expr), func(e ast.Expr) {
			if ref, ok := e.(*ast.ParamRef); ok && !params[ref.Name] {
				warn(field+".returns", WarnUnknownParam, "undeclared parameter %q", ref.Name)
			}
		})
	}
	return warnings
}

// walkStatement calls fn for every expression in stmt, depth first.
func walkStatement(stmt ast.Statement, fn func(ast.Expr)) {
	switch s := stmt.(type) {
	case *ast.Assign:
		walkExpr(s.Target, fn)
		walkExpr(s.Value, fn)
	case *ast.If:
		walkExpr(s.Cond, fn)
		walkStatement(s.Then, fn)
	case *ast.Emit:
		for _, a := range s.Args {
			walkExpr(a, fn)
		}
	case *ast.Call:
		walkExpr(s, fn)
	case *ast.Return:
		if s.Value != nil {
			walkExpr(s.Value, fn)
		}
	}
}

func walkExpr(expr ast.Expr, fn func(ast.Expr)) {
	fn(expr)
	switch e := expr.(type) {
	case *ast.StateRef:
		for _, idx := range e.Index {
			walkExpr(idx, fn)
		}
	case *ast.BinaryOp:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case *ast.Call:
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	}
}
