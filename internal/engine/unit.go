package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/logic"
)

// Unit is a loaded protocol ready to execute. Method bodies are parsed
// once here. A body that fails to parse is kept and faults when invoked.
type Unit struct {
	Name    string
	Version string
	Hash    string
	Doc     *ir.Document

	vars    []ast.StateVar
	types   map[string]string
	methods map[string]*method
	events  map[string]int
}

type method struct {
	name   string
	params []string
	body   []ast.Statement
	ret    ast.Expr
	// fault is set when a statement failed to parse.
	fault *RuntimeError
}

// Load prepares a JSON IR document for execution.
func Load(doc *ir.Document) (*Unit, error) {
	if doc == nil {
		return nil, fmt.Errorf("load: nil document")
	}
	proto, err := ir.Lift(doc)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	hash, err := ir.UnitHash(doc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", proto.Name, err)
	}

	u := &Unit{
		Name:    proto.Name,
		Version: proto.Version,
		Hash:    hash,
		Doc:     doc,
		vars:    proto.StateVars,
		types:   make(map[string]string, len(proto.StateVars)),
		methods: make(map[string]*method, len(proto.Methods)),
		events:  make(map[string]int, len(proto.Events)),
	}
	for _, sv := range proto.StateVars {
		u.types[sv.Name] = sv.Type
	}
	for _, ev := range proto.Events {
		u.events[ev.Name] = len(ev.Params)
	}
	for i := range proto.Methods {
		m := &proto.Methods[i]
		u.methods[m.Name] = compileMethod(m)
	}
	return u, nil
}

// LoadJSON validates, decodes and loads a JSON IR document.
func LoadJSON(name string, data []byte) (*Unit, error) {
	doc, err := ir.Load(name, data)
	if err != nil {
		return nil, err
	}
	return Load(doc)
}

func compileMethod(m *ast.Method) *method {
	cm := &method{name: m.Name, params: m.ParamNames()}
	for _, text := range m.Logic {
		if rest, ok := returnStatement(text); ok {
			cm.body = append(cm.body, &ast.Return{Value: returnExpr(rest)})
			continue
		}
		stmt, err := logic.ParseStatement(text)
		if err != nil {
			cm.fault = statementFault(text, err)
			cm.fault.Method = m.Name
			break
		}
		cm.body = append(cm.body, stmt)
	}
	if m.Returns != nil && m.Returns.Expr != "" {
		cm.ret = logic.ParseReturn(m.Returns.Expr)
	}
	return cm
}

// returnStatement recognizes "return" and "return expr" inside a body.
func returnStatement(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "return" {
		return "", true
	}
	if rest, ok := strings.CutPrefix(text, "return "); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func returnExpr(text string) ast.Expr {
	if text == "" {
		return nil
	}
	return logic.ParseReturn(text)
}

// statementFault classifies an unparsable statement. An assignment whose
// target is not state is an invalid target, anything else unsupported.
func statementFault(text string, err error) *RuntimeError {
	trimmed := strings.TrimSpace(text)
	if isAssignment(trimmed) && !strings.HasPrefix(trimmed, "state.") {
		re := faultf(ErrCodeInvalidTarget, "Invalid state assignment: %s", trimmed)
		re.Statement = trimmed
		return re
	}
	re := faultf(ErrCodeUnsupported, "Unsupported statement: %v", err)
	re.Statement = trimmed
	return re
}

// isAssignment reports whether text has a single '=' outside a comparison.
func isAssignment(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] != '=' {
			continue
		}
		prev := byte(0)
		if i > 0 {
			prev = text[i-1]
		}
		next := byte(0)
		if i+1 < len(text) {
			next = text[i+1]
		}
		if next == '=' {
			i++
			continue
		}
		if prev == '!' || prev == '<' || prev == '>' {
			continue
		}
		return true
	}
	return false
}

// InitializeState seeds every declared variable with its default.
func (u *Unit) InitializeState() *State {
	st := NewState(u.types)
	for _, sv := range u.vars {
		st.Set(Scalar(sv.Name), Str(sv.Default))
	}
	return st
}

// Restore initializes state and overlays a persisted snapshot.
func (u *Unit) Restore(snapshot map[string]string) *State {
	st := u.InitializeState()
	st.Restore(snapshot)
	return st
}

// HasMethod reports whether name is declared.
func (u *Unit) HasMethod(name string) bool {
	_, ok := u.methods[name]
	return ok
}

// Methods returns declared method names in sorted order.
func (u *Unit) Methods() []string {
	return slices.Sorted(maps.Keys(u.methods))
}
