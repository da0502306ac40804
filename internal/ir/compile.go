package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/logic"
)

// Compile lowers a parsed protocol into its JSON IR. It is a pure function
// of its input.
func Compile(proto *ast.Protocol) *Document {
	doc := &Document{
		P:        ProtocolTag,
		Op:       OpDeploy,
		Protocol: proto.Name,
		Version:  proto.Version,
		CPL: CPL{
			Owner:   proto.Owner,
			State:   make(map[string]StateVar, len(proto.StateVars)),
			Methods: make(map[string]Method, len(proto.Methods)),
		},
	}
	if doc.Version == "" {
		doc.Version = ast.DefaultVersion
	}
	if len(proto.Imports) > 0 {
		doc.CPL.Imports = append([]string(nil), proto.Imports...)
	}
	for _, u := range proto.Using {
		doc.CPL.Using = append(doc.CPL.Using, Using{Module: u.Module, Alias: u.Alias})
	}

	for _, sv := range proto.StateVars {
		doc.CPL.State[sv.Name] = StateVar{Type: sv.Type, Default: Scalar(sv.Default)}
	}

	for _, m := range proto.Methods {
		im := Method{
			Params: m.ParamNames(),
			Logic:  Logic(append([]string(nil), m.Logic...)),
		}
		if m.HasParamTypes() {
			im.ParamTypes = make([]string, len(m.Params))
			for i, p := range m.Params {
				im.ParamTypes[i] = p.Type
				if p.Type == "" {
					im.ParamTypes[i] = ast.TypeString
				}
			}
		}
		if m.Returns != nil {
			im.Returns = &Returns{Type: m.Returns.Type, Expr: m.Returns.Expr}
		}
		doc.CPL.Methods[m.Name] = im
	}

	if len(proto.Events) > 0 {
		doc.CPL.Events = make(map[string]Event, len(proto.Events))
		for _, ev := range proto.Events {
			params := make([]EventParam, len(ev.Params))
			for i, p := range ev.Params {
				params[i] = EventParam{Name: p.Name, Type: p.Type}
			}
			doc.CPL.Events[ev.Name] = Event{Params: params}
		}
	}
	return doc
}

// Lift rebuilds an ast.Protocol from a document. Keyed collections come
// back sorted by name.
func Lift(doc *Document) (*ast.Protocol, error) {
	if doc.Protocol == "" {
		return nil, fmt.Errorf("lift: document has no protocol name")
	}
	proto := &ast.Protocol{
		Name:    doc.Protocol,
		Version: doc.Version,
		Owner:   doc.CPL.Owner,
	}
	if proto.Version == "" {
		proto.Version = ast.DefaultVersion
	}
	if len(doc.CPL.Imports) > 0 {
		proto.Imports = append([]string(nil), doc.CPL.Imports...)
	}
	for _, u := range doc.CPL.Using {
		alias := u.Alias
		if alias == "" {
			alias = u.Module
		}
		proto.Using = append(proto.Using, ast.UsingAlias{Module: u.Module, Alias: alias})
	}

	for _, name := range sortedKeys(doc.CPL.State) {
		sv := doc.CPL.State[name]
		proto.StateVars = append(proto.StateVars, ast.StateVar{Name: name, Type: sv.Type, Default: string(sv.Default)})
	}

	for _, name := range sortedKeys(doc.CPL.Methods) {
		im := doc.CPL.Methods[name]
		if len(im.ParamTypes) > 0 && len(im.ParamTypes) != len(im.Params) {
			return nil, fmt.Errorf("lift: method %s has %d params but %d param_types",
				name, len(im.Params), len(im.ParamTypes))
		}
		m := ast.Method{Name: name}
		for i, p := range im.Params {
			param := ast.Param{Name: p}
			if len(im.ParamTypes) > 0 {
				param.Type = im.ParamTypes[i]
			}
			m.Params = append(m.Params, param)
		}
		if len(im.Logic) > 0 {
			m.Logic = append([]string(nil), im.Logic...)
		}
		if im.Returns != nil {
			m.Returns = &ast.Returns{Type: im.Returns.Type, Expr: im.Returns.Expr}
		}
		proto.Methods = append(proto.Methods, m)
	}

	for _, name := range sortedKeys(doc.CPL.Events) {
		ev := ast.Event{Name: name}
		for _, p := range doc.CPL.Events[name].Params {
			ev.Params = append(ev.Params, ast.Param{Name: p.Name, Type: p.Type})
		}
		proto.Events = append(proto.Events, ev)
	}
	return proto, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// splitLogic splits a single logic string into statements. Text the
// tokenizer rejects is kept whole so the failure surfaces when the
// statement is executed.
func splitLogic(text string) Logic {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	stmts, err := logic.Split(text)
	if err != nil {
		return Logic{strings.TrimSpace(text)}
	}
	return Logic(stmts)
}
