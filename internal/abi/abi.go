// Package abi derives the public interface of a compiled protocol unit.
package abi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/ir"
)

// Document is the ABI of one unit.
type Document struct {
	Protocol string            `json:"protocol"`
	Version  string            `json:"version"`
	Methods  map[string]Method `json:"methods"`
	Events   map[string]Event  `json:"events"`
}

// Method describes one callable entry. Returns is nil when the method
// declares no return.
type Method struct {
	Params  []Param `json:"params"`
	Returns *string `json:"returns"`
}

// Event describes one declared event.
type Event struct {
	Params []Param `json:"params"`
}

// Param is a named, typed field.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Derive builds the ABI of doc. Parameters are typed "string" unless the
// method carries param_types. A return declaration without a type is
// reported as "string", which is what the runtime produces.
func Derive(doc *ir.Document) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("derive abi: nil document")
	}
	if doc.Protocol == "" {
		return nil, fmt.Errorf("derive abi: document has no protocol name")
	}
	if doc.CPL.Methods == nil {
		return nil, fmt.Errorf("derive abi: %s: missing cpl.methods", doc.Protocol)
	}

	out := &Document{
		Protocol: doc.Protocol,
		Version:  doc.Version,
		Methods:  make(map[string]Method, len(doc.CPL.Methods)),
		Events:   make(map[string]Event, len(doc.CPL.Events)),
	}
	if out.Version == "" {
		out.Version = ast.DefaultVersion
	}

	for name, m := range doc.CPL.Methods {
		typed := len(m.ParamTypes) > 0
		if typed && len(m.ParamTypes) != len(m.Params) {
			return nil, fmt.Errorf("derive abi: %s.%s: %d params but %d param_types",
				doc.Protocol, name, len(m.Params), len(m.ParamTypes))
		}
		am := Method{Params: make([]Param, len(m.Params))}
		for i, p := range m.Params {
			am.Params[i] = Param{Name: p, Type: ast.TypeString}
			if typed && m.ParamTypes[i] != "" {
				am.Params[i].Type = m.ParamTypes[i]
			}
		}
		if m.Returns != nil {
			t := m.Returns.Type
			if t == "" {
				t = ast.TypeString
			}
			am.Returns = &t
		}
		out.Methods[name] = am
	}

	for name, ev := range doc.CPL.Events {
		ae := Event{Params: make([]Param, len(ev.Params))}
		for i, p := range ev.Params {
			ae.Params[i] = Param{Name: p.Name, Type: p.Type}
		}
		out.Events[name] = ae
	}
	return out, nil
}

// Marshal renders an ABI document as indented JSON with sorted keys.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal abi: %w", err)
	}
	return buf.Bytes(), nil
}
