// Package ast defines the syntax tree for Cardity protocol units.
//
// A Protocol is produced once per parse and treated as immutable by every
// consumer (IR compiler, binary codec, semantic checks).
package ast

// Declared types accepted for state variables and parameters.
const (
	TypeInt     = "int"
	TypeString  = "string"
	TypeBool    = "bool"
	TypeAddress = "address"
	TypeMap     = "map"
)

// DefaultVersion is used when a unit has no version declaration.
const DefaultVersion = "1.0"

// IsDeclaredType reports whether t is one of the declared types.
func IsDeclaredType(t string) bool {
	switch t {
	case TypeInt, TypeString, TypeBool, TypeAddress, TypeMap:
		return true
	}
	return false
}

// Protocol is the root of a parsed source unit.
type Protocol struct {
	Name      string
	Version   string
	Owner     string
	Imports   []string
	Using     []UsingAlias
	StateVars []StateVar
	Methods   []Method
	Events    []Event
}

// UsingAlias binds a local alias to an imported module.
type UsingAlias struct {
	Module string
	Alias  string
}

// StateVar declares one persisted variable. Default is literal text and
// may be empty.
type StateVar struct {
	Name    string
	Type    string
	Default string
}

// Param is a method or event parameter. Type is empty when undeclared.
type Param struct {
	Name string
	Type string
}

// Method is a callable entry point. Logic holds raw statement text, one
// entry per statement, in source order.
type Method struct {
	Name    string
	Params  []Param
	Logic   []string
	Returns *Returns
}

// Returns is a method's return declaration.
type Returns struct {
	Type string
	Expr string
}

// Event declares an event and its ordered fields.
type Event struct {
	Name   string
	Params []Param
}

// ParamNames returns the parameter names in declaration order.
func (m *Method) ParamNames() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return names
}

// HasParamTypes reports whether any parameter carries a declared type.
func (m *Method) HasParamTypes() bool {
	for _, p := range m.Params {
		if p.Type != "" {
			return true
		}
	}
	return false
}

// Method looks up a method by name.
func (p *Protocol) Method(name string) (*Method, bool) {
	for i := range p.Methods {
		if p.Methods[i].Name == name {
			return &p.Methods[i], true
		}
	}
	return nil, false
}

// StateVar looks up a state variable by name.
func (p *Protocol) StateVar(name string) (*StateVar, bool) {
	for i := range p.StateVars {
		if p.StateVars[i].Name == name {
			return &p.StateVars[i], true
		}
	}
	return nil, false
}

// Event looks up an event by name.
func (p *Protocol) Event(name string) (*Event, bool) {
	for i := range p.Events {
		if p.Events[i].Name == name {
			return &p.Events[i], true
		}
	}
	return nil, false
}
