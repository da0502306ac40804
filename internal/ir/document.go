package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Fixed header values of every document.
const (
	ProtocolTag = "cardinals"
	OpDeploy    = "deploy"
)

// Document is the JSON IR of one protocol unit.
type Document struct {
	P        string `json:"p"`
	Op       string `json:"op"`
	Protocol string `json:"protocol"`
	Version  string `json:"version"`
	CPL      CPL    `json:"cpl"`
}

// CPL is the protocol body: owner, state schema, methods and events.
type CPL struct {
	Owner   string              `json:"owner"`
	Imports []string            `json:"imports,omitempty"`
	Using   []Using             `json:"using,omitempty"`
	State   map[string]StateVar `json:"state"`
	Methods map[string]Method   `json:"methods"`
	Events  map[string]Event    `json:"events,omitempty"`
}

// Using binds an alias to a module.
type Using struct {
	Module string `json:"module"`
	Alias  string `json:"alias"`
}

// StateVar is one state schema entry.
type StateVar struct {
	Type    string `json:"type"`
	Default Scalar `json:"default"`
}

// Method is one callable entry.
type Method struct {
	Params     []string `json:"params"`
	ParamTypes []string `json:"param_types,omitempty"`
	Logic      Logic    `json:"logic"`
	Returns    *Returns `json:"returns,omitempty"`
}

// Returns is a method's return declaration.
type Returns struct {
	Type string `json:"type,omitempty"`
	Expr string `json:"expr,omitempty"`
}

// Event is one declared event.
type Event struct {
	Params []EventParam `json:"params"`
}

// EventParam is a named, typed event field.
type EventParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Scalar is literal text. It decodes from a JSON string, integer or
// boolean, and always encodes as a string.
type Scalar string

// UnmarshalJSON accepts "x", 12 or true.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty scalar")
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*s = Scalar(strconv.FormatBool(b))
	case 'n':
		*s = ""
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("scalar %s is not an integer", data)
		}
		*s = Scalar(strconv.FormatInt(n, 10))
	}
	return nil
}

// Logic is an ordered list of statement texts. It encodes as a single
// string when there is at most one statement and as an array otherwise;
// a string holding several statements is split on decode.
type Logic []string

// MarshalJSON implements json.Marshaler.
func (l Logic) MarshalJSON() ([]byte, error) {
	switch len(l) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return marshalNoEscape(l[0])
	}
	return marshalNoEscape([]string(l))
}

// marshalNoEscape is json.Marshal without HTML escaping, so comparison
// operators in statements stay readable.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Logic) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = Logic(list)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("logic must be a string or array of strings: %w", err)
	}
	*l = splitLogic(text)
	return nil
}

// UnmarshalJSON accepts the legacy plain-string form as an expression.
func (r *Returns) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var expr string
		if err := json.Unmarshal(data, &expr); err != nil {
			return err
		}
		*r = Returns{Expr: expr}
		return nil
	}
	type plain Returns
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Returns(p)
	return nil
}

// Marshal renders the document as indented JSON. The output is
// deterministic: struct fields keep declaration order and map keys are
// sorted.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return buf.Bytes(), nil
}
