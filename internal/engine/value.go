package engine

import (
	"strconv"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ast"
)

// Kind tags a Value.
type Kind int

const (
	KindStr Kind = iota
	KindInt
	KindBool
)

// Value is a tagged runtime scalar.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
}

// Str wraps text.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Int wraps an integer.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// String renders the value the way it is persisted and returned.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return v.s
}

// Int converts the value for arithmetic and ordering. Empty text is 0.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	s := strings.TrimSpace(v.s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Equal compares rendered text, so Int(2) equals Str("2").
func (v Value) Equal(o Value) bool {
	return v.String() == o.String()
}

// typedValue converts persisted text using a declared type. Text that does
// not render back identically stays a string, so "007" is never rewritten.
func typedValue(declType, text string) Value {
	switch declType {
	case ast.TypeInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil && strconv.FormatInt(n, 10) == text {
			return Int(n)
		}
	case ast.TypeBool:
		if text == "true" || text == "false" {
			return Bool(text == "true")
		}
	}
	return Str(text)
}
