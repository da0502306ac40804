package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed JSON value without floats or null. It is the input of
// canonical marshalling.
type Value interface {
	irValue()
}

// String is a JSON string.
type String string

// Int is a JSON integer. Floats are never produced.
type Int int64

// Bool is a JSON boolean.
type Bool bool

// Array is a JSON array.
type Array []Value

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (String) irValue() {}
func (Int) irValue()    {}
func (Bool) irValue()   {}
func (Array) irValue()  {}
func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units), which
// differs from Go's byte-wise string order outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// ParseValue decodes JSON into a Value. Floats and null are rejected.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromAny(raw)
}

// FromStrings builds an Object from a string map.
func FromStrings(m map[string]string) Object {
	obj := make(Object, len(m))
	for k, v := range m {
		obj[k] = String(v)
	}
	return obj
}

// FromStringSlice builds an Array of strings.
func FromStringSlice(list []string) Array {
	arr := make(Array, len(list))
	for i, s := range list {
		arr[i] = String(s)
	}
	return arr
}

func fromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not allowed")
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("float %s is not allowed", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of int64 range", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	case []string:
		return FromStringSlice(val), nil
	case map[string]string:
		return FromStrings(val), nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}
