package rpc

import (
	"sort"
)

// Entry is one key/value pair. Maps travel as sorted entry lists so the
// encoding stays deterministic.
type Entry struct {
	Key   string `cramberry:"1"`
	Value string `cramberry:"2"`
}

// CompileRequest carries one source unit.
type CompileRequest struct {
	Name   string `cramberry:"1"`
	Source string `cramberry:"2"`
}

// CompileResponse holds both compiled forms of a unit.
type CompileResponse struct {
	Protocol string   `cramberry:"1"`
	UnitHash string   `cramberry:"2"`
	IR       []byte   `cramberry:"3"`
	Binary   []byte   `cramberry:"4"`
	Warnings []string `cramberry:"5"`
}

// DeriveABIRequest carries a JSON IR document.
type DeriveABIRequest struct {
	IR []byte `cramberry:"1"`
}

// DeriveABIResponse holds the ABI JSON document.
type DeriveABIResponse struct {
	ABI []byte `cramberry:"1"`
}

// DeployRequest carries a JSON IR document to deploy.
type DeployRequest struct {
	IR []byte `cramberry:"1"`
}

// DeployResponse identifies the deployed unit.
type DeployResponse struct {
	Protocol string   `cramberry:"1"`
	UnitHash string   `cramberry:"2"`
	Methods  []string `cramberry:"3"`
}

// InvokeRequest asks for one method call on a deployed unit.
type InvokeRequest struct {
	UnitHash string   `cramberry:"1"`
	Method   string   `cramberry:"2"`
	Args     []string `cramberry:"3"`
	Ctx      []Entry  `cramberry:"4"`
}

// EventRecord is one emitted event.
type EventRecord struct {
	Name   string   `cramberry:"1"`
	Values []string `cramberry:"2"`
}

// InvokeResponse is the committed outcome of an invocation. FaultCode is
// empty unless the method faulted.
type InvokeResponse struct {
	InvocationID string        `cramberry:"1"`
	Seq          int64         `cramberry:"2"`
	Output       string        `cramberry:"3"`
	Events       []EventRecord `cramberry:"4"`
	State        []Entry       `cramberry:"5"`
	FaultCode    string        `cramberry:"6"`
	FaultMessage string        `cramberry:"7"`
}

// Entries converts a map to a key-sorted entry list.
func Entries(m map[string]string) []Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: m[k]})
	}
	return out
}

// EntryMap converts an entry list back to a map. Later duplicates win.
func EntryMap(entries []Entry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}
