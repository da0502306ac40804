package engine

import (
	"sort"
	"strconv"
	"strings"
)

// KeySeparator joins a map base and its indices in flat snapshot keys.
const KeySeparator = "@"

// StateKey addresses a state slot: a scalar variable, or a map entry with
// one or more resolved indices.
type StateKey struct {
	Base  string
	Index []string
}

// Scalar returns the key of an unindexed variable.
func Scalar(name string) StateKey { return StateKey{Base: name} }

// Indexed returns the key of a map entry.
func Indexed(base string, index ...string) StateKey { return StateKey{Base: base, Index: index} }

// Index parts are escaped in flat keys so that '@' inside a map index
// survives a snapshot round trip. Keys without '@' or '%' are unchanged.
var (
	indexEscaper   = strings.NewReplacer("%", "%25", KeySeparator, "%40")
	indexUnescaper = strings.NewReplacer("%40", KeySeparator, "%25", "%")
)

// Flat renders the key as base@k1@k2.
func (k StateKey) Flat() string {
	if len(k.Index) == 0 {
		return k.Base
	}
	var b strings.Builder
	b.WriteString(k.Base)
	for _, part := range k.Index {
		b.WriteString(KeySeparator)
		b.WriteString(indexEscaper.Replace(part))
	}
	return b.String()
}

// ParseStateKey is the inverse of Flat.
func ParseStateKey(flat string) StateKey {
	parts := strings.Split(flat, KeySeparator)
	if len(parts) == 1 {
		return Scalar(flat)
	}
	index := make([]string, len(parts)-1)
	for i, part := range parts[1:] {
		index[i] = indexUnescaper.Replace(part)
	}
	return Indexed(parts[0], index...)
}

// slot is the comparable form of a StateKey. Indices are length-prefixed
// so distinct index lists never collide.
type slot struct {
	base string
	idx  string
}

func (k StateKey) slot() slot {
	if len(k.Index) == 0 {
		return slot{base: k.Base}
	}
	var b strings.Builder
	for _, part := range k.Index {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return slot{base: k.Base, idx: b.String()}
}

type entry struct {
	key StateKey
	val Value
}

// State is the mutable runtime state of one unit instance. It is owned by
// a single invocation at a time.
type State struct {
	types   map[string]string
	entries map[slot]entry
}

// NewState creates an empty state. types maps variable names to their
// declared types and may be nil.
func NewState(types map[string]string) *State {
	if types == nil {
		types = map[string]string{}
	}
	return &State{types: types, entries: map[slot]entry{}}
}

// Get returns the value at key.
func (s *State) Get(key StateKey) (Value, bool) {
	e, ok := s.entries[key.slot()]
	return e.val, ok
}

// Set stores v at key. Text written to a scalar variable is converted using
// the variable's declared type.
func (s *State) Set(key StateKey, v Value) {
	if v.Kind() == KindStr && len(key.Index) == 0 {
		v = typedValue(s.types[key.Base], v.s)
	}
	s.entries[key.slot()] = entry{key: key, val: v}
}

// Len returns the number of stored slots.
func (s *State) Len() int { return len(s.entries) }

// Snapshot renders the state as a flat string map.
func (s *State) Snapshot() map[string]string {
	out := make(map[string]string, len(s.entries))
	for _, e := range s.entries {
		out[e.key.Flat()] = e.val.String()
	}
	return out
}

// Restore overlays a flat snapshot.
func (s *State) Restore(snapshot map[string]string) {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Set(ParseStateKey(k), Str(snapshot[k]))
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := &State{types: s.types, entries: make(map[slot]entry, len(s.entries))}
	for k, e := range s.entries {
		e.key.Index = append([]string(nil), e.key.Index...)
		c.entries[k] = e
	}
	return c
}
