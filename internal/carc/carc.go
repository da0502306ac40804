// Package carc implements the CARC binary form of a compiled protocol.
//
// All integers are little-endian uint32. The header is seven words:
//
//	magic 0x43415243 | format | name len | owner len | state count | method count | total size
//
// followed by length-prefixed name and owner, one (name, type, default)
// triple per state variable, and one record per method: name, parameter
// count, parameter names and the statement texts joined by "\n".
//
// Format 2 extends format 1 with a type after each parameter name, a
// return descriptor after each method's logic, and a trailer carrying the
// version, imports, using aliases and events. Decode reads both.
package carc

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ast"
)

// Magic is "CARC" read as a little-endian word.
const Magic uint32 = 0x43415243

// Format versions.
const (
	FormatV1 uint32 = 1
	FormatV2 uint32 = 2
)

const headerSize = 7 * 4

// totalSizeOffset is where the final buffer length is patched in.
const totalSizeOffset = 6 * 4

type encoder struct {
	buf []byte
}

// Encode serialises proto in format 2.
func Encode(proto *ast.Protocol) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, 256)}

	header := []struct {
		field string
		n     int
	}{
		{"protocol name length", len(proto.Name)},
		{"owner length", len(proto.Owner)},
		{"state variable count", len(proto.StateVars)},
		{"method count", len(proto.Methods)},
	}
	e.word(Magic)
	e.word(FormatV2)
	for _, h := range header {
		if err := e.count(h.field, h.n); err != nil {
			return nil, err
		}
	}
	e.word(0) // total size, patched below

	if err := e.str("protocol name", proto.Name); err != nil {
		return nil, err
	}
	if err := e.str("owner", proto.Owner); err != nil {
		return nil, err
	}

	for _, sv := range proto.StateVars {
		for _, s := range []string{sv.Name, sv.Type, sv.Default} {
			if err := e.str("state variable "+sv.Name, s); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range proto.Methods {
		if err := e.method(m); err != nil {
			return nil, err
		}
	}

	if err := e.trailer(proto); err != nil {
		return nil, err
	}

	if uint64(len(e.buf)) > math.MaxUint32 {
		return nil, &EncodeError{Field: "total size", Message: "exceeds 32 bits"}
	}
	binary.LittleEndian.PutUint32(e.buf[totalSizeOffset:], uint32(len(e.buf)))
	return e.buf, nil
}

func (e *encoder) method(m ast.Method) error {
	field := "method " + m.Name
	if err := e.str(field, m.Name); err != nil {
		return err
	}
	if err := e.count(field+" parameter count", len(m.Params)); err != nil {
		return err
	}
	for _, p := range m.Params {
		if err := e.str(field, p.Name); err != nil {
			return err
		}
		if err := e.str(field, p.Type); err != nil {
			return err
		}
	}
	for _, stmt := range m.Logic {
		if strings.Contains(stmt, "\n") {
			return &EncodeError{Field: field, Message: "statement contains a newline"}
		}
	}
	if err := e.str(field+" logic", strings.Join(m.Logic, "\n")); err != nil {
		return err
	}
	if m.Returns == nil {
		e.word(0)
		return nil
	}
	e.word(1)
	if err := e.str(field+" return type", m.Returns.Type); err != nil {
		return err
	}
	return e.str(field+" return expression", m.Returns.Expr)
}

func (e *encoder) trailer(proto *ast.Protocol) error {
	if err := e.str("version", proto.Version); err != nil {
		return err
	}
	if err := e.strs("imports", proto.Imports); err != nil {
		return err
	}
	if err := e.count("using count", len(proto.Using)); err != nil {
		return err
	}
	for _, u := range proto.Using {
		if err := e.str("using", u.Module); err != nil {
			return err
		}
		if err := e.str("using", u.Alias); err != nil {
			return err
		}
	}
	if err := e.count("event count", len(proto.Events)); err != nil {
		return err
	}
	for _, ev := range proto.Events {
		field := "event " + ev.Name
		if err := e.str(field, ev.Name); err != nil {
			return err
		}
		if err := e.count(field+" parameter count", len(ev.Params)); err != nil {
			return err
		}
		for _, p := range ev.Params {
			if err := e.str(field, p.Name); err != nil {
				return err
			}
			if err := e.str(field, p.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *encoder) word(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) count(field string, n int) error {
	if uint64(n) > math.MaxUint32 {
		return &EncodeError{Field: field, Message: "exceeds 32 bits"}
	}
	e.word(uint32(n))
	return nil
}

func (e *encoder) str(field, s string) error {
	if err := e.count(field, len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) strs(field string, list []string) error {
	if err := e.count(field, len(list)); err != nil {
		return err
	}
	for _, s := range list {
		if err := e.str(field, s); err != nil {
			return err
		}
	}
	return nil
}
