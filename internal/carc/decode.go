package carc

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cardity-org/cardity-core/internal/ast"
)

// Smallest possible encodings, used to reject counts the remaining
// bytes cannot possibly hold before allocating for them.
const (
	minStateRecord  = 3 * 4
	minMethodV1     = 3 * 4
	minMethodV2     = 4 * 4
	minParamV1      = 4
	minParamV2      = 2 * 4
	minUsingRecord  = 2 * 4
	minEventRecord  = 2 * 4
	minStringRecord = 4
)

type decoder struct {
	buf    []byte
	off    int
	format uint32
}

// Decode parses a CARC buffer. Any inconsistency is a *DecodeError; the
// decoder never reads past the end of data.
func Decode(data []byte) (*ast.Protocol, error) {
	d := &decoder{buf: data}
	if len(data) < headerSize {
		return nil, d.errorf("buffer of %d bytes is shorter than the %d byte header", len(data), headerSize)
	}

	magic, _ := d.word()
	if magic != Magic {
		return nil, &DecodeError{Offset: 0, Message: fmt.Sprintf("bad magic 0x%08x", magic)}
	}
	d.format, _ = d.word()
	if d.format != FormatV1 && d.format != FormatV2 {
		return nil, &DecodeError{Offset: 4, Message: fmt.Sprintf("unsupported format version %d", d.format)}
	}
	nameLen, _ := d.word()
	ownerLen, _ := d.word()
	stateCount, _ := d.word()
	methodCount, _ := d.word()
	totalSize, _ := d.word()
	if uint64(totalSize) != uint64(len(data)) {
		return nil, &DecodeError{Offset: totalSizeOffset,
			Message: fmt.Sprintf("header declares %d bytes but buffer has %d", totalSize, len(data))}
	}

	proto := &ast.Protocol{Version: ast.DefaultVersion}
	var err error
	if proto.Name, err = d.strOfLen("protocol name", nameLen); err != nil {
		return nil, err
	}
	if proto.Owner, err = d.strOfLen("owner", ownerLen); err != nil {
		return nil, err
	}

	if err := d.fits("state variables", stateCount, minStateRecord); err != nil {
		return nil, err
	}
	if stateCount > 0 {
		proto.StateVars = make([]ast.StateVar, 0, stateCount)
	}
	for i := uint32(0); i < stateCount; i++ {
		var sv ast.StateVar
		if sv.Name, err = d.str(); err != nil {
			return nil, err
		}
		if sv.Type, err = d.str(); err != nil {
			return nil, err
		}
		if sv.Default, err = d.str(); err != nil {
			return nil, err
		}
		proto.StateVars = append(proto.StateVars, sv)
	}

	minMethod := uint32(minMethodV1)
	if d.format == FormatV2 {
		minMethod = minMethodV2
	}
	if err := d.fits("methods", methodCount, minMethod); err != nil {
		return nil, err
	}
	if methodCount > 0 {
		proto.Methods = make([]ast.Method, 0, methodCount)
	}
	for i := uint32(0); i < methodCount; i++ {
		m, err := d.method()
		if err != nil {
			return nil, err
		}
		proto.Methods = append(proto.Methods, m)
	}

	if d.format == FormatV2 {
		if err := d.trailer(proto); err != nil {
			return nil, err
		}
	}

	if d.off != len(d.buf) {
		return nil, d.errorf("%d trailing bytes", len(d.buf)-d.off)
	}
	return proto, nil
}

func (d *decoder) method() (ast.Method, error) {
	var m ast.Method
	var err error
	if m.Name, err = d.str(); err != nil {
		return m, err
	}
	n, err := d.word()
	if err != nil {
		return m, err
	}
	minParam := uint32(minParamV1)
	if d.format == FormatV2 {
		minParam = minParamV2
	}
	if err := d.fits("parameters of "+m.Name, n, minParam); err != nil {
		return m, err
	}
	for i := uint32(0); i < n; i++ {
		var p ast.Param
		if p.Name, err = d.str(); err != nil {
			return m, err
		}
		if d.format == FormatV2 {
			if p.Type, err = d.str(); err != nil {
				return m, err
			}
		}
		m.Params = append(m.Params, p)
	}

	text, err := d.str()
	if err != nil {
		return m, err
	}
	if text != "" {
		m.Logic = strings.Split(text, "\n")
	}

	if d.format == FormatV1 {
		return m, nil
	}
	flagOff := d.off
	flag, err := d.word()
	if err != nil {
		return m, err
	}
	switch flag {
	case 0:
	case 1:
		m.Returns = &ast.Returns{}
		if m.Returns.Type, err = d.str(); err != nil {
			return m, err
		}
		if m.Returns.Expr, err = d.str(); err != nil {
			return m, err
		}
	default:
		return m, &DecodeError{Offset: flagOff, Message: fmt.Sprintf("invalid return flag %d", flag)}
	}
	return m, nil
}

func (d *decoder) trailer(proto *ast.Protocol) error {
	var err error
	if proto.Version, err = d.str(); err != nil {
		return err
	}

	n, err := d.word()
	if err != nil {
		return err
	}
	if err := d.fits("imports", n, minStringRecord); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		imp, err := d.str()
		if err != nil {
			return err
		}
		proto.Imports = append(proto.Imports, imp)
	}

	if n, err = d.word(); err != nil {
		return err
	}
	if err := d.fits("using aliases", n, minUsingRecord); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		var u ast.UsingAlias
		if u.Module, err = d.str(); err != nil {
			return err
		}
		if u.Alias, err = d.str(); err != nil {
			return err
		}
		proto.Using = append(proto.Using, u)
	}

	if n, err = d.word(); err != nil {
		return err
	}
	if err := d.fits("events", n, minEventRecord); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		var ev ast.Event
		if ev.Name, err = d.str(); err != nil {
			return err
		}
		pc, err := d.word()
		if err != nil {
			return err
		}
		if err := d.fits("parameters of event "+ev.Name, pc, minParamV2); err != nil {
			return err
		}
		for j := uint32(0); j < pc; j++ {
			var p ast.Param
			if p.Name, err = d.str(); err != nil {
				return err
			}
			if p.Type, err = d.str(); err != nil {
				return err
			}
			ev.Params = append(ev.Params, p)
		}
		proto.Events = append(proto.Events, ev)
	}
	return nil
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

// fits rejects a count whose minimal encoding exceeds the remaining bytes.
func (d *decoder) fits(what string, count, minSize uint32) error {
	if uint64(count)*uint64(minSize) > uint64(d.remaining()) {
		return d.errorf("%d %s cannot fit in the remaining %d bytes", count, what, d.remaining())
	}
	return nil
}

func (d *decoder) word() (uint32, error) {
	if d.remaining() < 4 {
		return 0, d.errorf("need 4 bytes for a length word, have %d", d.remaining())
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) str() (string, error) {
	start := d.off
	n, err := d.word()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(d.remaining()) {
		d.off = start
		return "", d.errorf("string of %d bytes overruns buffer (%d remaining)", n, d.remaining()-4)
	}
	s := d.buf[d.off : d.off+int(n)]
	if !utf8.Valid(s) {
		d.off = start
		return "", d.errorf("string is not valid UTF-8")
	}
	d.off += int(n)
	return string(s), nil
}

// strOfLen reads a string whose length the header already declared.
func (d *decoder) strOfLen(what string, want uint32) (string, error) {
	start := d.off
	s, err := d.str()
	if err != nil {
		return "", err
	}
	if uint32(len(s)) != want {
		return "", &DecodeError{Offset: start,
			Message: fmt.Sprintf("%s is %d bytes but header declares %d", what, len(s), want)}
	}
	return s, nil
}

func (d *decoder) errorf(format string, args ...any) error {
	return &DecodeError{Offset: d.off, Message: fmt.Sprintf(format, args...)}
}
